package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/control"
)

var (
	version   = "dev"
	debugMode bool
	addrFlag  string
)

// SetVersion sets the application version (called from main)
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "voxkeep",
	Short: "Crash-safe microphone capture daemon and CLI",
	Long: `Voxkeep records from the microphone into durable WAV files.

A long-lived daemon owns the capture pipeline; the other commands are
thin clients talking to it over a loopback API. Every session leaves a
durable marker on disk before audio flows, so recordings survive
crashes and power loss: on the next daemon start, interrupted sessions
are committed or discarded automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default action: live status view
		return runWatch()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Daemon address (default: from config)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxkeep %s\n", version)
	},
}

// loadConfig loads the configuration, applying command-line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if addrFlag != "" {
		cfg.ListenAddr = addrFlag
	}
	return cfg, nil
}

// daemonClient builds a control client for the configured daemon address
func daemonClient() (*control.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return control.NewClient(cfg.ListenAddr), nil
}

// resolveSessionID returns the explicit id argument, or the active
// session's id, or "" when idle.
func resolveSessionID(c *control.Client, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	st, err := c.Status()
	if err != nil {
		return "", err
	}
	if !st.IsRecording {
		return "", nil
	}
	return st.SessionID, nil
}
