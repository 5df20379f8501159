package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxkeep/voxkeep/internal/capture"
	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/logging"
	"github.com/voxkeep/voxkeep/internal/marker"
	"github.com/voxkeep/voxkeep/internal/status"
	"github.com/voxkeep/voxkeep/internal/supervisor"
	"github.com/voxkeep/voxkeep/internal/wav"
	"github.com/voxkeep/voxkeep/internal/writer"
)

var recordDuration time.Duration

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record in the foreground without the daemon",
	Long: `Run a one-shot recording in the foreground, without a daemon.

The full pipeline runs in this process: markers are written, status is
published, and an interrupted run is recoverable by the next daemon
start. Stop with Ctrl-C or use --duration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecord()
	},
}

func init() {
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "Stop automatically after this long (0: until Ctrl-C)")
}

func runRecord() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.EnsureDirectories(cfg); err != nil {
		return err
	}

	log := logging.NewCLI(debugMode)
	defer func() { _ = log.Sync() }()

	format := wav.Format{SampleRate: cfg.Format.SampleRate, Channels: cfg.Format.Channels}
	store := marker.NewStore(config.MarkersDir(), log)

	var sup *supervisor.Supervisor
	w := writer.New(store, writer.Options{
		SpoolDir:       config.SpoolDir(),
		Format:         format,
		FlushThreshold: cfg.FlushThresholdBytes,
		OnError: func(id string, err error) {
			sup.OnWriterError(id, err)
		},
	}, log)

	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w.Run(writerCtx)
	}()

	pub := status.NewThrottle(
		status.NewFilePublisher(config.StatusDir),
		cfg.StatusCap, cfg.StatusWindow, log)

	sup = supervisor.New(cfg, w, pub, func() capture.Device {
		return capture.NewDevice(cfg.AudioDevice, format)
	}, log)

	id, err := sup.Start()
	if err != nil {
		return err
	}
	fmt.Printf("Recording... (%s)\nPress Ctrl-C to stop.\n", id)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if recordDuration > 0 {
		select {
		case <-sigCh:
		case <-time.After(recordDuration):
		}
	} else {
		<-sigCh
	}

	rec, err := sup.Stop(id)
	if err != nil {
		return err
	}
	printCommitted(&rec)

	stopWriter()
	select {
	case <-writerDone:
	case <-time.After(5 * time.Second):
	}
	return nil
}
