package cmd

import (
	"github.com/spf13/cobra"

	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the current recording",
	Long: `Show a live terminal view of the current recording: state, elapsed
time and input level. Reads the published status files, so it works
even while another terminal owns the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

func runWatch() error {
	return tui.Run(config.StatusDir)
}
