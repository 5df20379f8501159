package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxkeep/voxkeep/internal/models"
)

var stopCmd = &cobra.Command{
	Use:   "stop [session-id]",
	Short: "Stop the current recording",
	Long: `Stop a recording session and commit it to disk.

Without arguments the active session is stopped, whatever its id.
Stopping when nothing is recording is a no-op.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := daemonClient()
		if err != nil {
			return err
		}

		var rec *models.CompletedRecording
		if len(args) == 1 {
			rec, err = c.Stop(args[0])
		} else {
			rec, err = c.StopCurrent()
		}
		if err != nil {
			return err
		}

		if rec == nil {
			fmt.Println("Nothing is recording.")
			return nil
		}
		printCommitted(rec)
		return nil
	},
}

func printCommitted(rec *models.CompletedRecording) {
	fmt.Printf("Recording saved: %s (%s, %d bytes)\n",
		rec.FinalLocation, rec.Duration.Round(time.Second), rec.Bytes)
}
