package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [session-id]",
	Short: "Pause the current recording",
	Long: `Pause capture without closing the recording file.

Without arguments the active session is paused. Pausing an ended or
unknown session is a no-op.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := daemonClient()
		if err != nil {
			return err
		}

		id, err := resolveSessionID(c, args)
		if err != nil {
			return err
		}
		if id == "" {
			fmt.Println("Nothing is recording.")
			return nil
		}

		if err := c.Pause(id); err != nil {
			return err
		}
		fmt.Println("Recording paused.")
		return nil
	},
}
