package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a paused recording",
	Args:  cobra.MaximumNArgs(1),
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

		if err := c.Resume(id); err != nil {
			return err
		}
		fmt.Println("Recording resumed.")
		return nil
	},
}
