package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a recording session",
	Long: `Start a new recording session on the daemon.

Prints the session id on success. Fails if a session is already in
progress or the daemon is not running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := daemonClient()
		if err != nil {
			return err
		}

		id, err := c.Start()
		if err != nil {
			return err
		}

		fmt.Printf("Recording started: %s\n", id)
		return nil
	},
}
