package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle recording on/off",
	Long: `Toggle recording. If a session is active, stop and commit it.
Otherwise start a new one. Meant for binding to a hotkey.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := daemonClient()
		if err != nil {
			return err
		}

		st, err := c.Status()
		if err != nil {
			return err
		}

		if st.IsRecording {
			rec, err := c.Stop(st.SessionID)
			if err != nil {
				return err
			}
			printCommitted(rec)
			return nil
		}

		id, err := c.Start()
		if err != nil {
			return err
		}
		fmt.Printf("Recording started: %s\n", id)
		return nil
	},
}
