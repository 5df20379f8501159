package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var jsonOutput bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recording status",
	Long:  `Display the current recording status including session id, elapsed time and spool file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := daemonClient()
		if err != nil {
			return err
		}

		if !c.Ping() {
			if jsonOutput {
				fmt.Println(`{"daemon":"unreachable"}`)
				return nil
			}
			fmt.Println("Daemon:    NOT RUNNING")
			fmt.Println("\nStart it with 'voxkeep daemon'.")
			return nil
		}

		st, err := c.Status()
		if err != nil {
			return err
		}

		if jsonOutput {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		if st.IsRecording {
			state := "ACTIVE"
			if st.IsPaused {
				state = "PAUSED"
			}
			fmt.Printf("Recording: %s\n", state)
			fmt.Printf("Session:   %s\n", st.SessionID)
			fmt.Printf("Elapsed:   %s\n", st.Elapsed)
			fmt.Printf("Spool:     %s\n", st.TempFile)
			if st.IsPaused {
				fmt.Println("\nUse 'voxkeep resume' to continue recording.")
			}
		} else {
			fmt.Println("Recording: INACTIVE")
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
}
