package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/voxkeep/voxkeep/internal/deps"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external dependencies and daemon health",
	Long:  `Check that the external programs voxkeep relies on are installed and whether the daemon is reachable.`,
	Run: func(cmd *cobra.Command, args []string) {
		required, optional := deps.CheckAll()

		green := lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
		red := lipgloss.NewStyle().Foreground(lipgloss.Color("#E95420"))
		gray := lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9EA0"))
		bold := lipgloss.NewStyle().Bold(true)

		fmt.Println()
		fmt.Printf("%s %s\n\n", bold.Render("Capture backend:"), deps.CaptureBackendName())

		fmt.Println(bold.Render("Capture dependencies:"))
		fmt.Println()

		allRequiredOk := true
		for _, r := range required {
			var status string
			if r.Available {
				status = green.Render("✓")
			} else if r.Dependency.Required {
				status = red.Render("✗")
				allRequiredOk = false
			} else {
				status = gray.Render("○")
			}
			fmt.Printf("  %s %s\n", status, bold.Render(r.Dependency.Name))
			fmt.Printf("    %s\n", gray.Render(r.Dependency.Description))
			if r.Available {
				fmt.Printf("    Path: %s\n", r.Path)
			}
			fmt.Println()
		}

		fmt.Println(bold.Render("Optional dependencies:"))
		fmt.Println()

		for _, r := range optional {
			var status string
			if r.Available {
				status = green.Render("✓")
			} else {
				status = gray.Render("○")
			}
			fmt.Printf("  %s %s\n", status, bold.Render(r.Dependency.Name))
			fmt.Printf("    %s\n", gray.Render(r.Dependency.Description))
			if r.Available {
				fmt.Printf("    Path: %s\n", r.Path)
			}
			fmt.Println()
		}

		if c, err := daemonClient(); err == nil && c.Ping() {
			if st, err := c.Status(); err == nil && st.IsRecording {
				fmt.Printf("%s running, session %s active\n", bold.Render("Daemon:"), st.SessionID)
			} else {
				fmt.Printf("%s running, idle\n", bold.Render("Daemon:"))
			}
		} else {
			fmt.Printf("%s %s\n", bold.Render("Daemon:"), gray.Render("not running (start with 'voxkeep daemon')"))
		}
		fmt.Println()

		if allRequiredOk {
			fmt.Println(green.Render("All capture dependencies are installed!"))
		} else {
			fmt.Println(red.Render("Some capture dependencies are missing."))
			fmt.Println("Please install them before recording.")
		}
		fmt.Println()
	},
}
