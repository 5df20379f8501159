package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxkeep/voxkeep/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := capture.ListDevices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}

		if len(devices) == 0 {
			fmt.Println("No audio input devices found.")
			return nil
		}

		fmt.Println("Audio input devices:")
		for _, d := range devices {
			fmt.Printf("  %s\n", d)
		}
		fmt.Println("\nSet \"audio_device\" in the config file to pick one.")
		return nil
	},
}
