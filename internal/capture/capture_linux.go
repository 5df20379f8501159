//go:build linux

package capture

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/voxkeep/voxkeep/internal/wav"
)

// captureCommand records from PipeWire, streaming raw s16 PCM to stdout
func captureCommand(device string, f wav.Format) (string, []string) {
	if device == "" {
		device = "@DEFAULT_SOURCE@"
	}
	return "pw-record", []string{
		"--target", device,
		"--rate", fmt.Sprintf("%d", f.SampleRate),
		"--channels", fmt.Sprintf("%d", f.Channels),
		"--format", "s16",
		"-",
	}
}

func interruptProcess(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}

// ListDevices returns the available PipeWire/PulseAudio sources
func ListDevices() ([]string, error) {
	out, err := exec.Command("pactl", "list", "short", "sources").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sources: %w", err)
	}

	var devices []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			devices = append(devices, fields[1])
		}
	}
	return devices, nil
}
