//go:build windows

package capture

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/voxkeep/voxkeep/internal/wav"
)

// captureCommand records via ffmpeg dshow, streaming raw s16le PCM to
// stdout. Users can list devices with: ffmpeg -f dshow -list_devices true -i dummy
func captureCommand(device string, f wav.Format) (string, []string) {
	if device == "" {
		device = "audio=Microphone"
	} else if !strings.HasPrefix(device, "audio=") {
		device = "audio=" + device
	}
	return "ffmpeg", []string{
		"-f", "dshow",
		"-i", device,
		"-ac", fmt.Sprintf("%d", f.Channels),
		"-ar", fmt.Sprintf("%d", f.SampleRate),
		"-f", "s16le",
		"-loglevel", "error",
		"-",
	}
}

// SIGINT doesn't reach console processes reliably on Windows; kill directly
func interruptProcess(p *os.Process) error {
	return p.Kill()
}

// ListDevices returns the dshow audio inputs ffmpeg can see
func ListDevices() ([]string, error) {
	out, _ := exec.Command("ffmpeg",
		"-f", "dshow", "-list_devices", "true", "-i", "dummy").CombinedOutput()

	var devices []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "(audio)") {
			if start := strings.Index(line, "\""); start >= 0 {
				if end := strings.Index(line[start+1:], "\""); end > 0 {
					devices = append(devices, line[start+1:start+1+end])
				}
			}
		}
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no dshow audio devices found")
	}
	return devices, nil
}
