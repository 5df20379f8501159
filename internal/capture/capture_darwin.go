//go:build darwin

package capture

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/voxkeep/voxkeep/internal/wav"
)

// captureCommand records via ffmpeg avfoundation, streaming raw s16le PCM
// to stdout. ":0" means no video input, first audio device.
func captureCommand(device string, f wav.Format) (string, []string) {
	if device == "" {
		device = ":0"
	}
	return "ffmpeg", []string{
		"-f", "avfoundation",
		"-i", device,
		"-ac", fmt.Sprintf("%d", f.Channels),
		"-ar", fmt.Sprintf("%d", f.SampleRate),
		"-f", "s16le",
		"-loglevel", "error",
		"-",
	}
}

func interruptProcess(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}

// ListDevices returns the avfoundation audio inputs ffmpeg can see
func ListDevices() ([]string, error) {
	// ffmpeg prints the device list on stderr and exits non-zero
	out, _ := exec.Command("ffmpeg",
		"-f", "avfoundation", "-list_devices", "true", "-i", "").CombinedOutput()

	var devices []string
	inAudio := false
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "audio devices") {
			inAudio = true
			continue
		}
		if strings.Contains(line, "video devices") {
			inAudio = false
			continue
		}
		if inAudio && strings.Contains(line, "]") {
			if i := strings.LastIndex(line, "]"); i >= 0 && i+1 < len(line) {
				devices = append(devices, strings.TrimSpace(line[i+1:]))
			}
		}
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no avfoundation audio devices found")
	}
	return devices, nil
}
