package beep

import (
	"fmt"
	"os/exec"
	"time"
)

// Cue frequencies (Hz): rising tone on start, falling tone on stop
const (
	StartFreq = 880
	StopFreq  = 554
)

// Start plays the recording-started cue
func Start() {
	play(StartFreq)
}

// Stop plays the recording-stopped cue
func Stop() {
	play(StopFreq)
}

// play plays a short beep at the given frequency, trying several backends
func play(freq int) {
	// Method 1: generate a tone with ffmpeg and pipe to pw-cat/aplay
	if tryFFmpegBeep(freq) {
		return
	}

	// Method 2: speaker-test (ALSA)
	if trySpeakerTest(freq) {
		return
	}

	// Method 3: paplay with a system sound (PulseAudio)
	if tryPaplay() {
		return
	}

	// Method 4: console beep (may not work on all systems)
	fmt.Print("\a")
}

// tryFFmpegBeep generates and plays a tone using ffmpeg and pw-cat/aplay
func tryFFmpegBeep(freq int) bool {
	duration := "0.1"

	// Try pw-cat first (PipeWire)
	cmd := exec.Command("bash", "-c",
		fmt.Sprintf("ffmpeg -f lavfi -i 'sine=frequency=%d:duration=%s' -f wav - 2>/dev/null | pw-cat --playback - 2>/dev/null",
			freq, duration))
	if err := cmd.Run(); err == nil {
		return true
	}

	// Try aplay (ALSA)
	cmd = exec.Command("bash", "-c",
		fmt.Sprintf("ffmpeg -f lavfi -i 'sine=frequency=%d:duration=%s' -f wav - 2>/dev/null | aplay -q - 2>/dev/null",
			freq, duration))
	if err := cmd.Run(); err == nil {
		return true
	}

	return false
}

// trySpeakerTest uses speaker-test to generate a tone
func trySpeakerTest(freq int) bool {
	cmd := exec.Command("speaker-test", "-t", "sine", "-f", fmt.Sprintf("%d", freq), "-l", "1", "-p", "1")
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Start()
	if err != nil {
		return false
	}

	// Kill after 100ms
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = cmd.Process.Kill()
	}()

	return true
}

// tryPaplay plays a system sound using paplay
func tryPaplay() bool {
	sounds := []string{
		"/usr/share/sounds/freedesktop/stereo/message.oga",
		"/usr/share/sounds/freedesktop/stereo/bell.oga",
		"/usr/share/sounds/sound-icons/bell.wav",
	}

	for _, sound := range sounds {
		cmd := exec.Command("paplay", sound)
		if err := cmd.Run(); err == nil {
			return true
		}
	}

	return false
}
