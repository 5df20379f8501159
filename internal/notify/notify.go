package notify

import (
	"fmt"
	"os/exec"
	"time"
)

// Urgency levels for notifications
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Send sends a desktop notification using notify-send
func Send(title, body string, urgency Urgency, icon string) error {
	args := []string{title, body}

	if urgency != "" {
		args = append(args, "--urgency="+string(urgency))
	}

	if icon != "" {
		args = append(args, "--icon="+icon)
	}

	cmd := exec.Command("notify-send", args...)
	return cmd.Run()
}

// Info sends an informational notification
func Info(title, body string) error {
	return Send(title, body, UrgencyNormal, "audio-input-microphone")
}

// Warning sends a warning notification
func Warning(title, body string) error {
	return Send(title, body, UrgencyLow, "dialog-warning")
}

// Error sends an error notification
func Error(title, body string) error {
	return Send(title, body, UrgencyCritical, "dialog-error")
}

// RecordingStarted notifies that a capture session began
func RecordingStarted() error {
	return Info("Voice Recording", "Recording from microphone...")
}

// RecordingSaved notifies that a recording was committed to disk
func RecordingSaved(filename string, duration time.Duration) error {
	body := fmt.Sprintf("%s saved (%s)", filename, duration.Round(time.Second))
	return Info("Voice Recording Complete", body)
}

// RecordingFailed notifies about a failed session
func RecordingFailed(reason string) error {
	return Error("Voice Recording Failed", reason)
}

// SessionsRecovered notifies how recovery handled crashed sessions
func SessionsRecovered(completed, discarded int) error {
	body := fmt.Sprintf("%d recovered, %d discarded", completed, discarded)
	return Warning("Voice Recording Recovery", body)
}
