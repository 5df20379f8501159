package models

import "time"

// SupervisorState represents the current state of the recording supervisor
type SupervisorState string

const (
	StateIdle      SupervisorState = "idle"
	StateStarting  SupervisorState = "starting"
	StateRecording SupervisorState = "recording"
	StatePaused    SupervisorState = "paused"
	StateStopping  SupervisorState = "stopping"
)

// CompletedRecording is the result of a successfully finalized session
type CompletedRecording struct {
	ID            string        `json:"id"`
	Duration      time.Duration `json:"duration"`
	FinalLocation string        `json:"final_location"`
	Bytes         int64         `json:"bytes"`
}

// RecordingStatus is used for CLI/API status responses
type RecordingStatus struct {
	IsRecording bool      `json:"is_recording"`
	IsPaused    bool      `json:"is_paused"`
	SessionID   string    `json:"session_id,omitempty"`
	StartTime   time.Time `json:"start_time,omitempty"`
	Elapsed     string    `json:"elapsed,omitempty"`
	TempFile    string    `json:"temp_file,omitempty"`
	Levels      []float64 `json:"levels,omitempty"`
}
