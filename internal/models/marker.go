package models

import (
	"fmt"
	"time"
)

// MarkerState is the commit state of a recording session's durable marker.
// Transitions are strictly monotonic: in_progress -> finalizing -> complete.
type MarkerState string

const (
	MarkerInProgress MarkerState = "in_progress"
	MarkerFinalizing MarkerState = "finalizing"
	MarkerComplete   MarkerState = "complete"
)

// rank orders marker states for monotonicity checks
func (s MarkerState) rank() int {
	switch s {
	case MarkerInProgress:
		return 0
	case MarkerFinalizing:
		return 1
	case MarkerComplete:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving to next preserves monotonic ordering
func (s MarkerState) CanTransitionTo(next MarkerState) bool {
	return next.rank() > s.rank()
}

// Marker is the durable transaction-log record for one recording session.
// It is created when the session starts and survives a process crash; the
// recovery scanner reconciles any marker not left at complete.
type Marker struct {
	ID              string      `json:"id"`
	StartTime       time.Time   `json:"start_time"`
	State           MarkerState `json:"state"`
	StatusChannelID string      `json:"status_channel_id,omitempty"`
	TempLocation    string      `json:"temp_location"`
	FinalLocation   string      `json:"final_location"`
}

// Validate checks the fields required for crash recovery
func (m *Marker) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("marker missing id")
	}
	if m.State.rank() < 0 {
		return fmt.Errorf("marker %s: unknown state %q", m.ID, m.State)
	}
	if m.TempLocation == "" || m.FinalLocation == "" {
		return fmt.Errorf("marker %s: missing file locations", m.ID)
	}
	return nil
}
