package session

import (
	"math"
	"sync"
	"time"
)

const (
	// RingSize caps the recent-level ring so status payloads stay small
	RingSize = 32

	// levelAlpha is the one-pole smoothing coefficient:
	// level = alpha*instant + (1-alpha)*previous
	levelAlpha = 0.2
)

// Session is the in-memory state of one in-flight recording. It exists
// only while recording is active; its durable shadow is the marker plus
// the temp audio file. The level data feeds status display only, never
// control decisions.
type Session struct {
	ID              string
	StatusChannelID string
	StartTime       time.Time

	mu     sync.Mutex
	paused bool
	level  float64
	ring   [RingSize]float64
	count  int
	next   int
	frames uint64
	bytes  int64
}

// New creates a session
func New(id, statusChannelID string, start time.Time) *Session {
	return &Session{ID: id, StatusChannelID: statusChannelID, StartTime: start}
}

// ObserveChunk meters one chunk of LINEAR16 little-endian PCM
func (s *Session) ObserveChunk(b []byte) {
	instant := rmsLevel(b)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.level = levelAlpha*instant + (1-levelAlpha)*s.level
	s.ring[s.next] = s.level
	s.next = (s.next + 1) % RingSize
	if s.count < RingSize {
		s.count++
	}
	s.frames++
	s.bytes += int64(len(b))
}

// SetPaused toggles the paused flag
func (s *Session) SetPaused(p bool) {
	s.mu.Lock()
	s.paused = p
	s.mu.Unlock()
}

// Paused reports whether capture is paused
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Level returns the current smoothed level in [0,1]
func (s *Session) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Levels returns the recent smoothed levels, oldest first, at most RingSize
func (s *Session) Levels() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, 0, s.count)
	start := s.next - s.count
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[((start+i)%RingSize+RingSize)%RingSize])
	}
	return out
}

// Frames returns the number of chunks observed
func (s *Session) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Bytes returns the number of payload bytes observed
func (s *Session) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// rmsLevel computes the normalized RMS of 16-bit little-endian samples
func rmsLevel(b []byte) float64 {
	n := len(b) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		f := float64(v) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}
