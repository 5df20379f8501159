package session

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func pcmChunk(amplitude int16, samples int) []byte {
	b := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(amplitude))
	}
	return b
}

func TestObserveChunkSmoothing(t *testing.T) {
	s := New("A", "chan", time.Now())

	// Constant full-scale-half signal has RMS amplitude/32768
	chunk := pcmChunk(16384, 256)
	instant := 0.5

	s.ObserveChunk(chunk)
	want := levelAlpha * instant
	if math.Abs(s.Level()-want) > 1e-6 {
		t.Errorf("after one chunk expected level %f, got %f", want, s.Level())
	}

	s.ObserveChunk(chunk)
	want = levelAlpha*instant + (1-levelAlpha)*want
	if math.Abs(s.Level()-want) > 1e-6 {
		t.Errorf("after two chunks expected level %f, got %f", want, s.Level())
	}
}

func TestSilenceHasZeroLevel(t *testing.T) {
	s := New("A", "chan", time.Now())
	s.ObserveChunk(make([]byte, 512))

	if s.Level() != 0 {
		t.Errorf("expected zero level for silence, got %f", s.Level())
	}
}

func TestRingCap(t *testing.T) {
	s := New("A", "chan", time.Now())

	for i := 0; i < RingSize+10; i++ {
		s.ObserveChunk(pcmChunk(1000, 16))
	}

	levels := s.Levels()
	if len(levels) != RingSize {
		t.Fatalf("expected ring capped at %d, got %d", RingSize, len(levels))
	}

	// Smoothed level grows toward the constant signal: oldest < newest
	if levels[0] >= levels[len(levels)-1] {
		t.Errorf("expected chronological order, got first=%f last=%f",
			levels[0], levels[len(levels)-1])
	}
}

func TestCounters(t *testing.T) {
	s := New("A", "chan", time.Now())

	s.ObserveChunk(make([]byte, 4096))
	s.ObserveChunk(make([]byte, 4096))

	if s.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", s.Frames())
	}
	if s.Bytes() != 8192 {
		t.Errorf("expected 8192 bytes, got %d", s.Bytes())
	}
}

func TestPausedFlag(t *testing.T) {
	s := New("A", "chan", time.Now())

	if s.Paused() {
		t.Error("new session should not be paused")
	}
	s.SetPaused(true)
	if !s.Paused() {
		t.Error("expected paused after SetPaused(true)")
	}
	s.SetPaused(false)
	if s.Paused() {
		t.Error("expected unpaused after SetPaused(false)")
	}
}
