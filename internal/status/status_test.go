package status

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingPublisher struct {
	updates []Update
	closed  []string
}

func (r *recordingPublisher) Publish(u Update) error {
	r.updates = append(r.updates, u)
	return nil
}

func (r *recordingPublisher) Close(channel string) error {
	r.closed = append(r.closed, channel)
	return nil
}

func TestThrottleSlidingWindowCap(t *testing.T) {
	inner := &recordingPublisher{}
	th := NewThrottle(inner, 8, 15*time.Minute, zap.NewNop())

	// Simulate a 16-minute session attempting an update every 10 seconds.
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	th.clock = func() time.Time { return now }

	var sentAt []time.Time
	for elapsed := time.Duration(0); elapsed <= 16*time.Minute; elapsed += 10 * time.Second {
		now = base.Add(elapsed)
		before := len(inner.updates)
		th.Publish(Update{Channel: "c", SessionID: "A", Active: true})
		if len(inner.updates) > before {
			sentAt = append(sentAt, now)
		}
	}

	if len(sentAt) == 0 {
		t.Fatal("expected some updates to be sent")
	}

	// No 15-minute sliding window may contain more than 8 sends.
	for i := range sentAt {
		count := 0
		for j := i; j < len(sentAt); j++ {
			if sentAt[j].Sub(sentAt[i]) < 15*time.Minute {
				count++
			}
		}
		if count > 8 {
			t.Fatalf("window starting %s holds %d sends, cap is 8", sentAt[i], count)
		}
	}
}

func TestThrottleFinalInactiveBypassesBudget(t *testing.T) {
	inner := &recordingPublisher{}
	th := NewThrottle(inner, 1, time.Hour, zap.NewNop())

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	th.clock = func() time.Time { return now }

	th.Publish(Update{Channel: "c", SessionID: "A", Active: true})
	now = now.Add(time.Second)
	th.Publish(Update{Channel: "c", SessionID: "A", Active: true}) // over budget
	now = now.Add(time.Second)
	th.Publish(Update{Channel: "c", SessionID: "A", Active: false}) // final

	if len(inner.updates) != 2 {
		t.Fatalf("expected 2 delivered updates, got %d", len(inner.updates))
	}
	last := inner.updates[len(inner.updates)-1]
	if last.Active {
		t.Error("expected the final delivered update to be inactive")
	}
}

func TestThrottleSkipsDoNotQueue(t *testing.T) {
	inner := &recordingPublisher{}
	th := NewThrottle(inner, 2, time.Minute, zap.NewNop())

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	th.clock = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		th.Publish(Update{Channel: "c", SessionID: "A", Active: true, ElapsedSeconds: float64(i)})
	}

	if len(inner.updates) != 1 {
		t.Fatalf("expected only the first burst update through, got %d", len(inner.updates))
	}

	// After the spacing interval the next send carries the latest value,
	// not a replay of the skipped ones.
	now = now.Add(31 * time.Second)
	th.Publish(Update{Channel: "c", SessionID: "A", Active: true, ElapsedSeconds: 99})

	if len(inner.updates) != 2 {
		t.Fatalf("expected second update after interval, got %d", len(inner.updates))
	}
	if inner.updates[1].ElapsedSeconds != 99 {
		t.Errorf("expected latest value 99, got %f", inner.updates[1].ElapsedSeconds)
	}
}

func TestThrottleClampsLevels(t *testing.T) {
	inner := &recordingPublisher{}
	th := NewThrottle(inner, 8, time.Minute, zap.NewNop())

	levels := make([]float64, 50)
	for i := range levels {
		levels[i] = float64(i)
	}
	th.Publish(Update{Channel: "c", SessionID: "A", Active: true, Levels: levels})

	if len(inner.updates) != 1 {
		t.Fatal("expected update delivered")
	}
	got := inner.updates[0].Levels
	if len(got) != 32 {
		t.Fatalf("expected levels clamped to 32, got %d", len(got))
	}
	if got[len(got)-1] != 49 {
		t.Errorf("expected newest samples kept, last=%f", got[len(got)-1])
	}
}

func TestFilePublisherRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePublisher(dir)

	u := Update{
		Channel:        "chan1",
		SessionID:      "A",
		StartedAt:      time.Now().Add(-time.Minute),
		ElapsedSeconds: 60,
		Active:         true,
		Levels:         []float64{0.1, 0.2},
		UpdatedAt:      time.Now(),
	}
	if err := p.Publish(u); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := ReadChannel(dir, "chan1")
	if err != nil {
		t.Fatalf("ReadChannel: %v", err)
	}
	if got.SessionID != "A" || !got.Active || len(got.Levels) != 2 {
		t.Errorf("unexpected update read back: %+v", got)
	}

	if !Live(dir, "chan1", time.Minute) {
		t.Error("expected channel to be live")
	}

	latest, err := ReadLatest(dir)
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if latest == nil || latest.SessionID != "A" {
		t.Errorf("expected latest update for A, got %+v", latest)
	}

	if err := p.Close("chan1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if Live(dir, "chan1", time.Minute) {
		t.Error("expected channel dead after Close")
	}
	if _, err := ReadChannel(dir, "chan1"); err == nil {
		t.Error("expected channel file removed after Close")
	}

	// Close is idempotent
	if err := p.Close("chan1"); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLiveRejectsStale(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePublisher(dir)

	p.Publish(Update{
		Channel:   "c",
		SessionID: "A",
		Active:    true,
		UpdatedAt: time.Now().Add(-time.Hour),
	})

	if Live(dir, "c", time.Minute) {
		t.Error("expected stale channel not to be live")
	}
	if Live(dir, "", time.Minute) {
		t.Error("empty channel must never be live")
	}
}
