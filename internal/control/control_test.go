package control

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/capture"
	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/marker"
	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/status"
	"github.com/voxkeep/voxkeep/internal/supervisor"
	"github.com/voxkeep/voxkeep/internal/wav"
	"github.com/voxkeep/voxkeep/internal/writer"
)

type fakeDevice struct {
	mu sync.Mutex
	fn capture.ChunkFunc
}

func (d *fakeDevice) Start(fn capture.ChunkFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = nil
	return nil
}

func (d *fakeDevice) Feed(b []byte) {
	d.mu.Lock()
	fn := d.fn
	d.mu.Unlock()
	if fn != nil {
		fn(capture.Chunk{Data: b, Time: time.Now()})
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(status.Update) error { return nil }
func (nopPublisher) Close(string) error          { return nil }

// newTestClient spins up the full supervisor stack behind an httptest
// server and returns a client talking to it.
func newTestClient(t *testing.T) (*Client, *fakeDevice) {
	t.Helper()

	root := t.TempDir()
	spool := filepath.Join(root, "spool")
	markers := filepath.Join(root, "markers")
	finals := filepath.Join(root, "recordings")
	for _, d := range []string{spool, markers, finals} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.RecordingsDir = finals

	store := marker.NewStore(markers, zap.NewNop())
	w := writer.New(store, writer.Options{
		SpoolDir: spool,
		Format:   wav.Format{SampleRate: cfg.Format.SampleRate, Channels: cfg.Format.Channels},
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(cancel)

	dev := &fakeDevice{}
	sup := supervisor.New(&cfg, w, nopPublisher{}, func() capture.Device { return dev }, zap.NewNop())

	srv := NewServer("127.0.0.1:0", sup, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { sup.Close() })

	return NewClient(strings.TrimPrefix(ts.URL, "http://")), dev
}

func TestStartStatusStopRoundTrip(t *testing.T) {
	c, dev := newTestClient(t)

	if !c.Ping() {
		t.Fatal("expected daemon reachable")
	}

	id, err := c.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id == "" {
		t.Fatal("expected a session id")
	}

	dev.Feed(make([]byte, 4096))

	st, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.IsRecording || st.SessionID != id {
		t.Errorf("unexpected status %+v", st)
	}

	rec, err := c.Stop(id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rec == nil || rec.ID != id {
		t.Fatalf("unexpected recording %+v", rec)
	}
	if _, err := os.Stat(rec.FinalLocation); err != nil {
		t.Errorf("final file missing: %v", err)
	}
}

func TestConflictMapsToAlreadyRecording(t *testing.T) {
	c, _ := newTestClient(t)

	if _, err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := c.Start()
	if !errors.Is(err, models.ErrAlreadyRecording) {
		t.Errorf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestStopUnknownMapsToInvalidSession(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Stop("no-such-id")
	if !errors.Is(err, models.ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}
}

func TestStopCurrentIdleIsNoop(t *testing.T) {
	c, _ := newTestClient(t)

	rec, err := c.StopCurrent()
	if err != nil {
		t.Fatalf("StopCurrent: %v", err)
	}
	if rec != nil {
		t.Errorf("expected no recording when idle, got %+v", rec)
	}
}

func TestPauseResumeOverAPI(t *testing.T) {
	c, _ := newTestClient(t)

	id, err := c.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Pause(id); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	st, _ := c.Status()
	if !st.IsPaused {
		t.Error("expected paused status")
	}

	if err := c.Resume(id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	st, _ = c.Status()
	if st.IsPaused {
		t.Error("expected resumed status")
	}
}
