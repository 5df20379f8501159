package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/capture"
	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/marker"
	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/status"
	"github.com/voxkeep/voxkeep/internal/wav"
	"github.com/voxkeep/voxkeep/internal/writer"
)

type fakeDevice struct {
	mu       sync.Mutex
	fn       capture.ChunkFunc
	startErr error
	stops    int

	// stopGate, when set, blocks Stop until the channel closes
	stopGate chan struct{}
}

func (d *fakeDevice) Start(fn capture.ChunkFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.fn = fn
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	gate := d.stopGate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
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

type capturePublisher struct {
	mu      sync.Mutex
	updates []status.Update
	closed  []string
}

func (p *capturePublisher) Publish(u status.Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return nil
}

func (p *capturePublisher) Close(channel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, channel)
	return nil
}

func (p *capturePublisher) last() *status.Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updates) == 0 {
		return nil
	}
	u := p.updates[len(p.updates)-1]
	return &u
}

type fixture struct {
	sup    *Supervisor
	dev    *fakeDevice
	pub    *capturePublisher
	store  *marker.Store
	cfg    *config.Config
	cancel context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
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
	dev := &fakeDevice{}
	pub := &capturePublisher{}

	var sup *Supervisor
	w := writer.New(store, writer.Options{
		SpoolDir:       spool,
		Format:         wav.Format{SampleRate: cfg.Format.SampleRate, Channels: cfg.Format.Channels},
		FlushThreshold: cfg.FlushThresholdBytes,
		OnError: func(id string, err error) {
			sup.OnWriterError(id, err)
		},
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(cancel)

	sup = New(&cfg, w, pub, func() capture.Device { return dev }, zap.NewNop())
	return &fixture{sup: sup, dev: dev, pub: pub, store: store, cfg: &cfg, cancel: cancel}
}

func TestStartStopHappyPath(t *testing.T) {
	fx := newFixture(t)

	id, err := fx.sup.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id == "" {
		t.Fatal("expected a session id")
	}
	if fx.sup.State() != models.StateRecording {
		t.Errorf("expected recording state, got %s", fx.sup.State())
	}

	chunk := make([]byte, 4096)
	for i := 0; i < 12; i++ {
		fx.dev.Feed(append([]byte(nil), chunk...))
	}

	rec, err := fx.sup.Stop(id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if rec.ID != id {
		t.Errorf("expected result for %s, got %s", id, rec.ID)
	}
	if rec.Bytes != 12*4096 {
		t.Errorf("expected %d bytes, got %d", 12*4096, rec.Bytes)
	}
	if rec.Duration < 0 || rec.Duration > 10*time.Second {
		t.Errorf("expected duration near elapsed time, got %s", rec.Duration)
	}

	fi, err := os.Stat(rec.FinalLocation)
	if err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if fi.Size() != wav.HeaderSize+12*4096 {
		t.Errorf("unexpected final size %d", fi.Size())
	}

	m, err := fx.store.Get(id)
	if err != nil {
		t.Fatalf("marker missing: %v", err)
	}
	if m.State != models.MarkerComplete {
		t.Errorf("expected complete marker, got %s", m.State)
	}

	if fx.sup.State() != models.StateIdle {
		t.Errorf("expected idle after stop, got %s", fx.sup.State())
	}
	if fx.dev.stops != 1 {
		t.Errorf("expected one device stop, got %d", fx.dev.stops)
	}
}

func TestSingleFlight(t *testing.T) {
	fx := newFixture(t)

	id, err := fx.sup.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := fx.sup.Start(); !errors.Is(err, models.ErrAlreadyRecording) {
		t.Errorf("expected ErrAlreadyRecording, got %v", err)
	}

	if _, err := fx.sup.Stop(id); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Idle again: a new start succeeds
	id2, err := fx.sup.Start()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if id2 == id {
		t.Error("expected a fresh session id")
	}
	fx.sup.Stop(id2)
}

func TestStopWrongID(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	defer fx.sup.Stop(id)

	if _, err := fx.sup.Stop("bogus"); !errors.Is(err, models.ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	fx.dev.Feed(make([]byte, 4096))

	first, err := fx.sup.Stop(id)
	if err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	second, err := fx.sup.Stop(id)
	if err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if first.ID != second.ID || first.Bytes != second.Bytes ||
		first.FinalLocation != second.FinalLocation || first.Duration != second.Duration {
		t.Errorf("expected identical results, got %+v vs %+v", first, second)
	}

	// The second call must not have re-finalized
	fi, err := os.Stat(first.FinalLocation)
	if err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if fi.Size() != wav.HeaderSize+4096 {
		t.Errorf("final file changed size: %d", fi.Size())
	}
}

func TestConcurrentStopJoins(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	fx.dev.Feed(make([]byte, 4096))

	type outcome struct {
		rec models.CompletedRecording
		err error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			rec, err := fx.sup.Stop(id)
			results <- outcome{rec, err}
		}()
	}

	a := <-results
	b := <-results
	if a.err != nil || b.err != nil {
		t.Fatalf("stop errors: %v / %v", a.err, b.err)
	}
	if a.rec != b.rec {
		t.Errorf("expected both callers to receive the same result: %+v vs %+v", a.rec, b.rec)
	}
}

func TestStopCurrent(t *testing.T) {
	fx := newFixture(t)

	// Nothing active: no-op, not an error
	rec, err := fx.sup.StopCurrent()
	if err != nil {
		t.Fatalf("StopCurrent idle: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil result when idle, got %+v", rec)
	}

	id, _ := fx.sup.Start()
	rec, err = fx.sup.StopCurrent()
	if err != nil {
		t.Fatalf("StopCurrent active: %v", err)
	}
	if rec == nil || rec.ID != id {
		t.Errorf("expected result for %s, got %+v", id, rec)
	}
}

func TestPauseResume(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()

	fx.dev.Feed(make([]byte, 4096))

	fx.sup.Pause(id)
	if fx.sup.State() != models.StatePaused {
		t.Errorf("expected paused state, got %s", fx.sup.State())
	}
	// Frames during pause are not captured
	fx.dev.Feed(make([]byte, 4096))
	fx.dev.Feed(make([]byte, 4096))

	fx.sup.Resume(id)
	if fx.sup.State() != models.StateRecording {
		t.Errorf("expected recording state, got %s", fx.sup.State())
	}
	fx.dev.Feed(make([]byte, 4096))

	rec, err := fx.sup.Stop(id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rec.Bytes != 2*4096 {
		t.Errorf("expected paused frames dropped, got %d bytes", rec.Bytes)
	}
}

func TestPauseResumeStaleID(t *testing.T) {
	fx := newFixture(t)

	// No session at all: logged no-ops
	fx.sup.Pause("stale")
	fx.sup.Resume("stale")

	id, _ := fx.sup.Start()
	fx.sup.Pause("other")
	if fx.sup.State() != models.StateRecording {
		t.Errorf("pause with stale id must not change state, got %s", fx.sup.State())
	}
	fx.sup.Stop(id)
}

func waitState(t *testing.T, sup *Supervisor, want models.SupervisorState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s state, still %s", want, sup.State())
}

func TestDiskErrorBuffersUntilStop(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	fx.dev.Feed(make([]byte, 4096))

	// Writer reports a disk error; chunks from here on are held in memory
	fx.sup.OnWriterError(id, models.ErrStorageFailure)
	for i := 0; i < 4; i++ {
		fx.dev.Feed(make([]byte, 4096))
	}

	rec, err := fx.sup.Stop(id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rec.Bytes != 5*4096 {
		t.Errorf("expected buffered audio flushed on stop, got %d bytes", rec.Bytes)
	}

	fi, err := os.Stat(rec.FinalLocation)
	if err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if fi.Size() != wav.HeaderSize+5*4096 {
		t.Errorf("unexpected final size %d", fi.Size())
	}
}

func TestDiskErrorOverflowForceStops(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.OverflowLimitBytes = 8192

	id, _ := fx.sup.Start()
	fx.sup.OnWriterError(id, models.ErrStorageFailure)

	// Third chunk pushes the in-memory buffer past the bound
	for i := 0; i < 3; i++ {
		fx.dev.Feed(make([]byte, 4096))
	}

	waitState(t, fx.sup, models.StateIdle)
	if fx.dev.stops != 1 {
		t.Errorf("expected the force-stop to tear down the device, got %d stops", fx.dev.stops)
	}

	// The session outcome is recorded; a later stop replays it
	rec, err := fx.sup.Stop(id)
	if err != nil {
		t.Fatalf("Stop after force-stop: %v", err)
	}
	if rec.Bytes != 3*4096 {
		t.Errorf("expected all buffered bytes committed, got %d", rec.Bytes)
	}
}

func TestStopStorageFailureReplays(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	fx.dev.Feed(make([]byte, 4096))

	// A directory squatting on the final location makes the commit
	// rename fail
	if err := os.MkdirAll(filepath.Join(fx.cfg.RecordingsDir, id+".wav"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := fx.sup.Stop(id)
	if !errors.Is(err, models.ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}

	// Repeated stop replays the typed failure, not ErrInvalidSession
	_, err = fx.sup.Stop(id)
	if !errors.Is(err, models.ErrStorageFailure) {
		t.Errorf("expected replayed ErrStorageFailure, got %v", err)
	}

	// Marker and temp file are left for recovery
	m, merr := fx.store.Get(id)
	if merr != nil {
		t.Fatalf("marker missing: %v", merr)
	}
	if m.State != models.MarkerFinalizing {
		t.Errorf("expected finalizing marker, got %s", m.State)
	}
	if _, serr := os.Stat(m.TempLocation); serr != nil {
		t.Errorf("expected temp file kept for recovery: %v", serr)
	}
}

func TestStartDuringStopWaitsForIdle(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	gate := make(chan struct{})
	fx.dev.mu.Lock()
	fx.dev.stopGate = gate
	fx.dev.mu.Unlock()

	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		fx.sup.Stop(id)
	}()
	waitState(t, fx.sup, models.StateStopping)

	type startResult struct {
		id  string
		err error
	}
	started := make(chan startResult, 1)
	go func() {
		id2, err := fx.sup.Start()
		started <- startResult{id2, err}
	}()

	// Start must wait out the in-flight stop, not fail fast
	select {
	case r := <-started:
		t.Fatalf("Start returned during stop: id=%q err=%v", r.id, r.err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	<-stopDone

	select {
	case r := <-started:
		if r.err != nil {
			t.Fatalf("Start after stop finished: %v", r.err)
		}
		if r.id == id {
			t.Error("expected a fresh session id")
		}
		fx.sup.Stop(r.id)
	case <-time.After(2 * time.Second):
		t.Fatal("Start never completed after stop finished")
	}
}

func TestStartFailureDiscardsMarker(t *testing.T) {
	fx := newFixture(t)
	fx.dev.startErr = models.ErrStartFailed

	_, err := fx.sup.Start()
	if !errors.Is(err, models.ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}

	markers, err := fx.store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(markers) != 0 {
		t.Errorf("expected marker discarded, found %+v", markers)
	}
	if fx.sup.State() != models.StateIdle {
		t.Errorf("expected idle after failed start, got %s", fx.sup.State())
	}

	// Recovered: device works again
	fx.dev.startErr = nil
	id, err := fx.sup.Start()
	if err != nil {
		t.Fatalf("Start after recovery: %v", err)
	}
	fx.sup.Stop(id)
}

func TestPermissionDeniedSurfaces(t *testing.T) {
	fx := newFixture(t)
	fx.dev.startErr = models.ErrPermissionDenied

	_, err := fx.sup.Start()
	if !errors.Is(err, models.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestEmptyRecordingStillCommits(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	rec, err := fx.sup.Stop(id)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	fi, err := os.Stat(rec.FinalLocation)
	if err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if fi.Size() != wav.HeaderSize {
		t.Errorf("expected header-only file, got %d bytes", fi.Size())
	}

	m, _ := fx.store.Get(id)
	if m == nil || m.State != models.MarkerComplete {
		t.Error("expected complete marker, not stuck at in_progress")
	}
}

func TestFinalInactiveUpdateAndClose(t *testing.T) {
	fx := newFixture(t)

	id, _ := fx.sup.Start()
	fx.dev.Feed(make([]byte, 4096))
	fx.sup.Stop(id)

	last := fx.pub.last()
	if last == nil {
		t.Fatal("expected status updates")
	}
	if last.Active {
		t.Error("expected final update to be inactive")
	}
	if last.SessionID != id {
		t.Errorf("expected final update for %s, got %s", id, last.SessionID)
	}

	fx.pub.mu.Lock()
	closed := len(fx.pub.closed)
	fx.pub.mu.Unlock()
	if closed != 1 {
		t.Errorf("expected one end-of-session signal, got %d", closed)
	}
}

func TestOnCommittedHook(t *testing.T) {
	fx := newFixture(t)

	var got models.CompletedRecording
	done := make(chan struct{})
	fx.sup.OnCommitted = func(rec models.CompletedRecording) {
		got = rec
		close(done)
	}

	id, _ := fx.sup.Start()
	fx.sup.Stop(id)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnCommitted not invoked")
	}
	if got.ID != id {
		t.Errorf("expected committed recording %s, got %s", id, got.ID)
	}
}
