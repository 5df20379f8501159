package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/capture"
	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/session"
	"github.com/voxkeep/voxkeep/internal/status"
	"github.com/voxkeep/voxkeep/internal/writer"
)

// statusInterval is how often the supervisor offers a status update; the
// throttle decides which attempts actually go out.
const statusInterval = 5 * time.Second

// DeviceFactory creates the capture device for a new session
type DeviceFactory func() capture.Device

type stopWaiter struct {
	id   string
	done chan struct{}
	rec  models.CompletedRecording
	err  error
}

// Supervisor is the single-writer coordinator for recording sessions. All
// public operations serialize on one mutex; at most one capture session
// exists at any instant. Disk I/O never happens here — frames are handed
// to the file writer over its bounded queue.
type Supervisor struct {
	cfg       *config.Config
	w         *writer.Writer
	pub       status.Publisher
	newDevice DeviceFactory
	log       *zap.Logger

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time

	// OnStarted and OnCommitted are invoked outside the lock after a
	// session starts / commits. Used for notifications and downstream
	// sinks; both may be nil and must not block for long.
	OnStarted   func(id string)
	OnCommitted func(rec models.CompletedRecording)

	mu          sync.Mutex
	state       models.SupervisorState
	sess        *session.Session
	dev         capture.Device
	pendingStop *stopWaiter
	lastID      string
	lastRec     models.CompletedRecording
	lastErr     error

	// Disk-failure overflow: once the writer reports a storage error we
	// keep capturing into memory up to the configured bound, then
	// force-stop instead of losing the session silently. The buffer is
	// handed back to the writer for one retry flush during stop.
	diskErr       error
	overflowBuf   []byte
	overflowFired bool

	statusCancel context.CancelFunc
	failsafe     *time.Timer
}

// New creates a Supervisor
func New(cfg *config.Config, w *writer.Writer, pub status.Publisher, newDevice DeviceFactory, log *zap.Logger) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		w:         w,
		pub:       pub,
		newDevice: newDevice,
		log:       log,
		clock:     time.Now,
		state:     models.StateIdle,
	}
}

// OnWriterError is wired as the file writer's error callback. It flips the
// supervisor into the in-memory overflow mode for the affected session.
func (s *Supervisor) OnWriterError(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil && s.sess.ID == id && s.diskErr == nil {
		s.diskErr = err
		s.log.Error("disk error during recording, buffering in memory",
			zap.String("session", id), zap.Error(err))
	}
}

// Start begins a new recording session and returns its id. Fails with
// ErrAlreadyRecording if a session is active. A start arriving while a
// stop is in flight waits for idle instead of racing the teardown.
func (s *Supervisor) Start() (string, error) {
	s.mu.Lock()
	for s.state == models.StateStopping {
		ps := s.pendingStop
		s.mu.Unlock()
		if ps != nil {
			<-ps.done
		}
		s.mu.Lock()
	}
	if s.state != models.StateIdle {
		s.mu.Unlock()
		return "", models.ErrAlreadyRecording
	}
	s.state = models.StateStarting
	s.mu.Unlock()

	id := uuid.NewString()
	now := s.clock()
	m := models.Marker{
		ID:              id,
		StartTime:       now,
		State:           models.MarkerInProgress,
		StatusChannelID: uuid.NewString(),
		TempLocation:    s.w.TempPath(id),
		FinalLocation:   filepath.Join(s.cfg.RecordingsDir, id+".wav"),
	}

	// Durable in_progress marker before the hardware opens.
	if err := s.w.Begin(m); err != nil {
		s.toIdle()
		return "", err
	}

	sess := session.New(id, m.StatusChannelID, now)
	dev := s.newDevice()
	if err := dev.Start(s.chunkFunc(sess)); err != nil {
		// No audio ever existed; discard the marker, not complete it.
		if derr := s.w.Discard(id); derr != nil {
			s.log.Warn("discard after failed start", zap.String("session", id), zap.Error(derr))
		}
		s.toIdle()
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.sess = sess
	s.dev = dev
	s.state = models.StateRecording
	s.diskErr = nil
	s.overflowBuf = nil
	s.overflowFired = false
	s.statusCancel = cancel
	s.failsafe = time.AfterFunc(s.cfg.MaxSessionDuration, func() { s.failsafeStop(id) })
	s.mu.Unlock()

	go s.statusLoop(ctx, sess)

	s.log.Info("recording started", zap.String("session", id),
		zap.String("temp", m.TempLocation))
	if s.OnStarted != nil {
		s.OnStarted(id)
	}
	return id, nil
}

// chunkFunc builds the capture callback for one session. It runs on the
// capture pump goroutine; the chunk is already an owned copy.
func (s *Supervisor) chunkFunc(sess *session.Session) capture.ChunkFunc {
	return func(c capture.Chunk) {
		if sess.Paused() {
			return
		}
		sess.ObserveChunk(c.Data)

		s.mu.Lock()
		if s.diskErr != nil {
			s.overflowBuf = append(s.overflowBuf, c.Data...)
			buffered := len(s.overflowBuf)
			over := buffered > s.cfg.OverflowLimitBytes && !s.overflowFired
			if over {
				s.overflowFired = true
			}
			s.mu.Unlock()
			if over {
				s.log.Error("overflow limit reached, force-stopping",
					zap.String("session", sess.ID), zap.Int("buffered", buffered))
				go s.StopCurrent()
			}
			return
		}
		s.mu.Unlock()

		// Blocking submit: backpressure comes from the bounded queue.
		s.w.Append(sess.ID, c.Data)
	}
}

// Stop ends the session with the given id and returns the committed
// recording. A second caller during an in-flight stop waits for that stop
// and receives the same result; calling Stop again after completion
// replays the result instead of re-finalizing.
func (s *Supervisor) Stop(id string) (models.CompletedRecording, error) {
	s.mu.Lock()
	if ps := s.pendingStop; ps != nil && ps.id == id {
		s.mu.Unlock()
		<-ps.done
		return ps.rec, ps.err
	}
	if s.lastID == id {
		rec, err := s.lastRec, s.lastErr
		s.mu.Unlock()
		return rec, err
	}
	if s.sess == nil || s.sess.ID != id {
		s.mu.Unlock()
		return models.CompletedRecording{}, models.ErrInvalidSession
	}

	ps := &stopWaiter{id: id, done: make(chan struct{})}
	s.pendingStop = ps
	s.state = models.StateStopping
	sess := s.sess
	dev := s.dev
	cancel := s.statusCancel
	failsafe := s.failsafe
	s.mu.Unlock()

	if failsafe != nil {
		failsafe.Stop()
	}
	cancel()

	// Hardware teardown first: once Stop returns, every chunk has been
	// submitted, and FIFO ordering puts finalize after all of them.
	if err := dev.Stop(); err != nil {
		s.log.Warn("device stop", zap.String("session", id), zap.Error(err))
	}

	// Anything held in memory since a disk error gets one retry flush;
	// a disk that recovered commits the whole session, not just the
	// bytes written before the failure.
	s.mu.Lock()
	buffered := s.overflowBuf
	hadDiskErr := s.diskErr != nil
	s.overflowBuf = nil
	s.mu.Unlock()
	if hadDiskErr {
		if rerr := s.w.Retry(id, buffered); rerr != nil {
			s.log.Error("retry flush failed, buffered audio lost",
				zap.String("session", id), zap.Int("buffered", len(buffered)),
				zap.Error(rerr))
		} else {
			s.log.Info("disk recovered, buffered audio flushed",
				zap.String("session", id), zap.Int("buffered", len(buffered)))
		}
	}

	rec, err := s.w.Finalize(id)
	if err == nil {
		// Report wall-clock session duration, not payload length;
		// paused stretches count toward elapsed time.
		rec.Duration = s.clock().Sub(sess.StartTime)
	} else {
		s.log.Error("finalize failed, marker left for recovery",
			zap.String("session", id), zap.Error(err))
	}

	// Final inactive update, then the end-of-session signal.
	s.publish(sess, false)
	if cerr := s.pub.Close(sess.StatusChannelID); cerr != nil {
		s.log.Warn("status close", zap.Error(cerr))
	}

	s.mu.Lock()
	s.sess = nil
	s.dev = nil
	s.state = models.StateIdle
	s.diskErr = nil
	// Success or typed failure, the outcome is recorded so a repeated
	// stop replays it instead of ErrInvalidSession.
	s.lastID = id
	s.lastRec = rec
	s.lastErr = err
	ps.rec = rec
	ps.err = err
	s.pendingStop = nil
	close(ps.done)
	s.mu.Unlock()

	if err == nil {
		s.log.Info("recording stopped", zap.String("session", id),
			zap.Duration("duration", rec.Duration), zap.String("file", rec.FinalLocation))
		if s.OnCommitted != nil {
			s.OnCommitted(rec)
		}
	}
	return rec, err
}

// StopCurrent stops whatever session is active. Returns (nil, nil) when
// nothing is active — a no-op, not an error, so hardware triggers can
// fire it blindly.
func (s *Supervisor) StopCurrent() (*models.CompletedRecording, error) {
	s.mu.Lock()
	if ps := s.pendingStop; ps != nil {
		s.mu.Unlock()
		<-ps.done
		if ps.err != nil {
			return nil, ps.err
		}
		rec := ps.rec
		return &rec, nil
	}
	if s.sess == nil {
		s.mu.Unlock()
		return nil, nil
	}
	id := s.sess.ID
	s.mu.Unlock()

	rec, err := s.Stop(id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Pause suspends capture without closing the file. Stale ids are a logged
// no-op.
func (s *Supervisor) Pause(id string) {
	s.mu.Lock()
	if s.sess == nil || s.sess.ID != id || s.state != models.StateRecording {
		s.mu.Unlock()
		s.log.Warn("pause ignored for stale session", zap.String("session", id))
		return
	}
	s.sess.SetPaused(true)
	s.state = models.StatePaused
	sess := s.sess
	s.mu.Unlock()

	s.log.Info("recording paused", zap.String("session", id))
	s.publish(sess, true)
}

// Resume continues a paused session. Stale ids are a logged no-op.
func (s *Supervisor) Resume(id string) {
	s.mu.Lock()
	if s.sess == nil || s.sess.ID != id || s.state != models.StatePaused {
		s.mu.Unlock()
		s.log.Warn("resume ignored for stale session", zap.String("session", id))
		return
	}
	s.sess.SetPaused(false)
	s.state = models.StateRecording
	sess := s.sess
	s.mu.Unlock()

	s.log.Info("recording resumed", zap.String("session", id))
	s.publish(sess, true)
}

// Status returns a snapshot of the current state
func (s *Supervisor) Status() models.RecordingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := models.RecordingStatus{}
	if s.sess == nil {
		return st
	}
	st.IsRecording = true
	st.IsPaused = s.state == models.StatePaused
	st.SessionID = s.sess.ID
	st.StartTime = s.sess.StartTime
	st.Elapsed = s.clock().Sub(s.sess.StartTime).Round(time.Second).String()
	st.TempFile = s.w.TempPath(s.sess.ID)
	st.Levels = s.sess.Levels()
	return st
}

// State returns the supervisor state
func (s *Supervisor) State() models.SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops any active session; used at daemon shutdown
func (s *Supervisor) Close() error {
	_, err := s.StopCurrent()
	return err
}

func (s *Supervisor) toIdle() {
	s.mu.Lock()
	s.state = models.StateIdle
	s.mu.Unlock()
}

func (s *Supervisor) failsafeStop(id string) {
	s.mu.Lock()
	active := s.sess != nil && s.sess.ID == id
	s.mu.Unlock()
	if !active {
		return
	}
	s.log.Warn("session hit the hard duration ceiling, auto-stopping",
		zap.String("session", id), zap.Duration("ceiling", s.cfg.MaxSessionDuration))
	if _, err := s.Stop(id); err != nil {
		s.log.Error("failsafe stop failed", zap.String("session", id), zap.Error(err))
	}
}

func (s *Supervisor) statusLoop(ctx context.Context, sess *session.Session) {
	s.publish(sess, true)

	t := time.NewTicker(statusInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.publish(sess, true)
		}
	}
}

func (s *Supervisor) publish(sess *session.Session, active bool) {
	now := s.clock()
	u := status.Update{
		Channel:        sess.StatusChannelID,
		SessionID:      sess.ID,
		StartedAt:      sess.StartTime,
		ElapsedSeconds: now.Sub(sess.StartTime).Seconds(),
		Active:         active,
		Paused:         sess.Paused(),
		Levels:         sess.Levels(),
		UpdatedAt:      now,
	}
	if err := s.pub.Publish(u); err != nil {
		s.log.Warn("status publish", zap.String("session", sess.ID), zap.Error(err))
	}
}

// Describe renders a one-line state summary for logs and doctor output
func (s *Supervisor) Describe() string {
	st := s.Status()
	if !st.IsRecording {
		return "idle"
	}
	if st.IsPaused {
		return fmt.Sprintf("paused (%s, %s)", st.SessionID, st.Elapsed)
	}
	return fmt.Sprintf("recording (%s, %s)", st.SessionID, st.Elapsed)
}
