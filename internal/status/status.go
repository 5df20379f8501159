package status

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voxkeep/voxkeep/internal/session"
)

// Update is the payload handed to the status-display collaborator. It is
// intentionally small: a session id, timing, and at most RingSize recent
// level samples.
type Update struct {
	Channel        string    `json:"channel"`
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Active         bool      `json:"active"`
	Paused         bool      `json:"paused"`
	Levels         []float64 `json:"levels,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Publisher delivers updates to a status display. Close is the
// end-of-session signal, sent after the final inactive update.
type Publisher interface {
	Publish(u Update) error
	Close(channel string) error
}

// Throttle enforces the external publish budget: at most cap updates in
// any sliding window. Spacing successive sends at least window/cap apart
// guarantees the sliding-window bound. Over-budget updates are skipped,
// never queued — the next allowed send carries fresh data. The final
// inactive update bypasses the budget; the display must always learn the
// session ended.
type Throttle struct {
	inner   Publisher
	limiter *rate.Limiter
	log     *zap.Logger

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

// NewThrottle wraps inner with a cap-per-window budget
func NewThrottle(inner Publisher, cap int, window time.Duration, log *zap.Logger) *Throttle {
	if cap < 1 {
		cap = 1
	}
	return &Throttle{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(cap)), 1),
		log:     log,
		clock:   time.Now,
	}
}

// Publish sends u if the budget allows, or drops it. Inactive updates
// always go through.
func (t *Throttle) Publish(u Update) error {
	if len(u.Levels) > session.RingSize {
		u.Levels = u.Levels[len(u.Levels)-session.RingSize:]
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = t.clock()
	}

	if !u.Active {
		return t.inner.Publish(u)
	}
	if !t.limiter.AllowN(t.clock(), 1) {
		t.log.Debug("status update skipped, over budget",
			zap.String("session", u.SessionID))
		return nil
	}
	return t.inner.Publish(u)
}

// Close passes the end-of-session signal through
func (t *Throttle) Close(channel string) error {
	return t.inner.Close(channel)
}

// Multi fans one update out to several publishers. A failing publisher is
// logged and does not stop the others.
type Multi struct {
	publishers []Publisher
	log        *zap.Logger
}

// NewMulti creates a fan-out publisher
func NewMulti(log *zap.Logger, pubs ...Publisher) *Multi {
	return &Multi{publishers: pubs, log: log}
}

func (m *Multi) Publish(u Update) error {
	for _, p := range m.publishers {
		if err := p.Publish(u); err != nil {
			m.log.Warn("status publish failed", zap.Error(err))
		}
	}
	return nil
}

func (m *Multi) Close(channel string) error {
	for _, p := range m.publishers {
		if err := p.Close(channel); err != nil {
			m.log.Warn("status close failed", zap.Error(err))
		}
	}
	return nil
}
