package recovery

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/marker"
	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/status"
	"github.com/voxkeep/voxkeep/internal/wav"
)

// liveWindow is how recently a status channel must have been updated for
// its session to count as owned by a live process instance.
const liveWindow = 15 * time.Second

// Result summarizes one reconciled marker
type Result struct {
	ID     string
	Action Action
}

// Action is what the scanner did with a marker
type Action string

const (
	ActionCompleted Action = "completed" // two-phase commit finished
	ActionDiscarded Action = "discarded" // marker and partial file removed
	ActionAdopted   Action = "left"      // live session elsewhere, untouched
)

// Scanner reconciles markers left behind by a crashed or killed process.
// It runs before the daemon accepts new start requests; anything it cannot
// reach within the startup budget is finished in the background.
type Scanner struct {
	store     *marker.Store
	statusDir string
	minValid  int64
	log       *zap.Logger

	// OnSummary, when set, receives the completed/discarded counts once a
	// RunWithBudget scan finishes. Called from the scan goroutine.
	OnSummary func(completed, discarded int)
}

// New creates a Scanner
func New(store *marker.Store, statusDir string, minValid int64, log *zap.Logger) *Scanner {
	return &Scanner{store: store, statusDir: statusDir, minValid: minValid, log: log}
}

// Scan reconciles every marker and returns what happened to each
func (s *Scanner) Scan(ctx context.Context) ([]Result, error) {
	markers, err := s.store.List()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, m := range markers {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		if r := s.reconcile(m); r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// RunWithBudget runs Scan but returns after budget even if recovery is
// still going; the scan then completes in the background. Returns whether
// recovery finished within the budget.
func (s *Scanner) RunWithBudget(ctx context.Context, budget time.Duration) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, err := s.Scan(ctx)
		if err != nil {
			s.log.Error("recovery scan failed", zap.Error(err))
			return
		}
		var completed, discarded int
		for _, r := range results {
			s.log.Info("recovered session", zap.String("session", r.ID),
				zap.String("action", string(r.Action)))
			switch r.Action {
			case ActionCompleted:
				completed++
			case ActionDiscarded:
				discarded++
			}
		}
		if s.OnSummary != nil && completed+discarded > 0 {
			s.OnSummary(completed, discarded)
		}
	}()

	select {
	case <-done:
		return true
	case <-time.After(budget):
		s.log.Warn("recovery exceeded startup budget, continuing in background",
			zap.Duration("budget", budget))
		return false
	}
}

func (s *Scanner) reconcile(m models.Marker) *Result {
	if m.State == models.MarkerComplete {
		// A complete marker whose final file is gone is garbage.
		if _, err := os.Stat(m.FinalLocation); os.IsNotExist(err) {
			s.log.Warn("complete marker without final file, removing",
				zap.String("session", m.ID))
			s.store.Remove(m.ID)
			return &Result{ID: m.ID, Action: ActionDiscarded}
		}
		return nil
	}

	// in_progress or finalizing from here on.
	if status.Live(s.statusDir, m.StatusChannelID, liveWindow) {
		// Another process instance still owns this session.
		s.log.Info("marker has a live status channel, leaving untouched",
			zap.String("session", m.ID))
		return &Result{ID: m.ID, Action: ActionAdopted}
	}

	ti, err := os.Stat(m.TempLocation)
	if err != nil {
		// Crash window between rename and the complete-marker write.
		if _, ferr := os.Stat(m.FinalLocation); ferr == nil {
			m.State = models.MarkerComplete
			if perr := s.store.Put(m); perr != nil {
				s.log.Error("mark recovered session complete",
					zap.String("session", m.ID), zap.Error(perr))
				return nil
			}
			s.log.Info("completed interrupted commit", zap.String("session", m.ID))
			return &Result{ID: m.ID, Action: ActionCompleted}
		}
		return s.discard(m)
	}

	if ti.Size()-wav.HeaderSize < s.minValid {
		return s.discard(m)
	}

	return s.commit(m)
}

// commit finishes the two-phase commit for a valid temp file
func (s *Scanner) commit(m models.Marker) *Result {
	payload, err := wav.PatchFile(m.TempLocation)
	if err != nil {
		s.log.Warn("recovered temp file unreadable, discarding",
			zap.String("session", m.ID), zap.Error(err))
		return s.discard(m)
	}

	if m.State == models.MarkerInProgress {
		m.State = models.MarkerFinalizing
		if err := s.store.Put(m); err != nil {
			s.log.Error("marker finalizing", zap.String("session", m.ID), zap.Error(err))
			return nil
		}
	}

	if err := os.Rename(m.TempLocation, m.FinalLocation); err != nil {
		// Leave everything for the next attempt.
		s.log.Error("recovery rename failed", zap.String("session", m.ID), zap.Error(err))
		return nil
	}

	m.State = models.MarkerComplete
	if err := s.store.Put(m); err != nil {
		s.log.Error("marker complete", zap.String("session", m.ID), zap.Error(err))
		return nil
	}

	s.log.Info("recovered recording committed", zap.String("session", m.ID),
		zap.String("file", m.FinalLocation), zap.Int64("bytes", payload))
	return &Result{ID: m.ID, Action: ActionCompleted}
}

// discard removes the marker and any partial file. Informational, not
// fatal: the session is gone but startup proceeds.
func (s *Scanner) discard(m models.Marker) *Result {
	os.Remove(m.TempLocation)
	if err := s.store.Remove(m.ID); err != nil {
		s.log.Error("remove marker", zap.String("session", m.ID), zap.Error(err))
		return nil
	}
	s.log.Warn("discarded unrecoverable session", zap.String("session", m.ID))
	return &Result{ID: m.ID, Action: ActionDiscarded}
}
