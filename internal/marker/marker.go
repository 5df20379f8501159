package marker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/models"
)

// Store persists one marker file per session id under a dedicated directory.
// The file writer is the sole writer while the daemon runs; the recovery
// scanner is the sole reader/mutator at startup.
type Store struct {
	dir string
	log *zap.Logger
}

// NewStore creates a marker store rooted at dir
func NewStore(dir string, log *zap.Logger) *Store {
	return &Store{dir: dir, log: log}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".marker.json")
}

// Put creates or updates a marker. State transitions must be monotonic;
// a regressive transition is rejected so a stale writer can never undo a
// commit. The write goes through a temp file and rename so a crash never
// leaves a half-written marker.
func (s *Store) Put(m models.Marker) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if existing, err := s.Get(m.ID); err == nil && existing.State != m.State {
		if !existing.State.CanTransitionTo(m.State) {
			return fmt.Errorf("marker %s: illegal transition %s -> %s", m.ID, existing.State, m.State)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path(m.ID) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, s.path(m.ID))
}

// Get reads the marker for the given session id
func (s *Store) Get(id string) (*models.Marker, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}

	var m models.Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("marker %s: %w", id, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// List returns every readable marker. Unreadable or corrupt marker files
// are removed on the spot and logged; recovery must never wedge on one
// bad record.
func (s *Store) List() ([]models.Marker, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var markers []models.Marker
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".marker.json") {
			continue
		}
		id := strings.TrimSuffix(name, ".marker.json")

		m, err := s.Get(id)
		if err != nil {
			s.log.Warn("discarding unreadable marker",
				zap.String("file", name), zap.Error(err))
			os.Remove(filepath.Join(s.dir, name))
			continue
		}
		markers = append(markers, *m)
	}

	return markers, nil
}

// Remove deletes the marker for the given session id
func (s *Store) Remove(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
