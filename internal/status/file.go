package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const channelSuffix = ".status.json"

// FilePublisher publishes each update as a small JSON file per status
// channel, the same way the recorder's live state has always been exposed
// to external tooling. The watch command and the recovery scanner's
// liveness probe both read these files.
type FilePublisher struct {
	dir string
}

// NewFilePublisher creates a publisher writing under dir
func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{dir: dir}
}

func (p *FilePublisher) path(channel string) string {
	return filepath.Join(p.dir, channel+channelSuffix)
}

// Publish writes the update atomically (temp + rename) so readers never
// see a torn payload
func (p *FilePublisher) Publish(u Update) error {
	if u.Channel == "" {
		return fmt.Errorf("status update without channel id")
	}

	data, err := json.Marshal(u)
	if err != nil {
		return err
	}

	tmp := p.path(u.Channel) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path(u.Channel))
}

// Close removes the channel file: the end-of-session signal
func (p *FilePublisher) Close(channel string) error {
	err := os.Remove(p.path(channel))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ReadChannel reads the latest update for a channel
func ReadChannel(dir, channel string) (*Update, error) {
	data, err := os.ReadFile(filepath.Join(dir, channel+channelSuffix))
	if err != nil {
		return nil, err
	}
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ReadLatest returns the most recently updated channel in dir, or nil if
// none exist
func ReadLatest(dir string) (*Update, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var updates []*Update
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), channelSuffix) {
			continue
		}
		channel := strings.TrimSuffix(e.Name(), channelSuffix)
		u, err := ReadChannel(dir, channel)
		if err != nil {
			continue
		}
		updates = append(updates, u)
	}
	if len(updates) == 0 {
		return nil, nil
	}

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].UpdatedAt.After(updates[j].UpdatedAt)
	})
	return updates[0], nil
}

// Live reports whether a channel still references an active session that
// was updated within maxAge. The recovery scanner uses this to avoid
// touching a session another process instance may own.
func Live(dir, channel string, maxAge time.Duration) bool {
	if channel == "" {
		return false
	}
	u, err := ReadChannel(dir, channel)
	if err != nil {
		return false
	}
	return u.Active && time.Since(u.UpdatedAt) <= maxAge
}
