package terminal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/neilberkman/devlog/internal/core/log"
)

// Parked is a command start kept on disk for a shell that reports to devlog
// without a running recorder. The end arrives in a later process.
type Parked struct {
	SessionID string    `json:"sessionId"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"startedAt"`
}

// ParkedStore holds one parked start per terminal under dir
type ParkedStore struct {
	dir string
}

// NewParkedStore keeps parked starts in dir. The directory is created on
// the first Put.
func NewParkedStore(dir string) *ParkedStore {
	return &ParkedStore{dir: dir}
}

func (p *ParkedStore) path(terminalID string) string {
	return filepath.Join(p.dir, filepath.Base(terminalID))
}

// Put parks a start for terminalID, replacing any earlier one so the last
// start wins
func (p *ParkedStore) Put(terminalID string, entry Parked) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode parked command: %w", err)
	}
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return fmt.Errorf("failed to create parked command directory: %w", err)
	}
	return os.WriteFile(p.path(terminalID), data, 0600)
}

// Take removes and returns the parked start of terminalID
func (p *ParkedStore) Take(terminalID string) (Parked, bool) {
	path := p.path(terminalID)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read parked command")
		}
		return Parked{}, false
	}
	_ = os.Remove(path)

	var entry Parked
	if err := json.Unmarshal(data, &entry); err != nil || entry.SessionID == "" {
		log.Debug().Str("path", path).Msg("discarding malformed parked command")
		return Parked{}, false
	}
	return entry, true
}

// Clear drops every parked start
func (p *ParkedStore) Clear() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read parked commands: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.Remove(filepath.Join(p.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(entries) > 0 {
		log.Debug().Int("parked", len(entries)).Msg("dropping parked terminal commands")
	}
	return errors.Join(errs...)
}
