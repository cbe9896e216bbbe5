package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neilberkman/devlog/internal/core/models"
)

const (
	recordExt      = ".json"
	activeFileName = "active.json"
)

// Persistence reads and writes one durable record per session
type Persistence interface {
	Save(s *models.Session) error
	Remove(id string) error
	Scan() ([]string, error)
	Read(path string) (*models.Session, error)
}

// FileStore keeps each session as <dir>/<id>.json. Cached renderings of a
// session (exports) live under <dir>/views/<id>.*.
type FileStore struct {
	dir string
}

// NewFileStore creates the session directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the session directory
func (f *FileStore) Dir() string {
	return f.dir
}

// ViewsDir returns the directory holding cached session renderings
func (f *FileStore) ViewsDir() string {
	return filepath.Join(f.dir, "views")
}

// ActivePath returns the file holding the persisted lifecycle state
func (f *FileStore) ActivePath() string {
	return filepath.Join(f.dir, activeFileName)
}

// RecordPath returns the record file for a session id
func (f *FileStore) RecordPath(id string) string {
	return filepath.Join(f.dir, id+recordExt)
}

// Save writes the full record atomically (temp file + rename)
func (f *FileStore) Save(s *models.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+s.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmpName, f.RecordPath(s.ID)); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Remove deletes the record and any cached views. All removals are attempted;
// failures are joined.
func (f *FileStore) Remove(id string) error {
	var errs []error

	if err := os.Remove(f.RecordPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}

	views, err := filepath.Glob(filepath.Join(f.ViewsDir(), id+".*"))
	if err != nil {
		errs = append(errs, err)
	}
	for _, v := range views {
		if err := os.Remove(v); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Scan lists record files in the session directory, skipping hidden and temp files
func (f *FileStore) Scan() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt || name == activeFileName {
			continue
		}
		paths = append(paths, filepath.Join(f.dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Read parses and validates one record
func (f *FileStore) Read(path string) (*models.Session, error) {
	return ReadRecord(path)
}

// ReadRecord parses and validates a session record file. The id inside the
// record must match the file name.
func ReadRecord(path string) (*models.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	wantID := strings.TrimSuffix(filepath.Base(path), recordExt)
	if s.ID != wantID {
		return nil, fmt.Errorf("record id %q does not match file name %q", s.ID, wantID)
	}
	if s.Actions == nil {
		s.Actions = []models.Action{}
	}
	return &s, nil
}
