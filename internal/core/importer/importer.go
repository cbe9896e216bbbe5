package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/store"
)

// Importer copies session records into the search index
type Importer struct {
	db *db.DB
}

// Result counts what a directory sync did
type Result struct {
	Imported int
	Skipped  int
	Failed   int
	Removed  int
}

// New creates a new importer
func New(database *db.DB) *Importer {
	return &Importer{db: database}
}

// ImportFile indexes one session record. It reports false when the record's
// content hash matches what is already indexed.
func (i *Importer) ImportFile(path string) (bool, error) {
	hash, err := computeFileHash(path)
	if err != nil {
		return false, fmt.Errorf("failed to hash file: %w", err)
	}

	sess, err := store.ReadRecord(path)
	if err != nil {
		_ = i.db.LogImport(path, hash, 0, err)
		return false, err
	}

	existing, err := i.db.SessionHash(sess.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check index: %w", err)
	}
	if existing == hash {
		return false, nil
	}

	if err := i.db.ReplaceSession(sess, path, hash); err != nil {
		_ = i.db.LogImport(path, hash, 0, err)
		return false, fmt.Errorf("failed to index session %s: %w", sess.ID, err)
	}
	if err := i.db.LogImport(path, hash, len(sess.Actions), nil); err != nil {
		return true, fmt.Errorf("failed to record import: %w", err)
	}

	log.Debug().Str("session", sess.ID).Int("actions", len(sess.Actions)).Msg("indexed session")
	return true, nil
}

// ImportDirectory syncs every record in the session directory and drops
// indexed sessions whose record no longer exists.
func (i *Importer) ImportDirectory(p store.Persistence, progress ProgressCallback) (Result, error) {
	var res Result

	files, err := p.Scan()
	if err != nil {
		return res, fmt.Errorf("failed to scan sessions: %w", err)
	}

	seen := make(map[string]bool, len(files))
	for _, file := range files {
		seen[strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))] = true

		imported, err := i.ImportFile(file)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("path", file).Msg("failed to import session record")
			res.Failed++
		case imported:
			res.Imported++
		default:
			res.Skipped++
		}

		if progress != nil {
			progress.Update(filepath.Base(file), outcome(imported, err))
		}
	}

	indexed, err := i.db.SessionIDs()
	if err != nil {
		return res, fmt.Errorf("failed to list indexed sessions: %w", err)
	}
	for _, id := range indexed {
		if seen[id] {
			continue
		}
		if err := i.db.DeleteSession(id); err != nil {
			return res, fmt.Errorf("failed to prune session %s: %w", id, err)
		}
		res.Removed++
	}

	if progress != nil {
		progress.Finish()
	}
	return res, nil
}

func outcome(imported bool, err error) string {
	switch {
	case err != nil:
		return "failed"
	case imported:
		return "indexed"
	default:
		return "unchanged"
	}
}

func computeFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
