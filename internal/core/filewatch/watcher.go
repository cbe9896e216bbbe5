package filewatch

import (
	"context"
	"sync"
	"time"

	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
)

// Recorder appends an action to the active session
type Recorder interface {
	Record(action models.Action) error
}

// Confirmer asks the user whether a detected change should be recorded
type Confirmer interface {
	Confirm(ctx context.Context, change ChangeSummary) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, change ChangeSummary) (bool, error)

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(ctx context.Context, change ChangeSummary) (bool, error) {
	return f(ctx, change)
}

// AlwaysConfirm records every change without asking
var AlwaysConfirm = ConfirmFunc(func(context.Context, ChangeSummary) (bool, error) {
	return true, nil
})

// Watcher caches the last known content of every opened or saved file and
// turns saves into codeChange actions. The cache is refreshed on every open
// and save whether or not tracking is on, so a later save always diffs
// against the latest content.
type Watcher struct {
	mu        sync.Mutex
	cache     map[string]string
	tracking  bool
	hasActive bool

	recorder  Recorder
	confirmer Confirmer
	now       func() time.Time
}

// NewWatcher creates a file change watcher. A nil confirmer records every change.
func NewWatcher(rec Recorder, confirmer Confirmer, tracking bool) *Watcher {
	if confirmer == nil {
		confirmer = AlwaysConfirm
	}
	return &Watcher{
		cache:     make(map[string]string),
		tracking:  tracking,
		recorder:  rec,
		confirmer: confirmer,
		now:       time.Now,
	}
}

// SetTracking enables or disables recording of code changes
func (w *Watcher) SetTracking(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracking = enabled
}

// SetHasActiveSession implements lifecycle.TrackingListener
func (w *Watcher) SetHasActiveSession(active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hasActive = active
}

// OnOpen records the baseline content of a file
func (w *Watcher) OnOpen(path, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache[path] = content
}

// Forget drops the baseline of a removed file
func (w *Watcher) Forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.cache, path)
}

// Cached returns the baseline held for path
func (w *Watcher) Cached(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.cache[path]
	return c, ok
}

// OnSave diffs content against the cached baseline and, with tracking on,
// a session active and the user's confirmation, records a codeChange.
// Returns whether an action was recorded.
func (w *Watcher) OnSave(ctx context.Context, path, content string) (bool, error) {
	w.mu.Lock()
	before, ok := w.cache[path]
	w.cache[path] = content
	enabled := w.tracking && w.hasActive
	w.mu.Unlock()

	if !ok {
		log.Debug().Str("file", path).Msg("no baseline, caching first save")
		return false, nil
	}

	hunks := Diff(before, content)
	if len(hunks) == 0 || !enabled {
		return false, nil
	}

	summary := Summarize(path, hunks)
	accepted, err := w.confirmer.Confirm(ctx, summary)
	if err != nil {
		return false, err
	}
	if !accepted {
		log.Debug().Str("file", path).Msg("code change declined")
		return false, nil
	}

	if err := w.recorder.Record(models.NewCodeChange(path, hunks, w.now())); err != nil {
		return false, err
	}
	log.Debug().
		Str("file", path).
		Int("additions", summary.Additions).
		Int("removals", summary.Removals).
		Msg("code change recorded")
	return true, nil
}
