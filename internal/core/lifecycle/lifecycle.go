package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/notify"
	"github.com/neilberkman/devlog/internal/core/store"
)

// ErrNoActiveSession is returned by Record while Inactive
var ErrNoActiveSession = errors.New("no active session")

// TrackingListener is told whether a session is active after every transition
type TrackingListener interface {
	SetHasActiveSession(active bool)
}

// Lifecycle is the Inactive / Active(id) state machine. At most one session
// is active at a time.
type Lifecycle struct {
	// transMu serializes whole transitions, listener calls included
	transMu sync.Mutex

	mu       sync.RWMutex
	activeID string

	store     *store.Store
	statePath string
	listeners []TrackingListener
	hooks     []func(prev, next string)
}

type persistedState struct {
	SessionID string `json:"sessionId"`
}

// New creates an Inactive lifecycle over st and registers it with the store.
// statePath, when non-empty, is where the active id is persisted.
func New(st *store.Store, statePath string) *Lifecycle {
	l := &Lifecycle{store: st, statePath: statePath}
	st.SetActivity(l)
	return l
}

// AddListener registers a capture component. It is immediately told the
// current state.
func (l *Lifecycle) AddListener(tl TrackingListener) {
	l.transMu.Lock()
	defer l.transMu.Unlock()
	l.listeners = append(l.listeners, tl)
	tl.SetHasActiveSession(l.ActiveSessionID() != "")
}

// OnTransition registers fn to run after every Start, SetActive and Close,
// with the previous and new active ids. Restore does not call it.
func (l *Lifecycle) OnTransition(fn func(prev, next string)) {
	l.transMu.Lock()
	defer l.transMu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// ActiveSessionID returns the active session id, or "" when Inactive
func (l *Lifecycle) ActiveSessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeID
}

// IsActive reports whether a session is active
func (l *Lifecycle) IsActive() bool {
	return l.ActiveSessionID() != ""
}

// Restore reads the persisted active id. A missing file or an id that no
// longer names a session leaves the lifecycle Inactive.
func (l *Lifecycle) Restore() error {
	if l.statePath == "" {
		return nil
	}

	data, err := os.ReadFile(l.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lifecycle state: %w", err)
	}

	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Warn().Err(err).Str("path", l.statePath).Msg("ignoring malformed lifecycle state")
		return nil
	}
	if st.SessionID == "" || !l.store.Exists(st.SessionID) {
		if st.SessionID != "" {
			log.Debug().Str("session", st.SessionID).Msg("persisted active session no longer exists")
		}
		return nil
	}

	l.transMu.Lock()
	defer l.transMu.Unlock()
	l.transition(st.SessionID, false)
	return nil
}

// Start creates a new session and makes it active. A previously active
// session is left as is; it simply stops receiving events.
func (l *Lifecycle) Start(ctx context.Context, description string) (models.Session, error) {
	l.transMu.Lock()
	defer l.transMu.Unlock()

	sess, err := l.store.Create(ctx, description)
	if sess.ID == "" {
		return sess, err
	}
	if perr := l.transition(sess.ID, true); perr != nil {
		err = errors.Join(err, perr)
	}
	return sess, err
}

// SetActive makes an existing session active
func (l *Lifecycle) SetActive(id string) error {
	if !l.store.Exists(id) {
		return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}

	l.transMu.Lock()
	defer l.transMu.Unlock()
	return l.transition(id, true)
}

// Close makes the lifecycle Inactive
func (l *Lifecycle) Close() error {
	l.transMu.Lock()
	defer l.transMu.Unlock()
	return l.transition("", true)
}

// Record appends an action to the active session
func (l *Lifecycle) Record(action models.Action) error {
	id := l.ActiveSessionID()
	if id == "" {
		return ErrNoActiveSession
	}
	return l.store.AddAction(id, action)
}

// transition must be called with transMu held
func (l *Lifecycle) transition(id string, persist bool) error {
	l.mu.Lock()
	prev := l.activeID
	l.activeID = id
	l.mu.Unlock()

	for _, tl := range l.listeners {
		tl.SetHasActiveSession(id != "")
	}

	if prev != id {
		log.Info().Str("from", prev).Str("to", id).Msg("active session changed")
		ids := []string{}
		for _, s := range []string{prev, id} {
			if s != "" {
				ids = append(ids, s)
			}
		}
		l.store.Notifier().Notify(notify.Event{Type: notify.EventActiveChanged, SessionIDs: ids})
	}

	if !persist {
		return nil
	}
	for _, fn := range l.hooks {
		fn(prev, id)
	}
	return l.save(id)
}

func (l *Lifecycle) save(id string) error {
	if l.statePath == "" {
		return nil
	}
	if id == "" {
		if err := os.Remove(l.statePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear lifecycle state: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(persistedState{SessionID: id})
	if err != nil {
		return fmt.Errorf("failed to encode lifecycle state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.statePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := l.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write lifecycle state: %w", err)
	}
	if err := os.Rename(tmp, l.statePath); err != nil {
		return fmt.Errorf("failed to write lifecycle state: %w", err)
	}
	return nil
}
