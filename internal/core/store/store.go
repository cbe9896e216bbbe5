package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/namer"
	"github.com/neilberkman/devlog/internal/core/notify"
)

// Activity is the slice of the session lifecycle the store needs: deleting
// the active session closes it first.
type Activity interface {
	ActiveSessionID() string
	Close() error
}

// Store owns the session collection. Every mutation is persisted before the
// call returns and is followed by one refresh notification.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*models.Session

	persist  Persistence
	namer    namer.Namer
	notifier *notify.Service
	now      func() time.Time

	actMu    sync.RWMutex
	activity Activity
}

// Option configures a Store
type Option func(*Store)

// WithNamer sets the namer used by Create
func WithNamer(n namer.Namer) Option {
	return func(s *Store) { s.namer = n }
}

// WithNotifier sets the refresh notification service
func WithNotifier(n *notify.Service) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store. Call Load to read existing records.
func New(p Persistence, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*models.Session),
		persist:  p,
		namer:    namer.Heuristic{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetActivity registers the lifecycle consulted by Delete
func (s *Store) SetActivity(a Activity) {
	s.actMu.Lock()
	defer s.actMu.Unlock()
	s.activity = a
}

func (s *Store) activeID() string {
	s.actMu.RLock()
	defer s.actMu.RUnlock()
	if s.activity == nil {
		return ""
	}
	return s.activity.ActiveSessionID()
}

// Notifier returns the refresh notification service (may be nil)
func (s *Store) Notifier() *notify.Service {
	return s.notifier
}

// Load scans persistence and adds every readable record. Malformed records
// are logged and skipped. Returns the number of sessions loaded.
func (s *Store) Load() (int, error) {
	paths, err := s.persist.Scan()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, path := range paths {
		sess, err := s.persist.Read(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable session record")
			continue
		}
		s.sessions[sess.ID] = sess
		loaded++
	}

	log.Debug().Int("sessions", loaded).Int("records", len(paths)).Msg("loaded session records")
	return loaded, nil
}

// Create makes a new session, names it and persists it. On a persist failure
// the session is still held in memory and returned alongside the error.
func (s *Store) Create(ctx context.Context, description string) (models.Session, error) {
	description = strings.TrimSpace(description)

	name, err := s.namer.Name(ctx, description)
	if err != nil || name == "" {
		if err != nil {
			log.Warn().Err(err).Msg("namer failed, using heuristic name")
		}
		name = namer.HeuristicName(description)
	}

	now := s.now().UTC()
	sess := &models.Session{
		ID:          newSessionID(now),
		Name:        name,
		Description: description,
		StartTime:   now,
		Actions:     []models.Action{},
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	perr := s.save(sess)
	out := sess.Clone()
	s.mu.Unlock()

	log.Info().Str("session", sess.ID).Str("name", name).Msg("session created")
	s.notify(notify.EventSessionCreated, sess.ID)
	return out, perr
}

// newSessionID derives a time-ordered id with a random suffix
func newSessionID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return t.Format("20060102-150405") + "-" + suffix
}

// Get returns a deep copy of a session
func (s *Store) Get(id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return models.Session{}, sessionNotFound(id)
	}
	return sess.Clone(), nil
}

// Exists reports whether id names a session
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// List returns summaries of every session, newest first
func (s *Store) List() []models.SessionSummary {
	active := s.activeID()

	s.mu.Lock()
	out := make([]models.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sum := sess.Summary()
		sum.Active = sess.ID == active
		out = append(out, sum)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// Delete removes a session from memory and storage. The active session is
// closed first. Storage errors are returned but the session stays removed
// from memory.
func (s *Store) Delete(id string) error {
	if !s.Exists(id) {
		return sessionNotFound(id)
	}

	s.actMu.RLock()
	act := s.activity
	s.actMu.RUnlock()
	if act != nil && act.ActiveSessionID() == id {
		if err := act.Close(); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("failed to close active session before delete")
		}
	}

	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return sessionNotFound(id)
	}
	delete(s.sessions, id)
	var perr error
	if err := s.persist.Remove(id); err != nil {
		perr = &PersistError{SessionID: id, Op: "remove", Err: err}
	}
	s.mu.Unlock()

	log.Info().Str("session", id).Msg("session deleted")
	s.notify(notify.EventSessionDeleted, id)
	return perr
}

// SetNotes replaces the free-text notes of a session
func (s *Store) SetNotes(id, notes string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return sessionNotFound(id)
	}
	sess.Notes = notes
	err := s.save(sess)
	s.mu.Unlock()

	s.notify(notify.EventLedgerChanged, id)
	return err
}

// AddAction appends an action to a session's ledger
func (s *Store) AddAction(id string, action models.Action) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return sessionNotFound(id)
	}
	sess.Actions = appendAction(sess.Actions, action.Clone())
	err := s.save(sess)
	s.mu.Unlock()

	log.Debug().Str("session", id).Str("type", string(action.Type)).Msg("action recorded")
	s.notify(notify.EventLedgerChanged, id)
	return err
}

// DeleteAction removes the action at index and returns it
func (s *Store) DeleteAction(id string, index int) (models.Action, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return models.Action{}, sessionNotFound(id)
	}
	if !inRange(index, len(sess.Actions)) {
		s.mu.Unlock()
		return models.Action{}, indexNotFound(id, index)
	}

	var removed models.Action
	sess.Actions, removed = removeAt(sess.Actions, index)
	err := s.save(sess)
	s.mu.Unlock()

	s.notify(notify.EventLedgerChanged, id)
	return removed, err
}

// Move relocates one action. destIndex is interpreted against the
// destination list before removal and may equal its length (append). Within
// one session a destIndex after sourceIndex shifts down by one once the
// action has been removed.
func (s *Store) Move(sourceID string, sourceIndex int, destID string, destIndex int) error {
	s.mu.Lock()
	src, ok := s.sessions[sourceID]
	if !ok {
		s.mu.Unlock()
		return sessionNotFound(sourceID)
	}
	dst, ok := s.sessions[destID]
	if !ok {
		s.mu.Unlock()
		return sessionNotFound(destID)
	}
	if !inRange(sourceIndex, len(src.Actions)) {
		s.mu.Unlock()
		return indexNotFound(sourceID, sourceIndex)
	}
	if destIndex < 0 || destIndex > len(dst.Actions) {
		s.mu.Unlock()
		return indexNotFound(destID, destIndex)
	}

	var err error
	if sourceID == destID {
		rest, a := removeAt(src.Actions, sourceIndex)
		src.Actions = insertAt(rest, sameSessionTarget(sourceIndex, destIndex), a)
		err = s.save(src)
	} else {
		var a models.Action
		src.Actions, a = removeAt(src.Actions, sourceIndex)
		dst.Actions = insertAt(dst.Actions, destIndex, a)
		err = errors.Join(s.save(src), s.save(dst))
	}
	s.mu.Unlock()

	if sourceID == destID {
		s.notify(notify.EventLedgerChanged, sourceID)
	} else {
		s.notify(notify.EventLedgerChanged, sourceID, destID)
	}
	return err
}

// Reorder moves an action within one session so that it ends at newIndex.
// Both indices are checked against the current length.
func (s *Store) Reorder(id string, oldIndex, newIndex int) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return sessionNotFound(id)
	}
	n := len(sess.Actions)
	if !inRange(oldIndex, n) {
		s.mu.Unlock()
		return indexNotFound(id, oldIndex)
	}
	if !inRange(newIndex, n) {
		s.mu.Unlock()
		return indexNotFound(id, newIndex)
	}

	sess.Actions = reorderActions(sess.Actions, oldIndex, newIndex)
	err := s.save(sess)
	s.mu.Unlock()

	s.notify(notify.EventLedgerChanged, id)
	return err
}

// save must be called with s.mu held
func (s *Store) save(sess *models.Session) error {
	if err := s.persist.Save(sess); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("failed to persist session")
		return &PersistError{SessionID: sess.ID, Op: "save", Err: err}
	}
	return nil
}

func (s *Store) notify(t notify.EventType, ids ...string) {
	s.notifier.Notify(notify.Event{
		Type:       t,
		Timestamp:  s.now().UnixMilli(),
		SessionIDs: ids,
	})
}
