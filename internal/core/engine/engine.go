package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/filewatch"
	"github.com/neilberkman/devlog/internal/core/lifecycle"
	"github.com/neilberkman/devlog/internal/core/llm"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/namer"
	"github.com/neilberkman/devlog/internal/core/notify"
	"github.com/neilberkman/devlog/internal/core/store"
	"github.com/neilberkman/devlog/internal/core/terminal"
)

// EventKind identifies a host event
type EventKind int

const (
	TerminalStart EventKind = iota
	TerminalEnd
	FileOpen
	FileSave
	FileRemove
	call // a Backend operation
)

func (k EventKind) String() string {
	switch k {
	case TerminalStart:
		return "terminal-start"
	case TerminalEnd:
		return "terminal-end"
	case FileOpen:
		return "file-open"
	case FileSave:
		return "file-save"
	case FileRemove:
		return "file-remove"
	case call:
		return "call"
	}
	return "unknown"
}

// Event is one unit of work for the engine loop
type Event struct {
	Kind       EventKind
	TerminalID string
	Command    string
	ExitCode   int
	Output     string
	Path       string
	Content    string

	fn   func(ctx context.Context) error
	done chan error
}

const queueSize = 256

// Engine owns the recording components and applies events one at a time.
// Each handler, persistence write included, finishes before the next event
// is taken.
type Engine struct {
	Store      *store.Store
	Lifecycle  *lifecycle.Lifecycle
	Correlator *terminal.Correlator
	Watcher    *filewatch.Watcher
	Files      *store.FileStore
	Notifier   *notify.Service
	// Parked holds command starts reported while no recorder was running
	Parked *terminal.ParkedStore

	events   chan Event
	running  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once
}

// ErrStopped is returned for work submitted after the event loop has exited
var ErrStopped = errors.New("engine stopped")

// Options are collaborators the caller may supply
type Options struct {
	// Namer overrides the namer selected by config
	Namer namer.Namer
	// Confirmer gates code changes; nil records every change
	Confirmer filewatch.Confirmer
}

// New builds an engine from config and loads the persisted sessions and
// lifecycle state.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	files, err := store.NewFileStore(cfg.SessionsDir)
	if err != nil {
		return nil, err
	}

	n := opts.Namer
	if n == nil {
		provider, err := llm.NewFromConfig(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Str("namer", cfg.Namer).Msg("LLM namer unavailable, using heuristic")
		}
		n = namer.New(provider)
	}

	svc := notify.NewService()
	st := store.New(files, store.WithNamer(n), store.WithNotifier(svc))
	if _, err := st.Load(); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	lc := lifecycle.New(st, files.ActivePath())
	if err := lc.Restore(); err != nil {
		log.Warn().Err(err).Msg("failed to restore active session")
	}

	confirmer := opts.Confirmer
	if !cfg.ConfirmCodeChanges {
		confirmer = filewatch.AlwaysConfirm
	}

	e := &Engine{
		Store:      st,
		Lifecycle:  lc,
		Correlator: terminal.NewCorrelator(lc, cfg.TrackTerminal),
		Watcher:    filewatch.NewWatcher(lc, confirmer, cfg.TrackFiles),
		Files:      files,
		Notifier:   svc,
		Parked:     terminal.NewParkedStore(filepath.Join(cfg.SessionsDir, "pending")),
		events:     make(chan Event, queueSize),
		stopped:    make(chan struct{}),
	}
	lc.AddListener(e.Correlator)
	lc.AddListener(e.Watcher)
	// A parked start belongs to the session it began in
	lc.OnTransition(func(prev, next string) {
		if err := e.Parked.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear parked commands")
		}
	})
	return e, nil
}

// Run drains the event queue until ctx is done. An engine runs its loop
// once; events posted after it exits are dropped.
func (e *Engine) Run(ctx context.Context) error {
	select {
	case <-e.stopped:
		return ErrStopped
	default:
	}
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer func() {
		e.stopOnce.Do(func() { close(e.stopped) })
		e.running.Store(false)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.events:
			err := e.handle(ctx, ev)
			if ev.done != nil {
				ev.done <- err
			} else if err != nil {
				log.Warn().Err(err).Str("event", ev.Kind.String()).Msg("event failed")
			}
		}
	}
}

// Post queues an event without waiting for its result. A full queue blocks
// the caller until the loop catches up, so no open or save is lost while a
// handler waits on the user.
func (e *Engine) Post(ev Event) {
	select {
	case e.events <- ev:
	case <-e.stopped:
		log.Debug().Str("event", ev.Kind.String()).Msg("engine stopped, dropping event")
	}
}

// Submit applies an event and waits for its result. Without a running loop
// the event is handled inline.
func (e *Engine) Submit(ctx context.Context, ev Event) error {
	if !e.running.Load() {
		return e.handle(ctx, ev)
	}

	ev.done = make(chan error, 1)
	select {
	case e.events <- ev:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ev.done:
		return err
	case <-e.stopped:
		// The loop answers before it stops, so a handled event has its result
		select {
		case err := <-ev.done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.Submit(ctx, Event{Kind: call, fn: fn})
}

func (e *Engine) handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case TerminalStart:
		e.Correlator.OnStart(ev.TerminalID, ev.Command)
		return nil
	case TerminalEnd:
		return e.Correlator.OnEnd(ev.TerminalID, ev.ExitCode, ev.Output)
	case FileOpen:
		e.Watcher.OnOpen(ev.Path, ev.Content)
		return nil
	case FileSave:
		_, err := e.Watcher.OnSave(ctx, ev.Path, ev.Content)
		return err
	case FileRemove:
		e.Watcher.Forget(ev.Path)
		return nil
	case call:
		return ev.fn(ctx)
	}
	return fmt.Errorf("unknown event kind %d", ev.Kind)
}

// FileOpened implements filewatch.Sink
func (e *Engine) FileOpened(path, content string) {
	e.Post(Event{Kind: FileOpen, Path: path, Content: content})
}

// FileSaved implements filewatch.Sink
func (e *Engine) FileSaved(path, content string) {
	e.Post(Event{Kind: FileSave, Path: path, Content: content})
}

// FileRemoved implements filewatch.Sink
func (e *Engine) FileRemoved(path string) {
	e.Post(Event{Kind: FileRemove, Path: path})
}

// ParkStart keeps a command start on disk for a later process to complete.
// Nothing is parked while tracking is off or no session is active.
func (e *Engine) ParkStart(terminalID, command string) error {
	command = strings.TrimSpace(command)
	if command == "" || !e.Correlator.Tracking() {
		return nil
	}
	active := e.Lifecycle.ActiveSessionID()
	if active == "" {
		return nil
	}
	return e.Parked.Put(terminalID, terminal.Parked{SessionID: active, Command: command, StartedAt: time.Now()})
}

// TakeParked removes the parked start of terminalID and returns it when it
// may still be recorded: tracking is on and the session it started in is
// still the active one.
func (e *Engine) TakeParked(terminalID string) (terminal.Parked, bool) {
	p, ok := e.Parked.Take(terminalID)
	if !ok {
		return p, false
	}
	if !e.Correlator.Tracking() {
		return p, false
	}
	if active := e.Lifecycle.ActiveSessionID(); active != p.SessionID {
		log.Debug().Str("started_in", p.SessionID).Str("active", active).Msg("dropping parked command from another session")
		return p, false
	}
	return p, true
}

// StartSession implements Backend
func (e *Engine) StartSession(ctx context.Context, description string) (models.Session, error) {
	var sess models.Session
	err := e.do(ctx, func(ctx context.Context) error {
		var err error
		sess, err = e.Lifecycle.Start(ctx, description)
		return err
	})
	return sess, err
}

// ActivateSession implements Backend
func (e *Engine) ActivateSession(ctx context.Context, id string) error {
	return e.do(ctx, func(context.Context) error { return e.Lifecycle.SetActive(id) })
}

// CloseSession implements Backend
func (e *Engine) CloseSession(ctx context.Context) error {
	return e.do(ctx, func(context.Context) error { return e.Lifecycle.Close() })
}

// DeleteSession implements Backend
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	return e.do(ctx, func(context.Context) error { return e.Store.Delete(id) })
}

// AddAction implements Backend
func (e *Engine) AddAction(ctx context.Context, sessionID string, action models.Action) error {
	return e.do(ctx, func(context.Context) error {
		if sessionID == "" {
			return e.Lifecycle.Record(action)
		}
		return e.Store.AddAction(sessionID, action)
	})
}

// RecordCommand implements Backend
func (e *Engine) RecordCommand(ctx context.Context, command, output string, exitCode int) error {
	return e.do(ctx, func(context.Context) error {
		return e.Correlator.RecordManual(command, output, exitCode)
	})
}

// TerminalStart implements Backend
func (e *Engine) TerminalStart(ctx context.Context, terminalID, command string) error {
	return e.Submit(ctx, Event{Kind: TerminalStart, TerminalID: terminalID, Command: command})
}

// TerminalEnd implements Backend
func (e *Engine) TerminalEnd(ctx context.Context, terminalID string, exitCode int, output string) error {
	return e.Submit(ctx, Event{Kind: TerminalEnd, TerminalID: terminalID, ExitCode: exitCode, Output: output})
}

// DeleteAction implements Backend
func (e *Engine) DeleteAction(ctx context.Context, sessionID string, index int) error {
	return e.do(ctx, func(context.Context) error {
		_, err := e.Store.DeleteAction(sessionID, index)
		return err
	})
}

// MoveAction implements Backend
func (e *Engine) MoveAction(ctx context.Context, sourceID string, sourceIndex int, destID string, destIndex int) error {
	return e.do(ctx, func(context.Context) error {
		return e.Store.Move(sourceID, sourceIndex, destID, destIndex)
	})
}

// ReorderAction implements Backend
func (e *Engine) ReorderAction(ctx context.Context, sessionID string, oldIndex, newIndex int) error {
	return e.do(ctx, func(context.Context) error {
		return e.Store.Reorder(sessionID, oldIndex, newIndex)
	})
}

// SetNotes implements Backend
func (e *Engine) SetNotes(ctx context.Context, sessionID, notes string) error {
	return e.do(ctx, func(context.Context) error {
		return e.Store.SetNotes(sessionID, notes)
	})
}

var _ Backend = (*Engine)(nil)
var _ filewatch.Sink = (*Engine)(nil)
