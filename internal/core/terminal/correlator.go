package terminal

import (
	"strings"
	"sync"
	"time"

	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
)

// Recorder appends an action to the active session
type Recorder interface {
	Record(action models.Action) error
}

// EventKind distinguishes command-start from command-end
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
)

// Event is one terminal lifecycle notification from the host
type Event struct {
	Kind       EventKind
	TerminalID string
	Command    string // start only
	ExitCode   int    // end only
	Output     string // end only
	At         time.Time
}

// Pending is a started command awaiting its end event
type Pending struct {
	Command   string
	StartedAt time.Time
}

// Step applies one event to the pending map and returns the new map plus the
// command action to record, if any. The input map is not modified.
//
// A start overwrites any pending command for the same terminal (the last
// start wins; the earlier command is never recorded). An end with no pending
// start is ignored.
func Step(pending map[string]Pending, ev Event) (map[string]Pending, *models.Action) {
	next := make(map[string]Pending, len(pending)+1)
	for k, v := range pending {
		next[k] = v
	}

	switch ev.Kind {
	case EventStart:
		next[ev.TerminalID] = Pending{Command: ev.Command, StartedAt: ev.At}
		return next, nil
	case EventEnd:
		p, ok := next[ev.TerminalID]
		if !ok {
			return next, nil
		}
		delete(next, ev.TerminalID)
		action := models.NewCommand(p.Command, ev.Output, ev.ExitCode == 0, ev.At)
		return next, &action
	}
	return next, nil
}

// Correlator pairs start/end events per terminal into command actions. It
// only correlates while tracking is enabled and a session is active; turning
// either off drops every pending command.
type Correlator struct {
	mu        sync.Mutex
	pending   map[string]Pending
	tracking  bool
	hasActive bool

	recorder Recorder
	now      func() time.Time
}

// NewCorrelator creates a correlator that records through rec
func NewCorrelator(rec Recorder, tracking bool) *Correlator {
	return &Correlator{
		pending:  make(map[string]Pending),
		tracking: tracking,
		recorder: rec,
		now:      time.Now,
	}
}

// SetTracking enables or disables terminal tracking
func (c *Correlator) SetTracking(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = enabled
	if !enabled {
		c.clearLocked()
	}
}

// Tracking reports whether terminal tracking is enabled
func (c *Correlator) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

// SetHasActiveSession implements lifecycle.TrackingListener
func (c *Correlator) SetHasActiveSession(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasActive = active
	if !active {
		c.clearLocked()
	}
}

func (c *Correlator) clearLocked() {
	if len(c.pending) > 0 {
		log.Debug().Int("pending", len(c.pending)).Msg("dropping pending terminal commands")
	}
	c.pending = make(map[string]Pending)
}

// PendingCount returns the number of started, unfinished commands
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// OnStart notes that command started in terminal id
func (c *Correlator) OnStart(id, command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tracking || !c.hasActive {
		return
	}
	if prev, ok := c.pending[id]; ok {
		log.Debug().Str("terminal", id).Str("discarded", prev.Command).Msg("command restarted before end")
	}
	c.pending, _ = Step(c.pending, Event{Kind: EventStart, TerminalID: id, Command: command, At: c.now()})
}

// OnEnd completes the pending command of terminal id, recording it
func (c *Correlator) OnEnd(id string, exitCode int, output string) error {
	c.mu.Lock()
	if !c.tracking || !c.hasActive {
		c.mu.Unlock()
		return nil
	}
	var action *models.Action
	c.pending, action = Step(c.pending, Event{
		Kind:       EventEnd,
		TerminalID: id,
		ExitCode:   exitCode,
		Output:     output,
		At:         c.now(),
	})
	c.mu.Unlock()

	if action == nil {
		return nil
	}
	return c.recorder.Record(*action)
}

// RecordManual records a command without correlation
func (c *Correlator) RecordManual(command, output string, exitCode int) error {
	return c.recorder.Record(models.NewCommand(strings.TrimSpace(command), output, exitCode == 0, c.now()))
}
