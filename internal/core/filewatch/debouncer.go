package filewatch

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDebounceDelay coalesces the burst of writes editors make per save
const DefaultDebounceDelay = 150 * time.Millisecond

// debouncer delivers a path once no new event for it has arrived for delay
type debouncer struct {
	mu        sync.Mutex
	pending   map[string]*time.Timer
	delay     time.Duration
	onProcess func(path string)
	stopping  atomic.Bool
}

func newDebouncer(delay time.Duration, onProcess func(path string)) *debouncer {
	return &debouncer{
		pending:   make(map[string]*time.Timer),
		delay:     delay,
		onProcess: onProcess,
	}
}

// Queue (re)starts the delay for path. Returns false once stopped.
func (d *debouncer) Queue(path string) bool {
	if d.stopping.Load() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopping.Load() {
		return false
	}

	if t, ok := d.pending[path]; ok && t.Reset(d.delay) {
		return true
	}
	// New path, or the timer already fired and onTimer is on its way
	d.pending[path] = time.AfterFunc(d.delay, func() { d.onTimer(path) })
	return true
}

// Cancel drops a pending event for path
func (d *debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[path]; ok {
		t.Stop()
		delete(d.pending, path)
	}
}

func (d *debouncer) onTimer(path string) {
	d.mu.Lock()
	_, ok := d.pending[path]
	if ok {
		delete(d.pending, path)
	}
	d.mu.Unlock()

	if ok && !d.stopping.Load() {
		d.onProcess(path)
	}
}

// Stop cancels everything pending; nothing is delivered afterwards
func (d *debouncer) Stop() {
	d.stopping.Store(true)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.pending {
		t.Stop()
	}
	d.pending = make(map[string]*time.Timer)
}

// PendingCount returns the number of queued paths
func (d *debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
