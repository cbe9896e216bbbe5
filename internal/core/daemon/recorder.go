package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/filewatch"
	"github.com/neilberkman/devlog/internal/core/hostsock"
	"github.com/neilberkman/devlog/internal/core/importer"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/notify"
)

// DefaultSyncInterval is how often a dirty search index is refreshed
const DefaultSyncInterval = 30 * time.Second

// Recorder is the long-running process behind devlog watch. It owns the
// engine and feeds it from the socket host and, optionally, the file host.
type Recorder struct {
	engine       *engine.Engine
	server       *hostsock.Server
	host         *filewatch.Host
	importer     *importer.Importer
	syncInterval time.Duration
	pauseFile    string

	mu    sync.Mutex
	stats Stats
}

// Stats tracks recorder activity
type Stats struct {
	StartTime     time.Time
	LedgerChanges int
	IndexSyncs    int
	LastSync      time.Time
	Errors        int
}

// Options configures optional recorder parts
type Options struct {
	// WatchDir enables the file host rooted here
	WatchDir string
	// Ignore holds glob patterns skipped by the file host
	Ignore []string
	// Exclude holds absolute paths the file host never reports, such as
	// the session directory and the index files
	Exclude []string
	// Index enables periodic search index refresh
	Index *db.DB
	// SyncInterval defaults to DefaultSyncInterval
	SyncInterval time.Duration
	// PauseFile suspends index refresh while it exists
	PauseFile string
}

// New binds the recorder socket and prepares the hosts. Nothing runs until Start.
func New(eng *engine.Engine, socketPath string, opts Options) (*Recorder, error) {
	server, err := hostsock.Listen(socketPath, eng)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		engine:       eng,
		server:       server,
		syncInterval: opts.SyncInterval,
		pauseFile:    opts.PauseFile,
		stats:        Stats{StartTime: time.Now()},
	}
	if r.syncInterval <= 0 {
		r.syncInterval = DefaultSyncInterval
	}
	if opts.Index != nil {
		r.importer = importer.New(opts.Index)
	}

	if opts.WatchDir != "" {
		if _, err := os.Stat(opts.WatchDir); err != nil {
			_ = server.Close()
			return nil, fmt.Errorf("watch path does not exist: %s", opts.WatchDir)
		}
		host, err := filewatch.NewHost(opts.WatchDir, opts.Ignore, eng, filewatch.WithExcluded(opts.Exclude...))
		if err != nil {
			_ = server.Close()
			return nil, err
		}
		r.host = host
	}

	return r, nil
}

// SocketPath is where clients reach this recorder
func (r *Recorder) SocketPath() string {
	return r.server.Path()
}

// Start runs every part until ctx is done or one of them fails
func (r *Recorder) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe := r.engine.Notifier.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	errc := make(chan error, 4)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errc <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	run("engine", r.engine.Run)
	run("socket", r.server.Serve)
	if r.host != nil {
		log.Info().Str("root", r.host.Root()).Msg("watching files")
		run("file host", r.host.Run)
	}

	r.syncIndex()
	r.loop(ctx, events)

	wg.Wait()
	close(errc)
	var errs []error
	for err := range errc {
		errs = append(errs, err)
	}
	log.Info().Msg("recorder shutting down")
	return errors.Join(errs...)
}

func (r *Recorder) loop(ctx context.Context, events <-chan notify.Event) {
	ticker := time.NewTicker(r.syncInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			if dirty {
				r.syncIndex()
			}
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Debug().Str("type", string(ev.Type)).Strs("sessions", ev.SessionIDs).Msg("ledger event")
			if ev.Type != notify.EventActiveChanged {
				r.mu.Lock()
				r.stats.LedgerChanges++
				r.mu.Unlock()
				dirty = true
			}
		case <-ticker.C:
			if !dirty || r.IsPaused() {
				continue
			}
			r.syncIndex()
			dirty = false
		}
	}
}

// syncIndex refreshes the search index from the session directory
func (r *Recorder) syncIndex() {
	if r.importer == nil {
		return
	}
	res, err := r.importer.ImportDirectory(r.engine.Files, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("index sync failed")
		r.stats.Errors++
		return
	}
	r.stats.IndexSyncs++
	r.stats.LastSync = time.Now()
	log.Debug().Int("imported", res.Imported).Int("removed", res.Removed).Msg("index synced")
}

// IsPaused reports whether index refresh is suspended
func (r *Recorder) IsPaused() bool {
	if r.pauseFile == "" {
		return false
	}
	_, err := os.Stat(r.pauseFile)
	return err == nil
}

// GetStats returns a snapshot of recorder activity
func (r *Recorder) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
