package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/hostsock"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/namer"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRecorderEndToEnd(t *testing.T) {
	// Short temp dir: unix socket paths are limited to ~104 bytes
	dir, err := os.MkdirTemp("", "dl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	project := filepath.Join(dir, "proj")
	if err := os.MkdirAll(project, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(project, "auth.go")
	if err := os.WriteFile(file, []byte("package auth\n\nfunc check() bool { return false }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults(dir)
	eng, err := engine.New(context.Background(), cfg, engine.Options{Namer: namer.Heuristic{}})
	if err != nil {
		t.Fatal(err)
	}
	index, err := db.New(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = index.Close() })

	rec, err := New(eng, filepath.Join(dir, "r.sock"), Options{
		WatchDir:     project,
		Index:        index,
		SyncInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Start(ctx) }()

	client := hostsock.NewClient(rec.SocketPath())
	waitFor(t, "socket", func() bool { return hostsock.Available(rec.SocketPath()) })

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	sess, err := client.StartSession(callCtx, "fix auth bug")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := client.TerminalStart(callCtx, "pid-1", "go test ./..."); err != nil {
		t.Fatal(err)
	}
	if err := client.TerminalEnd(callCtx, "pid-1", 1, "FAIL"); err != nil {
		t.Fatal(err)
	}

	abs, _ := filepath.Abs(file)
	waitFor(t, "baseline", func() bool { _, ok := eng.Watcher.Cached(abs); return ok })
	if err := os.WriteFile(file, []byte("package auth\n\nfunc check() bool { return true }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "code change", func() bool {
		s, err := eng.Store.Get(sess.ID)
		return err == nil && len(s.Actions) == 2
	})
	got, _ := eng.Store.Get(sess.ID)
	if got.Actions[0].Type != models.ActionCommand || got.Actions[1].Type != models.ActionCodeChange {
		t.Errorf("actions = %s, %s; want command, codeChange", got.Actions[0].Type, got.Actions[1].Type)
	}

	waitFor(t, "index sync", func() bool {
		detail, err := index.GetSessionDetail(sess.ID)
		return err == nil && detail.ActionCount == 2
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop")
	}

	if _, err := os.Stat(rec.SocketPath()); !os.IsNotExist(err) {
		t.Errorf("socket still present after shutdown: %v", err)
	}
	stats := rec.GetStats()
	if stats.LedgerChanges < 3 || stats.IndexSyncs < 2 {
		t.Errorf("stats = %+v, want at least 3 ledger changes and 2 syncs", stats)
	}
}

func TestRecorderPausedSkipsSync(t *testing.T) {
	dir, err := os.MkdirTemp("", "dl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	cfg := config.Defaults(dir)
	eng, err := engine.New(context.Background(), cfg, engine.Options{Namer: namer.Heuristic{}})
	if err != nil {
		t.Fatal(err)
	}
	index, err := db.New(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = index.Close() })

	pause := filepath.Join(dir, "paused")
	if err := os.WriteFile(pause, nil, 0644); err != nil {
		t.Fatal(err)
	}
	rec, err := New(eng, filepath.Join(dir, "r.sock"), Options{Index: index, SyncInterval: 20 * time.Millisecond, PauseFile: pause})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.IsPaused() {
		t.Fatal("IsPaused() = false with pause file present")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Start(ctx) }()
	waitFor(t, "socket", func() bool { return hostsock.Available(rec.SocketPath()) })

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	if _, err := hostsock.NewClient(rec.SocketPath()).StartSession(callCtx, "paused work"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "ledger event", func() bool { return rec.GetStats().LedgerChanges > 0 })
	time.Sleep(100 * time.Millisecond)

	ids, err := index.SessionIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("index has %v while paused, want none", ids)
	}

	// Shutdown flushes pending changes even when paused
	cancel()
	<-done
	ids, _ = index.SessionIDs()
	if len(ids) != 1 {
		t.Errorf("index after shutdown = %v, want one session", ids)
	}
}

func TestNewRejectsMissingWatchDir(t *testing.T) {
	dir, err := os.MkdirTemp("", "dl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	eng, err := engine.New(context.Background(), config.Defaults(dir), engine.Options{Namer: namer.Heuristic{}})
	if err != nil {
		t.Fatal(err)
	}
	sock := filepath.Join(dir, "r.sock")
	if _, err := New(eng, sock, Options{WatchDir: filepath.Join(dir, "missing")}); err == nil {
		t.Fatal("New() error = nil for missing watch dir")
	}
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Errorf("socket left behind after failed New: %v", err)
	}
}

func TestRecorderSkipsOwnRecords(t *testing.T) {
	dir, err := os.MkdirTemp("", "dl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	// Session records live inside the watched tree
	project := filepath.Join(dir, "proj")
	cfg := config.Defaults(dir)
	cfg.SessionsDir = filepath.Join(project, ".devlog")
	cfg.ConfirmCodeChanges = false
	if err := os.MkdirAll(cfg.SessionsDir, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(project, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	eng, err := engine.New(context.Background(), cfg, engine.Options{Namer: namer.Heuristic{}})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := New(eng, filepath.Join(dir, "r.sock"), Options{
		WatchDir: project,
		Exclude:  []string{cfg.SessionsDir},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	waitFor(t, "socket", func() bool { return hostsock.Available(rec.SocketPath()) })

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	sess, err := hostsock.NewClient(rec.SocketPath()).StartSession(callCtx, "own records")
	if err != nil {
		t.Fatal(err)
	}

	abs, _ := filepath.Abs(file)
	waitFor(t, "baseline", func() bool { _, ok := eng.Watcher.Cached(abs); return ok })
	if err := os.WriteFile(file, []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "code change", func() bool {
		s, err := eng.Store.Get(sess.ID)
		return err == nil && len(s.Actions) >= 1
	})

	// Several debounce periods: a record write seen as a save would show up
	time.Sleep(time.Second)
	got, _ := eng.Store.Get(sess.ID)
	if len(got.Actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(got.Actions))
	}
	if got.Actions[0].File != abs {
		t.Errorf("recorded change to %s, want %s", got.Actions[0].File, abs)
	}
	if _, ok := eng.Watcher.Cached(eng.Files.RecordPath(sess.ID)); ok {
		t.Errorf("session record has a baseline, want it excluded")
	}
}
