package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/filewatch"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/namer"
	"github.com/neilberkman/devlog/internal/core/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults(t.TempDir())
	cfg.SessionsDir = filepath.Join(t.TempDir(), "sessions")
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, opts Options) *Engine {
	t.Helper()
	if opts.Namer == nil {
		opts.Namer = namer.Heuristic{}
	}
	e, err := New(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func runEngine(t *testing.T, e *Engine) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Wait until the loop is accepting work
	for !e.running.Load() {
		time.Sleep(time.Millisecond)
	}
	return context.Background()
}

func TestEngineFixAuthBugScenario(t *testing.T) {
	e := newTestEngine(t, testConfig(t), Options{})
	ctx := runEngine(t, e)

	sess, err := e.StartSession(ctx, "Fix auth bug")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	if err := e.TerminalStart(ctx, "pid-7", "npm test"); err != nil {
		t.Fatal(err)
	}
	if err := e.TerminalEnd(ctx, "pid-7", 1, "FAIL 2 tests"); err != nil {
		t.Fatal(err)
	}
	// End without a start is ignored
	if err := e.TerminalEnd(ctx, "pid-8", 0, "stray"); err != nil {
		t.Fatal(err)
	}

	path := "/src/auth.go"
	e.FileOpened(path, "func refresh() {\n\treturn\n}\n")
	e.FileSaved(path, "func refresh() {\n\tclock.Now()\n\treturn\n}\n")
	// Identical save records nothing
	e.FileSaved(path, "func refresh() {\n\tclock.Now()\n\treturn\n}\n")

	if err := e.AddAction(ctx, "", models.NewNote("fixed stale clock", time.Now())); err != nil {
		t.Fatal(err)
	}

	rec, err := store.ReadRecord(e.Files.RecordPath(sess.ID))
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	types := make([]models.ActionType, len(rec.Actions))
	for i, a := range rec.Actions {
		types[i] = a.Type
	}
	want := []models.ActionType{models.ActionCommand, models.ActionCodeChange, models.ActionNote}
	if len(types) != len(want) {
		t.Fatalf("ledger types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("ledger types = %v, want %v", types, want)
		}
	}

	cmd := rec.Actions[0]
	if cmd.Content != "npm test" || cmd.Output != "FAIL 2 tests" || cmd.Succeeded() {
		t.Errorf("command = %+v", cmd)
	}
	change := rec.Actions[1]
	if change.File != path || len(change.Hunks) != 1 || change.Hunks[0].Text != "\tclock.Now()" {
		t.Errorf("code change = %+v", change)
	}
}

func TestEngineCodeChangeConfirmation(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConfirmCodeChanges = true

	var asked []filewatch.ChangeSummary
	e := newTestEngine(t, cfg, Options{Confirmer: filewatch.ConfirmFunc(
		func(ctx context.Context, c filewatch.ChangeSummary) (bool, error) {
			asked = append(asked, c)
			return false, nil
		})})
	ctx := runEngine(t, e)

	sess, err := e.StartSession(ctx, "confirm")
	if err != nil {
		t.Fatal(err)
	}
	e.FileOpened("a.go", "a\n")
	e.FileSaved("a.go", "b\n")
	// Flush the queue
	if err := e.ActivateSession(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	if len(asked) != 1 {
		t.Fatalf("confirmer asked %d times, want 1", len(asked))
	}
	got, _ := e.Store.Get(sess.ID)
	if len(got.Actions) != 0 {
		t.Errorf("declined change recorded: %+v", got.Actions)
	}
}

func TestEngineTrackingDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.TrackTerminal = false
	e := newTestEngine(t, cfg, Options{})
	ctx := context.Background()

	sess, err := e.StartSession(ctx, "quiet")
	if err != nil {
		t.Fatal(err)
	}
	_ = e.TerminalStart(ctx, "t1", "ls")
	_ = e.TerminalEnd(ctx, "t1", 0, "")

	got, _ := e.Store.Get(sess.ID)
	if len(got.Actions) != 0 {
		t.Errorf("recorded with terminal tracking disabled: %+v", got.Actions)
	}

	// Manual recording bypasses tracking
	if err := e.RecordCommand(ctx, "ls", "a b", 0); err != nil {
		t.Fatal(err)
	}
	got, _ = e.Store.Get(sess.ID)
	if len(got.Actions) != 1 {
		t.Errorf("manual command not recorded")
	}
}

func TestEngineReloadsState(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	e := newTestEngine(t, cfg, Options{})
	sess, err := e.StartSession(ctx, "persist me")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RecordCommand(ctx, "make", "", 0); err != nil {
		t.Fatal(err)
	}

	again := newTestEngine(t, cfg, Options{})
	if again.Lifecycle.ActiveSessionID() != sess.ID {
		t.Errorf("active session not restored: %q", again.Lifecycle.ActiveSessionID())
	}
	got, err := again.Store.Get(sess.ID)
	if err != nil || len(got.Actions) != 1 {
		t.Errorf("reloaded session = %+v, %v", got, err)
	}
}

func TestEngineLedgerOps(t *testing.T) {
	e := newTestEngine(t, testConfig(t), Options{})
	ctx := context.Background()

	s1, _ := e.StartSession(ctx, "S1")
	s2, _ := e.StartSession(ctx, "S2")
	for _, text := range []string{"a", "b", "c"} {
		if err := e.AddAction(ctx, s1.ID, models.NewNote(text, time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	if err := e.MoveAction(ctx, s1.ID, 2, s2.ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.ReorderAction(ctx, s1.ID, 0, 1); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteAction(ctx, s1.ID, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteAction(99) error = %v, want ErrNotFound", err)
	}

	g1, _ := e.Store.Get(s1.ID)
	g2, _ := e.Store.Get(s2.ID)
	if len(g1.Actions) != 2 || g1.Actions[0].Text != "b" || g1.Actions[1].Text != "a" {
		t.Errorf("S1 = %+v", g1.Actions)
	}
	if len(g2.Actions) != 1 || g2.Actions[0].Text != "c" {
		t.Errorf("S2 = %+v", g2.Actions)
	}

	if err := e.DeleteSession(ctx, s2.ID); err != nil {
		t.Fatal(err)
	}
	if e.Lifecycle.IsActive() {
		t.Errorf("deleting the active session left the lifecycle active")
	}
}

func TestEngineBusyLoopKeepsFileEvents(t *testing.T) {
	e := newTestEngine(t, testConfig(t), Options{})
	ctx := runEngine(t, e)

	release := make(chan struct{})
	busy := make(chan error, 1)
	go func() {
		busy <- e.do(ctx, func(context.Context) error {
			<-release
			return nil
		})
	}()

	const n = queueSize + 44
	posted := make(chan struct{})
	go func() {
		defer close(posted)
		for i := 0; i < n; i++ {
			e.FileOpened(fmt.Sprintf("f%03d.go", i), "package f\n")
		}
	}()

	// Give the poster time to fill the queue while the loop is held
	time.Sleep(50 * time.Millisecond)
	close(release)
	if err := <-busy; err != nil {
		t.Fatal(err)
	}
	<-posted

	// Flush whatever is still queued
	if err := e.do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	missing := 0
	for i := 0; i < n; i++ {
		if _, ok := e.Watcher.Cached(fmt.Sprintf("f%03d.go", i)); !ok {
			missing++
		}
	}
	if missing != 0 {
		t.Errorf("baselines missing after %d opens: %d", n, missing)
	}
}

func TestEngineStopped(t *testing.T) {
	e := newTestEngine(t, testConfig(t), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	for !e.running.Load() {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Posting to a stopped engine returns instead of blocking on a full queue
	for i := 0; i < queueSize+1; i++ {
		e.FileSaved("a.go", "x\n")
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Run() after stop error = %v, want ErrStopped", err)
	}
}
