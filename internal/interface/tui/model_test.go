package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/namer"
	"github.com/neilberkman/devlog/internal/core/search"
)

func newTestModel(t *testing.T) (Model, *engine.Engine, models.Session) {
	t.Helper()
	ctx := context.Background()

	cfg := config.Defaults(t.TempDir())
	cfg.SessionsDir = filepath.Join(t.TempDir(), "sessions")
	load := func(ctx context.Context) (*engine.Engine, error) {
		return engine.New(ctx, cfg, engine.Options{Namer: namer.Heuristic{}})
	}
	e, err := load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	sess, err := e.StartSession(ctx, "tidy the build scripts")
	if err != nil {
		t.Fatal(err)
	}
	for _, cmd := range []string{"make clean", "make all", "make test"} {
		if err := e.RecordCommand(ctx, cmd, "", 0); err != nil {
			t.Fatal(err)
		}
	}

	m := New(Options{Backend: e, Load: load, ExportTemplate: cfg.ExportTemplate})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model), e, sess
}

// send applies msg and then every message its commands produce
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next, cmd := m.Update(queue[0])
		m = next.(Model)
		queue = queue[1:]
		queue = append(queue, run(cmd)...)
	}
	return m
}

func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func commands(sess models.Session) []string {
	var out []string
	for _, a := range sess.Actions {
		out = append(out, a.Content)
	}
	return out
}

func TestModel_OpenAndEditLedger(t *testing.T) {
	m, e, sess := newTestModel(t)

	m = send(t, m, m.Init()())
	if len(m.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(m.sessions))
	}
	if m.activeID != sess.ID {
		t.Errorf("activeID = %q, want %q", m.activeID, sess.ID)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != detailView {
		t.Fatalf("mode = %v, want detailView", m.mode)
	}
	if m.current == nil || m.current.ID != sess.ID {
		t.Fatalf("current session = %+v, want %s", m.current, sess.ID)
	}

	// Select "make all" and move it up
	m = send(t, m, keys("j"))
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}
	m = send(t, m, keys("K"))
	if m.err != nil {
		t.Fatalf("reorder error = %v", m.err)
	}
	reloaded, err := e.Store.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"make all", "make clean", "make test"}
	if strings.Join(commands(reloaded), ",") != strings.Join(want, ",") {
		t.Errorf("after K ledger = %v, want %v", commands(reloaded), want)
	}
	if m.cursor != 0 {
		t.Errorf("cursor after K = %d, want 0", m.cursor)
	}

	// Delete the selected action
	m = send(t, m, keys("d"))
	if m.err != nil {
		t.Fatalf("delete error = %v", m.err)
	}
	want = []string{"make clean", "make test"}
	if strings.Join(commands(*m.current), ",") != strings.Join(want, ",") {
		t.Errorf("after d ledger = %v, want %v", commands(*m.current), want)
	}
}

func TestModel_AddNote(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = send(t, m, m.Init()())
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m = send(t, m, keys("n"))
	if !m.noteMode {
		t.Fatal("noteMode = false after n")
	}
	m = send(t, m, keys("flaky on CI"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.noteMode {
		t.Error("noteMode still on after enter")
	}
	n := len(m.current.Actions)
	if n != 4 {
		t.Fatalf("actions = %d, want 4", n)
	}
	if last := m.current.Actions[n-1]; last.Type != models.ActionNote || last.Text != "flaky on CI" {
		t.Errorf("last action = %+v, want the note", last)
	}
	if m.cursor != 3 {
		t.Errorf("cursor = %d, want 3", m.cursor)
	}
}

func TestModel_CloseAndActivate(t *testing.T) {
	m, e, sess := newTestModel(t)
	m = send(t, m, m.Init()())

	m = send(t, m, keys("x"))
	if m.activeID != "" {
		t.Errorf("activeID after x = %q, want empty", m.activeID)
	}
	if e.Lifecycle.IsActive() {
		t.Error("backend still active after x")
	}

	m = send(t, m, keys("a"))
	if m.activeID != sess.ID {
		t.Errorf("activeID after a = %q, want %q", m.activeID, sess.ID)
	}
}

func TestModel_DeleteSessionNeedsConfirm(t *testing.T) {
	m, e, sess := newTestModel(t)
	m = send(t, m, m.Init()())

	m = send(t, m, keys("D"))
	m = send(t, m, keys("n"))
	if !e.Store.Exists(sess.ID) {
		t.Fatal("session deleted without confirmation")
	}

	m = send(t, m, keys("D"))
	m = send(t, m, keys("y"))
	if e.Store.Exists(sess.ID) {
		t.Error("session still exists after confirmed delete")
	}
	if len(m.sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(m.sessions))
	}
}

func TestRenderLedger(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sess := &models.Session{
		ID:        "s1",
		Name:      "Fix Login",
		StartTime: at,
		Notes:     "check the cookie path",
		Actions: []models.Action{
			models.NewCommand("go test ./auth", "--- FAIL: TestLogin", false, at),
			models.NewCodeChange("auth.go", []models.Hunk{{Kind: models.HunkAddition, Text: "return nil"}}, at),
		},
	}

	out, cursorLine := renderLedger(sess, 1, "s1", 100)
	for _, want := range []string{"Fix Login", "recording", "check the cookie path", "go test ./auth", "auth.go (+1 -0)", "+ return nil"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderLedger() missing %q", want)
		}
	}
	if strings.Contains(out, "--- FAIL") {
		t.Error("renderLedger() expanded an action that is not selected")
	}
	lines := strings.Split(out, "\n")
	if cursorLine >= len(lines) || !strings.Contains(lines[cursorLine], "auth.go") {
		t.Errorf("cursor line %d does not hold the selected action", cursorLine)
	}
}

func TestActionBody(t *testing.T) {
	at := time.Now()
	tests := []struct {
		name   string
		action models.Action
		want   string
	}{
		{"command output", models.NewCommand("ls", "a\nb", true, at), "a\nb"},
		{"single line note", models.NewNote("short", at), ""},
		{"multi line note", models.NewNote("one\ntwo", at), "one\ntwo"},
		{"code change", models.NewCodeChange("f.go", []models.Hunk{
			{Kind: models.HunkRemoval, Text: "old"},
			{Kind: models.HunkAddition, Text: "new\nmore"},
		}, at), "- old\n+ new\n+ more"},
		{"screenshot", models.NewScreenshot("/tmp/s.png", "", at), "/tmp/s.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actionBody(&tt.action); got != tt.want {
				t.Errorf("actionBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupResults(t *testing.T) {
	results := []search.Result{
		{SessionID: "a", Seq: 3},
		{SessionID: "b", Seq: 1},
		{SessionID: "a", Seq: 2},
		{SessionID: "a", Seq: 1},
	}
	groups := groupResults(results, 2)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].SessionID != "a" || len(groups[0].Matches) != 2 {
		t.Errorf("groups[0] = %+v, want a with 2 matches", groups[0])
	}
	if groups[1].SessionID != "b" {
		t.Errorf("groups[1] = %s, want b", groups[1].SessionID)
	}
}

func TestClampCursor(t *testing.T) {
	tests := []struct {
		cursor, n, want int
	}{
		{0, 0, 0},
		{5, 3, 2},
		{-1, 3, 0},
		{1, 3, 1},
	}
	for _, tt := range tests {
		if got := clampCursor(tt.cursor, tt.n); got != tt.want {
			t.Errorf("clampCursor(%d, %d) = %d, want %d", tt.cursor, tt.n, got, tt.want)
		}
	}
}
