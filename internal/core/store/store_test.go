package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/notify"
)

var testTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) (*Store, *FileStore) {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return New(fs, opts...), fs
}

func mustCreate(t *testing.T, s *Store, description string) models.Session {
	t.Helper()
	sess, err := s.Create(context.Background(), description)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sess
}

func notes(texts ...string) []models.Action {
	out := make([]models.Action, len(texts))
	for i, text := range texts {
		out[i] = models.NewNote(text, testTime)
	}
	return out
}

func ledgerTexts(t *testing.T, s *Store, id string) []string {
	t.Helper()
	sess, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	out := make([]string, len(sess.Actions))
	for i, a := range sess.Actions {
		out[i] = a.Text
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fakeNamer struct {
	name string
	err  error
}

func (f fakeNamer) Name(ctx context.Context, description string) (string, error) {
	return f.name, f.err
}

func TestCreate(t *testing.T) {
	s, fs := newTestStore(t, WithClock(func() time.Time { return testTime }))

	sess := mustCreate(t, s, "  Fix auth bug ")

	if !regexp.MustCompile(`^20250301-093000-[0-9a-f]{8}$`).MatchString(sess.ID) {
		t.Errorf("Create() id = %q", sess.ID)
	}
	if sess.Name != "Fix Auth Bug" {
		t.Errorf("Create() name = %q, want %q", sess.Name, "Fix Auth Bug")
	}
	if sess.Description != "Fix auth bug" {
		t.Errorf("Create() description = %q", sess.Description)
	}
	if sess.Actions == nil || len(sess.Actions) != 0 {
		t.Errorf("Create() actions = %v, want empty", sess.Actions)
	}
	if _, err := os.Stat(fs.RecordPath(sess.ID)); err != nil {
		t.Errorf("record not persisted: %v", err)
	}
}

func TestCreateUniqueIDs(t *testing.T) {
	s, _ := newTestStore(t, WithClock(func() time.Time { return testTime }))
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		sess := mustCreate(t, s, "same second")
		if seen[sess.ID] {
			t.Fatalf("duplicate id %s", sess.ID)
		}
		seen[sess.ID] = true
	}
}

func TestCreateNamerFallback(t *testing.T) {
	s, _ := newTestStore(t, WithNamer(fakeNamer{err: errors.New("offline")}))
	if got := mustCreate(t, s, "Fix auth bug").Name; got != "Fix Auth Bug" {
		t.Errorf("name = %q, want heuristic fallback", got)
	}

	s, _ = newTestStore(t, WithNamer(fakeNamer{name: "Auth refresh"}))
	if got := mustCreate(t, s, "Fix auth bug").Name; got != "Auth refresh" {
		t.Errorf("name = %q, want namer output", got)
	}
}

func TestAddActionPreservesOrder(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s, "order")

	for _, a := range notes("a1", "a2", "a3") {
		if err := s.AddAction(sess.ID, a); err != nil {
			t.Fatalf("AddAction() error = %v", err)
		}
	}

	if got := ledgerTexts(t, s, sess.ID); !equalStrings(got, []string{"a1", "a2", "a3"}) {
		t.Errorf("ledger = %v, want [a1 a2 a3]", got)
	}
}

func TestAddActionErrors(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s, "errors")

	if err := s.AddAction("missing", models.NewNote("x", testTime)); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddAction(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.AddAction(sess.ID, models.Action{Type: "video", Timestamp: testTime}); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("AddAction(invalid) error = %v, want ErrInvalidAction", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s, "copy")
	if err := s.AddAction(sess.ID, models.NewNote("original", testTime)); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(sess.ID)
	got.Actions[0].Text = "changed"

	if texts := ledgerTexts(t, s, sess.ID); texts[0] != "original" {
		t.Errorf("mutating Get() result changed the store: %v", texts)
	}
}

func TestDeleteActionOutOfRange(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s, "S1")
	for _, a := range notes("a", "b", "c") {
		if err := s.AddAction(sess.ID, a); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := s.DeleteAction(sess.ID, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAction(99) error = %v, want ErrNotFound", err)
	}
	if _, err := s.DeleteAction(sess.ID, -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAction(-1) error = %v, want ErrNotFound", err)
	}
	if got := ledgerTexts(t, s, sess.ID); len(got) != 3 {
		t.Errorf("ledger length = %d, want 3", len(got))
	}

	removed, err := s.DeleteAction(sess.ID, 1)
	if err != nil {
		t.Fatalf("DeleteAction(1) error = %v", err)
	}
	if removed.Text != "b" {
		t.Errorf("DeleteAction(1) removed %q, want b", removed.Text)
	}
	if got := ledgerTexts(t, s, sess.ID); !equalStrings(got, []string{"a", "c"}) {
		t.Errorf("ledger = %v, want [a c]", got)
	}
}

func TestMoveAcrossSessions(t *testing.T) {
	s, fs := newTestStore(t)
	s1 := mustCreate(t, s, "S1")
	s2 := mustCreate(t, s, "S2")
	for _, a := range notes("a", "b", "c") {
		if err := s.AddAction(s1.ID, a); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AddAction(s2.ID, models.NewNote("x", testTime)); err != nil {
		t.Fatal(err)
	}

	if err := s.Move(s1.ID, 2, s2.ID, 0); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	if got := ledgerTexts(t, s, s1.ID); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("S1 = %v, want [a b]", got)
	}
	if got := ledgerTexts(t, s, s2.ID); !equalStrings(got, []string{"c", "x"}) {
		t.Errorf("S2 = %v, want [c x]", got)
	}

	// Both records were persisted
	for id, want := range map[string]int{s1.ID: 2, s2.ID: 2} {
		rec, err := ReadRecord(fs.RecordPath(id))
		if err != nil {
			t.Fatalf("ReadRecord(%s) error = %v", id, err)
		}
		if len(rec.Actions) != want {
			t.Errorf("persisted %s has %d actions, want %d", id, len(rec.Actions), want)
		}
	}
}

func TestMoveWithinSession(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
		want     []string
	}{
		{"forward", 0, 2, []string{"b", "a", "c", "d"}},
		{"to tail", 0, 4, []string{"b", "c", "d", "a"}},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}},
		{"same slot", 1, 1, []string{"a", "b", "c", "d"}},
		{"next slot", 1, 2, []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			sess := mustCreate(t, s, "S")
			for _, a := range notes("a", "b", "c", "d") {
				if err := s.AddAction(sess.ID, a); err != nil {
					t.Fatal(err)
				}
			}

			if err := s.Move(sess.ID, tt.src, sess.ID, tt.dst); err != nil {
				t.Fatalf("Move() error = %v", err)
			}
			if got := ledgerTexts(t, s, sess.ID); !equalStrings(got, tt.want) {
				t.Errorf("ledger = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoveErrorsLeaveStateUnchanged(t *testing.T) {
	s, _ := newTestStore(t)
	s1 := mustCreate(t, s, "S1")
	s2 := mustCreate(t, s, "S2")
	for _, a := range notes("a", "b") {
		if err := s.AddAction(s1.ID, a); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		src    string
		srcIdx int
		dst    string
		dstIdx int
	}{
		{"missing source", "nope", 0, s2.ID, 0},
		{"missing dest", s1.ID, 0, "nope", 0},
		{"source index", s1.ID, 2, s2.ID, 0},
		{"dest index past tail", s1.ID, 0, s2.ID, 1},
		{"negative dest", s1.ID, 0, s2.ID, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Move(tt.src, tt.srcIdx, tt.dst, tt.dstIdx); !errors.Is(err, ErrNotFound) {
				t.Errorf("Move() error = %v, want ErrNotFound", err)
			}
		})
	}

	if got := ledgerTexts(t, s, s1.ID); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("S1 = %v, want unchanged", got)
	}
	if got := ledgerTexts(t, s, s2.ID); len(got) != 0 {
		t.Errorf("S2 = %v, want empty", got)
	}
}

func TestReorder(t *testing.T) {
	s, _ := newTestStore(t)
	sess := mustCreate(t, s, "S")
	for _, a := range notes("a", "b", "c") {
		if err := s.AddAction(sess.ID, a); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Reorder(sess.ID, 0, 2); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}
	if got := ledgerTexts(t, s, sess.ID); !equalStrings(got, []string{"b", "c", "a"}) {
		t.Errorf("ledger = %v, want [b c a]", got)
	}

	if err := s.Reorder(sess.ID, 0, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reorder(0, 3) error = %v, want ErrNotFound", err)
	}
	if got := ledgerTexts(t, s, sess.ID); !equalStrings(got, []string{"b", "c", "a"}) {
		t.Errorf("ledger after failed Reorder = %v", got)
	}
}

type fakeActivity struct {
	active string
	closed int
}

func (f *fakeActivity) ActiveSessionID() string { return f.active }

func (f *fakeActivity) Close() error {
	f.active = ""
	f.closed++
	return nil
}

func TestDeleteClosesActiveSession(t *testing.T) {
	s, fs := newTestStore(t)
	sess := mustCreate(t, s, "doomed")
	other := mustCreate(t, s, "other")

	act := &fakeActivity{active: sess.ID}
	s.SetActivity(act)

	if err := s.Delete(other.ID); err != nil {
		t.Fatalf("Delete(other) error = %v", err)
	}
	if act.closed != 0 {
		t.Errorf("deleting an inactive session closed the lifecycle")
	}

	if err := s.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if act.closed != 1 {
		t.Errorf("Close() called %d times, want 1", act.closed)
	}
	if s.Exists(sess.ID) {
		t.Errorf("session still in memory")
	}
	if _, err := os.Stat(fs.RecordPath(sess.ID)); !os.IsNotExist(err) {
		t.Errorf("record still on disk")
	}
	if err := s.Delete(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestListMarksActive(t *testing.T) {
	clock := testTime
	s, _ := newTestStore(t, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	first := mustCreate(t, s, "first")
	second := mustCreate(t, s, "second")
	if err := s.AddAction(first.ID, models.NewNote("n", testTime)); err != nil {
		t.Fatal(err)
	}
	s.SetActivity(&fakeActivity{active: first.ID})

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID {
		t.Errorf("List()[0] = %s, want newest %s", list[0].ID, second.ID)
	}
	if !list[1].Active || list[0].Active {
		t.Errorf("active flags = %v, %v", list[0].Active, list[1].Active)
	}
	if list[1].ActionCount != 1 {
		t.Errorf("ActionCount = %d, want 1", list[1].ActionCount)
	}
}

func TestLoadRoundTripSkipsMalformed(t *testing.T) {
	s, fs := newTestStore(t)
	sess := mustCreate(t, s, "persisted")
	cmd := models.NewCommand("ls", "a b", true, testTime)
	if err := s.AddAction(sess.ID, cmd); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fs.Dir(), "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	reloaded := New(fs)
	n, err := reloaded.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Load() = %d, want 1", n)
	}

	got, err := reloaded.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != sess.Name || len(got.Actions) != 1 {
		t.Fatalf("reloaded session = %+v", got)
	}
	a := got.Actions[0]
	if a.Type != models.ActionCommand || a.Content != "ls" || a.Output != "a b" || !a.Succeeded() {
		t.Errorf("reloaded action = %+v", a)
	}
}

type failingPersistence struct {
	*FileStore
	err error
}

func (f failingPersistence) Save(*models.Session) error { return f.err }

func TestPersistFailureKeepsMemory(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	diskFull := errors.New("disk full")
	s := New(failingPersistence{FileStore: fs, err: diskFull})

	sess, err := s.Create(context.Background(), "unsaved")
	var perr *PersistError
	if !errors.As(err, &perr) || !errors.Is(err, diskFull) {
		t.Fatalf("Create() error = %v, want PersistError wrapping disk full", err)
	}
	if perr.SessionID != sess.ID {
		t.Errorf("PersistError.SessionID = %q, want %q", perr.SessionID, sess.ID)
	}

	if err := s.AddAction(sess.ID, models.NewNote("kept", testTime)); !errors.As(err, &perr) {
		t.Errorf("AddAction() error = %v, want PersistError", err)
	}
	if got := ledgerTexts(t, s, sess.ID); !equalStrings(got, []string{"kept"}) {
		t.Errorf("ledger = %v, want in-memory mutation kept", got)
	}
}

func TestMutationsNotify(t *testing.T) {
	svc := notify.NewService()
	events, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	s, _ := newTestStore(t, WithNotifier(svc))
	s1 := mustCreate(t, s, "S1")
	s2 := mustCreate(t, s, "S2")
	if err := s.AddAction(s1.ID, models.NewNote("a", testTime)); err != nil {
		t.Fatal(err)
	}
	if err := s.Move(s1.ID, 0, s2.ID, 0); err != nil {
		t.Fatal(err)
	}

	want := []notify.EventType{
		notify.EventSessionCreated,
		notify.EventSessionCreated,
		notify.EventLedgerChanged,
		notify.EventLedgerChanged,
	}
	for i, w := range want {
		select {
		case ev := <-events:
			if ev.Type != w {
				t.Errorf("event %d = %s, want %s", i, ev.Type, w)
			}
			if i == 3 && len(ev.SessionIDs) != 2 {
				t.Errorf("move event ids = %v, want both sessions", ev.SessionIDs)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}
