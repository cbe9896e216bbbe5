package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilberkman/devlog/internal/core/models"
)

func TestFileStoreSaveRead(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	sess := &models.Session{
		ID:          "20250301-093000-abcdef12",
		Name:        "Fix Auth Bug",
		Description: "Fix auth bug",
		StartTime:   at,
		Actions: []models.Action{
			models.NewCommand("npm test", "FAIL 2 tests", false, at),
			models.NewNote("token expiry is off by one", at),
		},
	}

	if err := fs.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := fs.Read(fs.RecordPath(sess.ID))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.ID != sess.ID || got.Name != sess.Name || !got.StartTime.Equal(sess.StartTime) {
		t.Errorf("Read() = %+v, want %+v", got, sess)
	}
	if len(got.Actions) != 2 || got.Actions[0].Content != "npm test" || got.Actions[1].Text != "token expiry is off by one" {
		t.Errorf("Read() actions = %+v", got.Actions)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(fs.Dir())
	if len(entries) != 1 {
		t.Errorf("session dir has %d entries, want 1", len(entries))
	}
}

func TestFileStoreScanSkipsNonRecords(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	for name, body := range map[string]string{
		"a.json":       "{}",
		"b.json":       "{}",
		"active.json":  `{"id":"a"}`,
		".c-123.tmp":   "",
		".hidden.json": "{}",
		"notes.txt":    "",
	} {
		if err := os.WriteFile(filepath.Join(fs.Dir(), name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(fs.ViewsDir(), 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := fs.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Scan() = %v, want 2 records", paths)
	}
	if filepath.Base(paths[0]) != "a.json" || filepath.Base(paths[1]) != "b.json" {
		t.Errorf("Scan() = %v", paths)
	}
}

func TestReadRecordRejects(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		file string
		body string
	}{
		{"malformed json", "x.json", "{not json"},
		{"missing start time", "x.json", `{"id":"x","actions":[]}`},
		{"unknown action type", "x.json", `{"id":"x","startTime":"2025-03-01T09:30:00Z","actions":[{"type":"video","timestamp":"2025-03-01T09:30:00Z"}]}`},
		{"id mismatch", "y.json", `{"id":"x","startTime":"2025-03-01T09:30:00Z","actions":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadRecord(path); err == nil {
				t.Errorf("ReadRecord() expected error")
			}
		})
	}
}

func TestFileStoreRemoveDeletesViews(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	sess := &models.Session{ID: "s1", StartTime: time.Now(), Actions: []models.Action{}}
	if err := fs.Save(sess); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(fs.ViewsDir(), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"s1.md", "s1.yaml", "s10.md"} {
		if err := os.WriteFile(filepath.Join(fs.ViewsDir(), name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := fs.Remove("s1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(fs.RecordPath("s1")); !os.IsNotExist(err) {
		t.Errorf("record still exists")
	}
	views, _ := filepath.Glob(filepath.Join(fs.ViewsDir(), "*"))
	if len(views) != 1 || filepath.Base(views[0]) != "s10.md" {
		t.Errorf("views after Remove() = %v, want only s10.md", views)
	}

	// Removing again is not an error
	if err := fs.Remove("s1"); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}
