package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type chanSink struct {
	mu     sync.Mutex
	opened map[string]string
	saved  chan string
}

func newChanSink() *chanSink {
	return &chanSink{opened: make(map[string]string), saved: make(chan string, 16)}
}

func (s *chanSink) FileOpened(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened[path] = content
}

func (s *chanSink) FileSaved(path, content string) { s.saved <- path }

func (s *chanSink) FileRemoved(path string) {}

func TestMatchIgnore(t *testing.T) {
	patterns := []string{".git", "node_modules", "*.swp", "build/out"}
	tests := []struct {
		rel  string
		want bool
	}{
		{".git/HEAD", true},
		{"web/node_modules/x.js", true},
		{"main.go.swp", true},
		{"build/out", true},
		{"build/src.go", false},
		{"internal/core/main.go", false},
	}
	for _, tt := range tests {
		if got := matchIgnore(patterns, tt.rel); got != tt.want {
			t.Errorf("matchIgnore(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestReadTextSkipsBinary(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "a.txt")
	bin := filepath.Join(dir, "a.bin")
	_ = os.WriteFile(text, []byte("hello\n"), 0644)
	_ = os.WriteFile(bin, []byte{0x7f, 'E', 'L', 'F', 0}, 0644)

	if c, ok := readText(text); !ok || c != "hello\n" {
		t.Errorf("readText(text) = %q, %v", c, ok)
	}
	if _, ok := readText(bin); ok {
		t.Errorf("readText(binary) should be skipped")
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(20*time.Millisecond, func(string) { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Queue("a")
	}
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("processed %d times, want 1", got)
	}

	d.Queue("b")
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("event delivered after Stop()")
	}
	if d.Queue("c") {
		t.Errorf("Queue() after Stop() = true")
	}
}

func TestHostReportsOpenAndSave(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0644)

	sink := newChanSink()
	h, err := NewHost(root, []string{".git"}, sink)
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	h.delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Wait for the initial walk
	deadline := time.Now().Add(2 * time.Second)
	for {
		sink.mu.Lock()
		_, ok := sink.opened[file]
		n := len(sink.opened)
		sink.mu.Unlock()
		if ok {
			if n != 1 {
				t.Errorf("opened %d files, want 1 (ignored dirs skipped)", n)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("initial walk did not report %s", file)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.WriteFile(file, []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-sink.saved:
		if got != file {
			t.Errorf("saved %s, want %s", got, file)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no save reported")
	}
}

func TestHostExcluded(t *testing.T) {
	root := t.TempDir()
	sessions := filepath.Join(root, ".devlog", "sessions")
	db := filepath.Join(root, "index.db")

	h, err := NewHost(root, nil, newChanSink(), WithExcluded(sessions, db, db+"-wal", ""))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(sessions, "20260101-abc.json"), true},
		{sessions, true},
		{filepath.Join(root, ".devlog", "config.toml"), false},
		{db, true},
		{db + "-wal", true},
		{filepath.Join(root, "index.dbx"), false},
		{filepath.Join(root, "sessions.go"), false},
	}
	for _, tt := range tests {
		if got := h.Ignored(tt.path); got != tt.want {
			t.Errorf("Ignored(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
