package filewatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/neilberkman/devlog/internal/core/log"
)

// MaxFileSize is the largest file whose content is tracked
const MaxFileSize = 1 << 20

// Sink receives file host events. The engine implements it by queueing
// FileOpen / FileSave events.
type Sink interface {
	FileOpened(path, content string)
	FileSaved(path, content string)
	FileRemoved(path string)
}

// Host watches a directory tree and reports text files as opened (on the
// initial walk and on creation) and saved (on write, debounced).
type Host struct {
	root    string
	ignore  []string
	exclude []string
	sink    Sink
	delay   time.Duration

	watcher   *fsnotify.Watcher
	debouncer *debouncer
}

// HostOption configures a Host
type HostOption func(*Host)

// WithExcluded skips the given absolute paths and everything below them.
// devlog's own record, index and log files go here so that writing them is
// never reported as a save.
func WithExcluded(paths ...string) HostOption {
	return func(h *Host) {
		for _, p := range paths {
			if p != "" {
				h.exclude = append(h.exclude, pathVariants(p)...)
			}
		}
	}
}

// NewHost creates a file host for root. ignore holds filepath.Match globs
// tested against every path component and the root-relative path.
func NewHost(root string, ignore []string, sink Sink, opts ...HostOption) (*Host, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch path does not exist: %s", abs)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path is not a directory: %s", abs)
	}

	h := &Host{
		root:   abs,
		ignore: ignore,
		sink:   sink,
		delay:  DefaultDebounceDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// pathVariants returns the absolute form of p and, when it differs, the
// form with symlinks resolved
func pathVariants(p string) []string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil
	}
	out := []string{abs}
	if real, err := filepath.EvalSymlinks(abs); err == nil && real != abs {
		out = append(out, real)
	}
	return out
}

// Root returns the absolute watched directory
func (h *Host) Root() string {
	return h.root
}

// Run walks the tree, then forwards filesystem events until ctx is done
func (h *Host) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	h.watcher = w
	h.debouncer = newDebouncer(h.delay, h.emitSave)
	defer func() {
		h.debouncer.Stop()
		_ = w.Close()
	}()

	files, dirs := h.walk(h.root, true)
	log.Info().Str("root", h.root).Int("dirs", dirs).Int("files", files).Msg("watching files")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			h.handleEvent(event)

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// walk adds every directory under dir to the watcher and, when emit is set,
// reports every text file as opened.
func (h *Host) walk(dir string, emit bool) (files, dirs int) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if h.Ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := h.watcher.Add(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
			}
			dirs++
			return nil
		}
		if emit {
			if content, ok := readText(path); ok {
				h.sink.FileOpened(path, content)
				files++
			}
		}
		return nil
	})
	return files, dirs
}

func (h *Host) handleEvent(event fsnotify.Event) {
	if h.Ignored(event.Name) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			h.debouncer.Cancel(event.Name)
			h.sink.FileRemoved(event.Name)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			// New directories start with a baseline for everything inside
			h.walk(event.Name, true)
		}
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		// Editors that save by rename show up as create; a file we have
		// never seen gets its baseline from the debounced save.
		h.debouncer.Queue(event.Name)
	case event.Op&fsnotify.Write != 0:
		h.debouncer.Queue(event.Name)
	}
}

func (h *Host) emitSave(path string) {
	content, ok := readText(path)
	if !ok {
		return
	}
	h.sink.FileSaved(path, content)
}

// Ignored reports whether path is excluded or matches an ignore glob
func (h *Host) Ignored(path string) bool {
	if h.excluded(path) {
		return true
	}
	rel, err := filepath.Rel(h.root, path)
	if err != nil || rel == "." {
		return false
	}
	return matchIgnore(h.ignore, rel)
}

func (h *Host) excluded(path string) bool {
	path = filepath.Clean(path)
	for _, ex := range h.exclude {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func matchIgnore(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		for _, part := range parts {
			if ok, _ := filepath.Match(p, part); ok {
				return true
			}
		}
	}
	return false
}

// readText returns a file's content when it is small enough and not binary
func readText(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > MaxFileSize {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", false
	}
	return string(data), true
}
