package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ActionType identifies which variant an Action carries
type ActionType string

const (
	ActionCommand     ActionType = "command"
	ActionConsequence ActionType = "consequence"
	ActionNote        ActionType = "note"
	ActionCodeChange  ActionType = "codeChange"
	ActionScreenshot  ActionType = "screenshot"
)

// Valid reports whether t is one of the known action types
func (t ActionType) Valid() bool {
	switch t {
	case ActionCommand, ActionConsequence, ActionNote, ActionCodeChange, ActionScreenshot:
		return true
	}
	return false
}

// HunkKind is the direction of a diff hunk
type HunkKind string

const (
	HunkAddition HunkKind = "addition"
	HunkRemoval  HunkKind = "removal"
)

// Hunk is a contiguous run of added or removed lines
type Hunk struct {
	Kind HunkKind `json:"kind"`
	Text string   `json:"text"`
}

// Action is one recorded event in a session ledger.
// Type selects which payload fields are meaningful:
//
//	command      Content, Output
//	consequence  Content
//	note         Text
//	codeChange   File, Hunks
//	screenshot   Path, Filename, Caption
type Action struct {
	Type      ActionType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Success   *bool      `json:"success,omitempty"`

	Content string `json:"content,omitempty"`
	Output  string `json:"output,omitempty"`

	Text string `json:"text,omitempty"`

	File  string `json:"file,omitempty"`
	Hunks []Hunk `json:"hunks,omitempty"`

	Path     string `json:"path,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// NewCommand builds a command action
func NewCommand(content, output string, success bool, at time.Time) Action {
	return Action{
		Type:      ActionCommand,
		Timestamp: at,
		Success:   &success,
		Content:   content,
		Output:    output,
	}
}

// NewConsequence builds a consequence action describing the outcome of earlier work
func NewConsequence(content string, success *bool, at time.Time) Action {
	return Action{
		Type:      ActionConsequence,
		Timestamp: at,
		Success:   success,
		Content:   content,
	}
}

// NewNote builds a note action
func NewNote(text string, at time.Time) Action {
	return Action{Type: ActionNote, Timestamp: at, Text: text}
}

// NewCodeChange builds a codeChange action
func NewCodeChange(file string, hunks []Hunk, at time.Time) Action {
	return Action{Type: ActionCodeChange, Timestamp: at, File: file, Hunks: hunks}
}

// NewScreenshot builds a screenshot action. Filename defaults to the base of path.
func NewScreenshot(path, caption string, at time.Time) Action {
	return Action{
		Type:      ActionScreenshot,
		Timestamp: at,
		Path:      path,
		Filename:  filepath.Base(path),
		Caption:   caption,
	}
}

// Validate checks that the variant payload required by Type is present
func (a *Action) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	switch a.Type {
	case ActionCommand, ActionConsequence:
		if strings.TrimSpace(a.Content) == "" {
			return fmt.Errorf("%s action requires content", a.Type)
		}
	case ActionNote:
		if strings.TrimSpace(a.Text) == "" {
			return errors.New("note action requires text")
		}
	case ActionCodeChange:
		if a.File == "" {
			return errors.New("codeChange action requires a file")
		}
		for i, h := range a.Hunks {
			if h.Kind != HunkAddition && h.Kind != HunkRemoval {
				return fmt.Errorf("hunk %d has unknown kind %q", i, h.Kind)
			}
		}
	case ActionScreenshot:
		if a.Path == "" {
			return errors.New("screenshot action requires a path")
		}
	}
	return nil
}

// Clone returns a deep copy
func (a Action) Clone() Action {
	if a.Success != nil {
		v := *a.Success
		a.Success = &v
	}
	if a.Hunks != nil {
		a.Hunks = append([]Hunk(nil), a.Hunks...)
	}
	return a
}

// Succeeded reports the success flag, treating an unset flag as false
func (a *Action) Succeeded() bool {
	return a.Success != nil && *a.Success
}

// Summary renders a single display line for lists and exports
func (a *Action) Summary() string {
	switch a.Type {
	case ActionCommand:
		status := ""
		if a.Success != nil {
			if *a.Success {
				status = " ✓"
			} else {
				status = " ✗"
			}
		}
		return "$ " + firstLine(a.Content) + status
	case ActionConsequence:
		return "→ " + firstLine(a.Content)
	case ActionNote:
		return firstLine(a.Text)
	case ActionCodeChange:
		var adds, dels int
		for _, h := range a.Hunks {
			n := strings.Count(h.Text, "\n") + 1
			if h.Kind == HunkAddition {
				adds += n
			} else {
				dels += n
			}
		}
		return fmt.Sprintf("%s (+%d -%d)", a.File, adds, dels)
	case ActionScreenshot:
		if a.Caption != "" {
			return a.Filename + ": " + firstLine(a.Caption)
		}
		return a.Filename
	}
	return string(a.Type)
}

// SearchText is the text indexed for full-text search
func (a *Action) SearchText() string {
	var parts []string
	for _, s := range []string{a.Content, a.Output, a.Text, a.File, a.Filename, a.Caption} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, h := range a.Hunks {
		parts = append(parts, h.Text)
	}
	return strings.Join(parts, "\n")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
