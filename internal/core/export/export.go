package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/neilberkman/devlog/internal/core/metadata"
	"github.com/neilberkman/devlog/internal/core/models"
)

// Format is an export file format
type Format string

const (
	Markdown Format = "md"
	YAML     Format = "yaml"
	JSON     Format = "json"
)

// ParseFormat accepts md|markdown, yaml|yml, json
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return Markdown, nil
	case "yaml", "yml":
		return YAML, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want md, yaml or json)", s)
}

// Ext is the file extension for f, without the dot
func (f Format) Ext() string {
	return string(f)
}

// Render serializes sess in the given format. tmpl is the mustache template
// used for markdown.
func Render(sess *models.Session, format Format, tmpl string) ([]byte, error) {
	switch format {
	case Markdown:
		out, err := mustache.Render(tmpl, templateData(sess))
		if err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		return []byte(out), nil
	case YAML:
		return yaml.Marshal(newRecordDoc(sess))
	case JSON:
		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// ViewPath is the cached view location for a session: <viewsDir>/<id>.<ext>
func ViewPath(viewsDir, sessionID string, format Format) string {
	return filepath.Join(viewsDir, sessionID+"."+format.Ext())
}

// WriteFile renders sess to path, creating parent directories
func WriteFile(path string, sess *models.Session, format Format, tmpl string) error {
	data, err := Render(sess, format, tmpl)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func templateData(sess *models.Session) map[string]interface{} {
	actions := make([]map[string]interface{}, 0, len(sess.Actions))
	for i := range sess.Actions {
		a := &sess.Actions[i]

		var hunks []map[string]interface{}
		for _, h := range a.Hunks {
			marker := "+"
			if h.Kind == models.HunkRemoval {
				marker = "-"
			}
			for _, line := range strings.Split(h.Text, "\n") {
				hunks = append(hunks, map[string]interface{}{"marker": marker, "text": line})
			}
		}

		actions = append(actions, map[string]interface{}{
			"index":      i + 1,
			"type":       string(a.Type),
			"time":       a.Timestamp.Local().Format("15:04:05"),
			"summary":    a.Summary(),
			"has_output": a.Output != "",
			"output":     a.Output,
			"has_hunks":  len(hunks) > 0,
			"hunks":      hunks,
		})
	}

	refs := metadata.Extract(sess.Actions)
	issues := make([]map[string]interface{}, 0, len(refs.Issues))
	for _, occ := range refs.Issues {
		issues = append(issues, map[string]interface{}{"value": occ.Value, "count": occ.Count})
	}
	files := make([]map[string]interface{}, 0, len(refs.Files))
	for _, occ := range refs.Files {
		files = append(files, map[string]interface{}{"value": occ.Value, "count": occ.Count, "modified": occ.Modified})
	}

	return map[string]interface{}{
		"id":           sess.ID,
		"name":         sess.Name,
		"description":  sess.Description,
		"started":      sess.StartTime.Local().Format("2006-01-02 15:04 MST"),
		"started_ago":  humanize.Time(sess.StartTime),
		"notes":        sess.Notes,
		"has_notes":    strings.TrimSpace(sess.Notes) != "",
		"action_count": len(sess.Actions),
		"actions":      actions,
		"has_issues":   len(issues) > 0,
		"issues":       issues,
		"has_files":    len(files) > 0,
		"files":        files,
	}
}

type recordDoc struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	StartTime   time.Time   `yaml:"start_time"`
	Notes       string      `yaml:"notes,omitempty"`
	Actions     []actionDoc `yaml:"actions"`
}

type actionDoc struct {
	Type      string    `yaml:"type"`
	Timestamp time.Time `yaml:"timestamp"`
	Success   *bool     `yaml:"success,omitempty"`
	Content   string    `yaml:"content,omitempty"`
	Output    string    `yaml:"output,omitempty"`
	Text      string    `yaml:"text,omitempty"`
	File      string    `yaml:"file,omitempty"`
	Hunks     []hunkDoc `yaml:"hunks,omitempty"`
	Path      string    `yaml:"path,omitempty"`
	Caption   string    `yaml:"caption,omitempty"`
}

type hunkDoc struct {
	Kind string `yaml:"kind"`
	Text string `yaml:"text"`
}

func newRecordDoc(sess *models.Session) recordDoc {
	doc := recordDoc{
		ID:          sess.ID,
		Name:        sess.Name,
		Description: sess.Description,
		StartTime:   sess.StartTime,
		Notes:       sess.Notes,
		Actions:     make([]actionDoc, 0, len(sess.Actions)),
	}
	for _, a := range sess.Actions {
		ad := actionDoc{
			Type:      string(a.Type),
			Timestamp: a.Timestamp,
			Success:   a.Success,
			Content:   a.Content,
			Output:    a.Output,
			Text:      a.Text,
			File:      a.File,
			Path:      a.Path,
			Caption:   a.Caption,
		}
		for _, h := range a.Hunks {
			ad.Hunks = append(ad.Hunks, hunkDoc{Kind: string(h.Kind), Text: h.Text})
		}
		doc.Actions = append(doc.Actions, ad)
	}
	return doc
}
