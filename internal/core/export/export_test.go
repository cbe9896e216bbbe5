package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/models"
)

func fixture() *models.Session {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.Session{
		ID:          "20260301-090000-aaaa1111",
		Name:        "Fix Auth Bug",
		Description: "fix auth bug in login",
		StartTime:   start,
		Notes:       "expiry was compared as int",
		Actions: []models.Action{
			models.NewCommand("go test ./auth", "FAIL TestLogin", false, start.Add(time.Minute)),
			models.NewCodeChange("auth/token.go", []models.Hunk{
				{Kind: models.HunkRemoval, Text: "if exp < now {"},
				{Kind: models.HunkAddition, Text: "if exp.Before(now) {\n\treturn ErrExpired"},
			}, start.Add(2*time.Minute)),
			models.NewNote("fixed", start.Add(3*time.Minute)),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Markdown, false},
		{"markdown", Markdown, false},
		{"YML", YAML, false},
		{"json", JSON, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestRender_Markdown(t *testing.T) {
	out, err := Render(fixture(), Markdown, config.DefaultExportTemplate)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	md := string(out)
	for _, want := range []string{
		"# Fix Auth Bug",
		"`20260301-090000-aaaa1111`",
		"## Notes",
		"expiry was compared as int",
		"### 1. command",
		"$ go test ./auth ✗",
		"FAIL TestLogin",
		"- if exp < now {",
		"+ if exp.Before(now) {",
		"+ \treturn ErrExpired",
		"### 3. note",
		"- `auth/token.go` (modified)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRender_MarkdownNoNotes(t *testing.T) {
	sess := fixture()
	sess.Notes = "  "
	out, err := Render(sess, Markdown, config.DefaultExportTemplate)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "## Notes") {
		t.Errorf("markdown has Notes section for blank notes")
	}
}

func TestRender_CustomTemplate(t *testing.T) {
	out, err := Render(fixture(), Markdown, "{{name}}:{{action_count}}{{#actions}} {{index}}{{/actions}}")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(out), "Fix Auth Bug:3 1 2 3"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_YAML(t *testing.T) {
	out, err := Render(fixture(), YAML, "")
	if err != nil {
		t.Fatal(err)
	}
	var doc recordDoc
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, out)
	}
	if doc.Name != "Fix Auth Bug" || len(doc.Actions) != 3 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Actions[0].Success == nil || *doc.Actions[0].Success {
		t.Errorf("Actions[0].Success = %v, want false", doc.Actions[0].Success)
	}
	if len(doc.Actions[1].Hunks) != 2 || doc.Actions[1].Hunks[0].Kind != "removal" {
		t.Errorf("Actions[1].Hunks = %+v", doc.Actions[1].Hunks)
	}
}

func TestRender_JSONMatchesRecord(t *testing.T) {
	sess := fixture()
	out, err := Render(sess, JSON, "")
	if err != nil {
		t.Fatal(err)
	}
	var back models.Session
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != sess.ID || len(back.Actions) != 3 || back.Actions[1].File != "auth/token.go" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestWriteFile_ViewPath(t *testing.T) {
	views := filepath.Join(t.TempDir(), "views")
	path := ViewPath(views, "abc", YAML)
	if filepath.Base(path) != "abc.yaml" {
		t.Errorf("ViewPath() = %q, want .../abc.yaml", path)
	}

	if err := WriteFile(path, fixture(), YAML, ""); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export not written: %v", err)
	}
}
