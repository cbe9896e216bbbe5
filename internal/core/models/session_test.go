package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSessionValidation(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session Session
		wantErr bool
	}{
		{
			name: "valid session",
			session: Session{
				ID:          "20240301-093000-abcd1234",
				Name:        "Fix auth bug",
				Description: "Fix auth bug in login flow",
				StartTime:   start,
				Actions:     []Action{NewNote("looked at logs", start)},
			},
			wantErr: false,
		},
		{
			name:    "missing id",
			session: Session{StartTime: start},
			wantErr: true,
		},
		{
			name:    "missing start time",
			session: Session{ID: "x"},
			wantErr: true,
		},
		{
			name: "invalid action",
			session: Session{
				ID:        "x",
				StartTime: start,
				Actions:   []Action{{Type: "telepathy", Timestamp: start}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActionValidation(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"command", NewCommand("ls", "a b", true, at), false},
		{"empty command", NewCommand("  ", "", true, at), true},
		{"consequence", NewConsequence("tests pass now", nil, at), false},
		{"note", NewNote("remember to rotate keys", at), false},
		{"empty note", NewNote("", at), true},
		{"code change", NewCodeChange("main.go", []Hunk{{Kind: HunkAddition, Text: "x"}}, at), false},
		{"code change no file", NewCodeChange("", nil, at), true},
		{"bad hunk kind", NewCodeChange("main.go", []Hunk{{Kind: "edit", Text: "x"}}, at), true},
		{"screenshot", NewScreenshot("/tmp/shot.png", "login page", at), false},
		{"screenshot no path", Action{Type: ActionScreenshot, Timestamp: at}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionJSONRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	failed := false
	original := Session{
		ID:          "20240301-093000-abcd1234",
		Name:        "Fix Auth Bug",
		Description: "Fix auth bug",
		StartTime:   at,
		Notes:       "token refresh is racy",
		Actions: []Action{
			NewCommand("npm test", "FAIL 2 tests", false, at),
			NewConsequence("two tests fail in auth.spec", &failed, at.Add(time.Second)),
			NewCodeChange("src/auth.ts", []Hunk{
				{Kind: HunkRemoval, Text: "if (token) {"},
				{Kind: HunkAddition, Text: "if (token && !expired(token)) {"},
			}, at.Add(2*time.Second)),
			NewNote("fixed expiry check", at.Add(3*time.Second)),
			NewScreenshot("/tmp/shots/login.png", "login works", at.Add(4*time.Second)),
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Session
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	again, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("round trip changed record:\n got %s\nwant %s", again, data)
	}

	if !decoded.StartTime.Equal(original.StartTime) {
		t.Errorf("StartTime = %v, want %v", decoded.StartTime, original.StartTime)
	}
	if len(decoded.Actions) != len(original.Actions) {
		t.Fatalf("len(Actions) = %d, want %d", len(decoded.Actions), len(original.Actions))
	}
	if decoded.Actions[0].Succeeded() {
		t.Error("decoded command should not be marked successful")
	}
	if got := decoded.Actions[2].Hunks[1].Kind; got != HunkAddition {
		t.Errorf("hunk kind = %q, want %q", got, HunkAddition)
	}
	if got := decoded.Actions[4].Filename; got != "login.png" {
		t.Errorf("Filename = %q, want login.png", got)
	}
}

func TestRecordFieldNames(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s := Session{ID: "id1", StartTime: at, Actions: []Action{NewCommand("ls", "a b", true, at)}}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"id"`, `"name"`, `"description"`, `"startTime"`, `"notes"`, `"actions"`, `"type":"command"`, `"success":true`, `"output":"a b"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("record missing %s: %s", key, data)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	at := time.Now()
	s := Session{ID: "x", StartTime: at, Actions: []Action{
		NewCommand("ls", "", true, at),
		NewCodeChange("a.go", []Hunk{{Kind: HunkAddition, Text: "x"}}, at),
	}}

	c := s.Clone()
	*c.Actions[0].Success = false
	c.Actions[1].Hunks[0].Text = "changed"
	c.Actions = append(c.Actions, NewNote("extra", at))

	if !s.Actions[0].Succeeded() {
		t.Error("clone shares Success pointer with original")
	}
	if s.Actions[1].Hunks[0].Text != "x" {
		t.Error("clone shares Hunks with original")
	}
	if len(s.Actions) != 2 {
		t.Errorf("original actions = %d, want 2", len(s.Actions))
	}
}

func TestActionSummary(t *testing.T) {
	at := time.Now()
	tests := []struct {
		action Action
		want   string
	}{
		{NewCommand("npm test", "", false, at), "$ npm test ✗"},
		{NewCommand("ls", "", true, at), "$ ls ✓"},
		{NewNote("first\nsecond", at), "first …"},
		{NewCodeChange("a.go", []Hunk{{Kind: HunkAddition, Text: "x\ny"}, {Kind: HunkRemoval, Text: "z"}}, at), "a.go (+2 -1)"},
		{NewScreenshot("/tmp/s.png", "", at), "s.png"},
	}
	for _, tt := range tests {
		if got := tt.action.Summary(); got != tt.want {
			t.Errorf("Summary() = %q, want %q", got, tt.want)
		}
	}
}
