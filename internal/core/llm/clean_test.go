package llm

import "testing"

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		maxLen int
		want   string
	}{
		{"plain", "Fix auth token refresh", 48, "Fix auth token refresh"},
		{"quoted with period", "\"Fix auth token refresh.\"", 48, "Fix auth token refresh"},
		{"title prefix", "Title: Migrate billing to Stripe", 48, "Migrate billing to Stripe"},
		{"meta line skipped", "Here is a title:\nRefactor search index", 48, "Refactor search index"},
		{"bullet", "- Debug flaky CI job", 48, "Debug flaky CI job"},
		{"truncated", "Investigate intermittent websocket disconnects in staging", 20, "Investigate inter..."},
		{"empty", "   \n  ", 48, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTitle(tt.raw, tt.maxLen); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
