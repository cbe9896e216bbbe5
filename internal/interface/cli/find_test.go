package cli

import "testing"

func TestJoinLimit(t *testing.T) {
	tests := []struct {
		items []string
		n     int
		want  string
	}{
		{nil, 3, ""},
		{[]string{"a.go"}, 3, "a.go"},
		{[]string{"a.go", "b.go", "c.go"}, 3, "a.go, b.go, c.go"},
		{[]string{"a.go", "b.go", "c.go", "d.go"}, 2, "a.go, b.go and 2 more"},
	}
	for _, tt := range tests {
		if got := joinLimit(tt.items, tt.n); got != tt.want {
			t.Errorf("joinLimit(%v, %d) = %q, want %q", tt.items, tt.n, got, tt.want)
		}
	}
}
