package filewatch

import (
	"strings"

	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns the line hunks turning before into after, in file order.
// A replaced block yields a removal followed by an addition.
func Diff(before, after string) []models.Hunk {
	if before == after {
		return nil
	}

	a := splitLines(before)
	b := splitLines(after)

	// autojunk off: popular lines in large files must still be compared
	m := difflib.NewMatcherWithJunk(a, b, false, nil)

	var hunks []models.Hunk
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'd':
			hunks = append(hunks, hunk(models.HunkRemoval, a[op.I1:op.I2]))
		case 'i':
			hunks = append(hunks, hunk(models.HunkAddition, b[op.J1:op.J2]))
		case 'r':
			hunks = append(hunks,
				hunk(models.HunkRemoval, a[op.I1:op.I2]),
				hunk(models.HunkAddition, b[op.J1:op.J2]),
			)
		}
	}
	return hunks
}

// splitLines splits s into lines keeping terminators. Unlike
// difflib.SplitLines it does not invent a trailing empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func hunk(kind models.HunkKind, lines []string) models.Hunk {
	return models.Hunk{Kind: kind, Text: strings.TrimSuffix(strings.Join(lines, ""), "\n")}
}

// ChangeSummary is what the user is shown when asked whether to record a change
type ChangeSummary struct {
	File      string
	Kind      models.HunkKind // kind of the first hunk
	FirstLine string          // first line of the first hunk
	Additions int             // added lines
	Removals  int             // removed lines
}

// Summarize describes hunks for confirmation
func Summarize(file string, hunks []models.Hunk) ChangeSummary {
	s := ChangeSummary{File: file}
	for i, h := range hunks {
		n := strings.Count(h.Text, "\n") + 1
		if h.Kind == models.HunkAddition {
			s.Additions += n
		} else {
			s.Removals += n
		}
		if i == 0 {
			s.Kind = h.Kind
			s.FirstLine = strings.TrimSpace(strings.SplitN(h.Text, "\n", 2)[0])
		}
	}
	return s
}
