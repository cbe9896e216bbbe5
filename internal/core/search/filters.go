package search

import (
	"strings"
	"time"
	"unicode"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Filters is a search query split into free text and filter tokens
type Filters struct {
	Query     string    // free text
	SessionID string    // session:<id prefix>
	Type      string    // type:<action type>
	Issue     string    // issue:<issue id>
	File      string    // file:<path fragment>
	After     time.Time // after:<date> or date:<date>
	Before    time.Time // before:<date>
}

// Empty reports whether neither text nor any filter was given
func (f Filters) Empty() bool {
	return f.Query == "" && f.SessionID == "" && f.Type == "" && f.Issue == "" && f.File == "" &&
		f.After.IsZero() && f.Before.IsZero()
}

// ParseQuery extracts filters from a search query string.
// Supports:
//   - session:<id> - actions from sessions whose id starts with <id>
//   - type:command|note|codeChange|consequence|screenshot
//   - issue:ENA-123, file:login.go - actions from sessions referring to them
//   - after:yesterday, before:2026-03-01, date:3-days-ago
//
// Unparseable dates are dropped.
func ParseQuery(query string, now time.Time) Filters {
	var f Filters
	var queryParts []string

	for _, token := range strings.Fields(query) {
		key, value, ok := strings.Cut(token, ":")
		if !ok || value == "" {
			queryParts = append(queryParts, token)
			continue
		}

		switch key {
		case "session":
			f.SessionID = value
		case "type":
			f.Type = value
		case "issue":
			f.Issue = value
		case "file":
			f.File = value
		case "after", "date":
			if t, ok := parseToken(value, now); ok {
				f.After = t
			}
		case "before":
			if t, ok := parseToken(value, now); ok {
				f.Before = t
			}
		default:
			queryParts = append(queryParts, token)
		}
	}

	f.Query = strings.Join(queryParts, " ")
	return f
}

// parseToken accepts dashes for spaces so "3-days-ago" fits in one token
func parseToken(value string, now time.Time) (time.Time, bool) {
	if strings.IndexFunc(value, unicode.IsLetter) >= 0 {
		value = strings.ReplaceAll(value, "-", " ")
	}
	return ParseDate(value, now)
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
}

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDate reads an absolute date or a natural-language one ("yesterday",
// "3 days ago") relative to now. Absolute dates are local midnight.
func ParseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, s, now.Location()); err == nil {
			return t, true
		}
	}

	result, err := parser.Parse(s, now)
	if err == nil && result != nil {
		return result.Time, true
	}
	return time.Time{}, false
}
