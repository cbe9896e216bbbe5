package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/devlog/internal/core/search"
)

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "esc":
		m.mode = listView
		m.searchInput.SetValue("")
		m.searchInput.Blur()
		m.searchResults = nil
		m.searchSelectedIdx = 0
		m.searchViewOffset = 0
		return m, nil

	case "enter":
		// Open selected session at its first match
		if len(m.searchResults) > 0 && m.searchSelectedIdx < len(m.searchResults) {
			g := m.searchResults[m.searchSelectedIdx]
			cursor := 0
			if len(g.Matches) > 0 {
				cursor = g.Matches[0].Seq
			}
			m.searchInput.Blur()
			return m, loadSession(m.opts.Load, g.SessionID, cursor)
		}
		return m, nil

	// Navigation: Use Ctrl+j or arrow keys (allow j/k to be typed in search)
	case "ctrl+j", "down":
		if len(m.searchResults) > 0 {
			m.searchSelectedIdx++
			if m.searchSelectedIdx >= len(m.searchResults) {
				m.searchSelectedIdx = len(m.searchResults) - 1
			}
			return adjustSearchViewport(m), nil
		}
		return m, nil

	case "up":
		if len(m.searchResults) > 0 {
			m.searchSelectedIdx--
			if m.searchSelectedIdx < 0 {
				m.searchSelectedIdx = 0
			}
			return adjustSearchViewport(m), nil
		}
		return m, nil

	case "ctrl+t":
		m.searchCode = !m.searchCode
		return m, performSearch(m.opts.DB, m.searchInput.Value(), m.searchCode)
	}

	// Update text input (all other keys including j/k/q go here)
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Perform live search on every keystroke
	query := m.searchInput.Value()
	m.searchSelectedIdx = 0
	m.searchViewOffset = 0
	return m, tea.Batch(cmd, performSearch(m.opts.DB, query, m.searchCode))
}

func (m Model) viewSearch() string {
	var b strings.Builder

	// Header with search input - ALWAYS at top
	label := "Search: "
	if m.searchCode {
		label = "Search (code): "
	}
	b.WriteString(searchHeaderStyle.Render(label))
	b.WriteString(m.searchInput.View())
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(min(m.width, 80), 1)))
	b.WriteString("\n\n")

	if m.searchResults == nil {
		b.WriteString(searchMetaStyle.Render("Type to search (minimum 2 characters)"))
	} else if len(m.searchResults) == 0 {
		b.WriteString(searchMetaStyle.Render("No results found"))
	} else {
		b.WriteString(searchMetaStyle.Render(fmt.Sprintf("Found %d sessions:", len(m.searchResults))))
		b.WriteString("\n\n")

		maxVisibleResults := visibleSearchResults(m.height)
		startIdx := m.searchViewOffset
		endIdx := startIdx + maxVisibleResults
		if endIdx > len(m.searchResults) {
			endIdx = len(m.searchResults)
		}

		terms := search.ParseQuery(m.searchInput.Value(), time.Now()).Query
		for i := startIdx; i < endIdx; i++ {
			result := m.searchResults[i]

			prefix := "  "
			name := searchMatchStyle.Render(result.SessionName)
			if i == m.searchSelectedIdx {
				prefix = "► "
				name = searchSelectedStyle.Render(result.SessionName)
			}

			matchCount := fmt.Sprintf("(%d %s)", len(result.Matches),
				map[bool]string{true: "match", false: "matches"}[len(result.Matches) == 1])
			when := ""
			if len(result.Matches) > 0 {
				when = humanize.Time(result.Matches[0].Timestamp)
			}
			b.WriteString(fmt.Sprintf("%s%s %s | %s\n", prefix, name,
				searchMetaStyle.Render(matchCount), searchMetaStyle.Render(when)))

			for j, match := range result.Matches {
				typeLabel := fmt.Sprintf("[#%d %s]", match.Seq, match.Type)
				b.WriteString(fmt.Sprintf("    %s ", searchMetaStyle.Render(typeLabel)))
				b.WriteString(highlightQuery(firstLine(match.Snippet, 100), terms))
				if j < len(result.Matches)-1 {
					b.WriteString("\n")
				}
			}
			b.WriteString("\n\n")
		}

		// Show scroll indicators
		if startIdx > 0 {
			b.WriteString(searchMetaStyle.Render(fmt.Sprintf("... %d results above\n", startIdx)))
		}
		if endIdx < len(m.searchResults) {
			b.WriteString(searchMetaStyle.Render(fmt.Sprintf("... %d results below\n", len(m.searchResults)-endIdx)))
		}
	}

	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	if len(m.searchResults) > 0 {
		b.WriteString("Ctrl+j or ↑↓: navigate | Enter: open | Ctrl+t: code search | esc: back")
	} else {
		b.WriteString("Type to search (min 2 chars) | Ctrl+t: code search | esc: back")
	}
	b.WriteString("\n")
	b.WriteString(searchMetaStyle.Render("Filters: type:command | session:<id> | after:yesterday | after:3-days-ago | before:2026-01-01"))

	return b.String()
}

// firstLine returns the first line of s, cut to maxLen bytes
func firstLine(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func highlightQuery(text, query string) string {
	query = strings.Trim(strings.TrimSpace(query), `"*`)
	if query == "" {
		return text
	}

	// Simple case-insensitive highlighting
	idx := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if idx == -1 {
		return text
	}

	before := text[:idx]
	match := text[idx : idx+len(query)]
	after := text[idx+len(query):]

	return before + searchMatchStyle.Render(match) + after
}
