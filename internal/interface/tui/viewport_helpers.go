package tui

// Each search result takes about this many lines to render
const linesPerResult = 5

// Header and footer lines around search results
const reservedLines = 9

func visibleSearchResults(height int) int {
	n := (height - reservedLines) / linesPerResult
	if n < 2 {
		n = 2
	}
	return n
}

// adjustSearchViewport ensures the selected search result is visible within the viewport.
func adjustSearchViewport(m Model) Model {
	maxVisibleResults := visibleSearchResults(m.height)

	// Scroll down if selected item is below visible window
	if m.searchSelectedIdx >= m.searchViewOffset+maxVisibleResults {
		m.searchViewOffset = m.searchSelectedIdx - maxVisibleResults + 1
	}

	// Scroll up if selected item is above visible window
	if m.searchSelectedIdx < m.searchViewOffset {
		m.searchViewOffset = m.searchSelectedIdx
	}

	return m
}
