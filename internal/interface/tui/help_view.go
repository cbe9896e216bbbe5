package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = listView
	return m, nil
}

func (m Model) viewHelp() string {
	help := `
devlog - Help
═════════════

SESSION LIST
────────────
  ↑/↓, j/k     Navigate sessions
  Enter        View session ledger
  a            Record into the selected session
  x            Stop recording
  D            Delete session (asks first)
  /            Search actions
  s            Sync the search index
  r            Reload
  ?            Show this help
  q            Quit

SESSION LEDGER
──────────────
  j/k          Select action
  g/G          First/last action
  Enter, o     View the full action
  d            Delete action
  K/J          Move action up/down
  m            Move action to the active session
  n            Add a note
  a            Record into this session
  e            Export markdown to the views directory
  c            Copy markdown to clipboard
  esc          Back to session list

SEARCH
──────
  Type         Enter search query (live)
  Enter        Open session at the first match
  Ctrl+j, ↑↓   Navigate results
  Ctrl+t       Toggle exact code search
  esc          Back to session list

Press any key to return to session list
`

	return helpStyle.Render(help)
}
