package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/devlog/internal/core/models"
)

type sessionListItem struct {
	session models.SessionSummary
	active  bool
}

func (i sessionListItem) FilterValue() string {
	return i.session.Name + " " + i.session.Description
}

func (i sessionListItem) Title() string {
	if i.active {
		return "● " + i.session.Name
	}
	return i.session.Name
}

func (i sessionListItem) Description() string {
	return fmt.Sprintf("%d actions | Started: %s | %s",
		i.session.ActionCount, humanize.Time(i.session.StartTime), i.session.ID)
}

// Custom delegate to highlight the active session
type sessionDelegate struct {
	list.DefaultDelegate
}

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	s, ok := item.(sessionListItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	title := s.Title()
	desc := s.Description()

	switch {
	case index == m.Index():
		title = selectedItemStyle.Render(title)
		desc = selectedItemStyle.Faint(true).Render(desc)
	case s.active:
		title = activeItemStyle.Render(title)
		desc = itemStyle.Render(desc)
	default:
		title = itemStyle.Render(title)
		desc = itemStyle.Render(desc)
	}

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

func createSessionList(sessions []models.SessionSummary, activeID string, width, height int) list.Model {
	items := make([]list.Item, len(sessions))
	for i, s := range sessions {
		items[i] = sessionListItem{session: s, active: s.ID == activeID}
	}

	delegate := sessionDelegate{DefaultDelegate: list.NewDefaultDelegate()}

	l := list.New(items, delegate, width, height-2) // Reserve lines for status and help
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false) // Dedicated search with /

	return l
}

func (m Model) selectedSession() (models.SessionSummary, bool) {
	if selected, ok := m.list.SelectedItem().(sessionListItem); ok {
		return selected.session, true
	}
	return models.SessionSummary{}, false
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Second D confirms, anything else cancels
	if m.confirmDelete != "" {
		id := m.confirmDelete
		m.confirmDelete = ""
		if msg.String() == "y" || msg.String() == "D" {
			return m, change(func(ctx context.Context) error {
				return m.opts.Backend.DeleteSession(ctx, id)
			}, "", 0, "Deleted "+id)
		}
		m.status = "Delete cancelled"
		return m, nil
	}

	switch msg.String() {
	case "enter":
		if s, ok := m.selectedSession(); ok {
			m.err = nil
			m.status = ""
			return m, loadSession(m.opts.Load, s.ID, 0)
		}
		return m, nil

	case "a":
		if s, ok := m.selectedSession(); ok {
			return m, change(func(ctx context.Context) error {
				return m.opts.Backend.ActivateSession(ctx, s.ID)
			}, s.ID, 0, "Recording into "+s.Name)
		}
		return m, nil

	case "x":
		if m.activeID == "" {
			m.status = "No session is active"
			return m, nil
		}
		return m, change(m.opts.Backend.CloseSession, "", 0, "Stopped recording")

	case "D":
		if s, ok := m.selectedSession(); ok {
			m.confirmDelete = s.ID
			m.status = fmt.Sprintf("Delete %q and its record? (y/N)", s.Name)
		}
		return m, nil

	case "/":
		if m.opts.DB == nil {
			m.status = "Search index unavailable"
			return m, nil
		}
		m.mode = searchView
		m.searchInput.Focus()
		return m, nil

	case "s":
		if m.opts.DB == nil {
			m.status = "Search index unavailable"
			return m, nil
		}
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		return m, syncIndex(m.opts.DB, m.opts.Load)

	case "r":
		return m, loadSessions(m.opts.Load)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) viewList() string {
	helpText := "↑/k up • ↓/j down • enter open • a activate • x stop • D delete • / search • s sync • q quit • ? more"
	if m.syncing {
		helpText = "⏳ Syncing..."
	}

	if len(m.sessions) == 0 {
		return "No sessions yet. Run 'devlog start <description>' to begin one.\n\n" + m.footer(helpText)
	}

	return m.list.View() + "\n" + m.footer(helpText)
}
