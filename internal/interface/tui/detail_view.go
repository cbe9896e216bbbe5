package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"github.com/neilberkman/devlog/internal/core/models"
)

// Lines of output or diff shown under the selected action
const previewLines = 12

func createViewport(sess *models.Session, cursor int, activeID string, width, height int) viewport.Model {
	vp := viewport.New(width, height-3)
	content, cursorLine := renderLedger(sess, cursor, activeID, width)
	vp.SetContent(content)
	scrollToLine(&vp, cursorLine)
	return vp
}

// renderLedger draws the session header and its actions, expanding the one
// under the cursor. It returns the line the cursor action starts on.
func renderLedger(sess *models.Session, cursor int, activeID string, width int) (string, int) {
	var b strings.Builder
	lines := 0
	write := func(s string) {
		b.WriteString(s)
		b.WriteString("\n")
		lines += strings.Count(s, "\n") + 1
	}

	wrapWidth := width - 8
	if wrapWidth < 40 {
		wrapWidth = 40
	}

	title := sess.Name
	if sess.ID == activeID {
		title += " ● recording"
	}
	write(titleStyle.Render(title))
	write(fmt.Sprintf("ID: %s  Started: %s (%s)", sess.ID,
		sess.StartTime.Local().Format("2006-01-02 15:04"), humanize.Time(sess.StartTime)))
	if sess.Description != "" && sess.Description != sess.Name {
		write(wordwrap.String(sess.Description, wrapWidth))
	}
	if strings.TrimSpace(sess.Notes) != "" {
		write(noteStyle.Render("Notes: ") + wordwrap.String(sess.Notes, wrapWidth))
	}
	write(strings.Repeat("─", max(width, 1)))

	if len(sess.Actions) == 0 {
		write(timestampStyle.Render("No actions recorded yet."))
		return b.String(), 0
	}

	cursorLine := 0
	for i := range sess.Actions {
		a := &sess.Actions[i]
		line := fmt.Sprintf("%3d  %s  %s %s", i,
			timestampStyle.Render(a.Timestamp.Local().Format("15:04:05")),
			actionStyle(a.Type).Render(fmt.Sprintf("%-11s", a.Type)),
			a.Summary())

		if i == cursor {
			cursorLine = lines
			write(selectedItemStyle.Render("▶") + line)
			if preview := actionPreview(a, wrapWidth); preview != "" {
				write(previewStyle.Render(preview))
			}
			continue
		}
		write(" " + line)
	}

	return b.String(), cursorLine
}

func actionStyle(t models.ActionType) lipgloss.Style {
	switch t {
	case models.ActionCommand:
		return commandStyle
	case models.ActionConsequence:
		return consequenceStyle
	case models.ActionNote:
		return noteStyle
	case models.ActionCodeChange:
		return codeChangeStyle
	}
	return screenshotStyle
}

// actionPreview is the first few lines of an action's body
func actionPreview(a *models.Action, width int) string {
	body := actionBody(a)
	if body == "" {
		return ""
	}
	lines := strings.Split(wordwrap.String(body, width), "\n")
	if len(lines) > previewLines {
		more := len(lines) - previewLines
		lines = append(lines[:previewLines], fmt.Sprintf("… %d more lines (enter to view)", more))
	}
	return strings.Join(lines, "\n")
}

// actionBody is everything an action carries beyond its summary line
func actionBody(a *models.Action) string {
	switch a.Type {
	case models.ActionCommand:
		if strings.Contains(a.Content, "\n") {
			if a.Output == "" {
				return a.Content
			}
			return a.Content + "\n\n" + a.Output
		}
		return a.Output
	case models.ActionConsequence:
		if strings.Contains(a.Content, "\n") {
			return a.Content
		}
	case models.ActionNote:
		if strings.Contains(strings.TrimSpace(a.Text), "\n") {
			return a.Text
		}
	case models.ActionCodeChange:
		var b strings.Builder
		for _, h := range a.Hunks {
			marker := "+"
			if h.Kind == models.HunkRemoval {
				marker = "-"
			}
			for _, l := range strings.Split(h.Text, "\n") {
				b.WriteString(marker + " " + l + "\n")
			}
		}
		return strings.TrimRight(b.String(), "\n")
	case models.ActionScreenshot:
		if a.Caption != "" {
			return a.Path + "\n" + a.Caption
		}
		return a.Path
	}
	return ""
}

// scrollToLine keeps line inside the visible window
func scrollToLine(vp *viewport.Model, line int) {
	top := vp.YOffset
	bottom := top + vp.Height - previewLines/2
	switch {
	case line < top:
		vp.SetYOffset(line)
	case line >= bottom:
		vp.SetYOffset(line - vp.Height/2)
	}
}

func (m Model) rerender() Model {
	if m.current == nil {
		return m
	}
	content, cursorLine := renderLedger(m.current, m.cursor, m.activeID, m.width)
	m.viewport.SetContent(content)
	scrollToLine(&m.viewport, cursorLine)
	return m
}

func (m Model) activeActionCount() int {
	for _, s := range m.sessions {
		if s.ID == m.activeID {
			return s.ActionCount
		}
	}
	return 0
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.current
	if sess == nil {
		m.mode = listView
		return m, nil
	}
	n := len(sess.Actions)
	id := sess.ID
	cursor := m.cursor

	switch msg.String() {
	case "esc":
		m.mode = listView
		m.status = ""
		return m, loadSessions(m.opts.Load)

	case "j", "down":
		if m.cursor < n-1 {
			m.cursor++
		}
		return m.rerender(), nil

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m.rerender(), nil

	case "g", "home":
		m.cursor = 0
		m = m.rerender()
		m.viewport.GotoTop()
		return m, nil

	case "G", "end":
		m.cursor = clampCursor(n-1, n)
		m = m.rerender()
		m.viewport.GotoBottom()
		return m, nil

	case "enter", "o":
		if n == 0 {
			return m, nil
		}
		a := &sess.Actions[m.cursor]
		m.pager = newPager(fmt.Sprintf("%d. %s", m.cursor, a.Summary()), actionBody(a), m.width, m.height)
		m.mode = pagerView
		return m, nil

	case "d":
		if n == 0 {
			return m, nil
		}
		return m, change(func(ctx context.Context) error {
			return m.opts.Backend.DeleteAction(ctx, id, cursor)
		}, id, clampCursor(cursor, n-1), fmt.Sprintf("Deleted action %d", cursor))

	case "K":
		if cursor == 0 || n == 0 {
			return m, nil
		}
		return m, change(func(ctx context.Context) error {
			return m.opts.Backend.ReorderAction(ctx, id, cursor, cursor-1)
		}, id, cursor-1, "")

	case "J":
		if cursor >= n-1 {
			return m, nil
		}
		return m, change(func(ctx context.Context) error {
			return m.opts.Backend.ReorderAction(ctx, id, cursor, cursor+1)
		}, id, cursor+1, "")

	case "m":
		if n == 0 {
			return m, nil
		}
		dest := m.activeID
		if dest == "" || dest == id {
			m.status = "Activate another session to move actions into it"
			return m, nil
		}
		destIndex := m.activeActionCount()
		return m, change(func(ctx context.Context) error {
			return m.opts.Backend.MoveAction(ctx, id, cursor, dest, destIndex)
		}, id, clampCursor(cursor, n-1), "Moved action to the active session")

	case "a":
		return m, change(func(ctx context.Context) error {
			return m.opts.Backend.ActivateSession(ctx, id)
		}, id, cursor, "Recording into "+sess.Name)

	case "n":
		m.noteMode = true
		m.noteInput.SetValue("")
		m.noteInput.Focus()
		return m, nil

	case "e":
		return m, exportSession(*sess, m.viewsDir, m.opts.ExportTemplate)

	case "c":
		return m, copySession(*sess, m.opts.ExportTemplate)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateNote(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.noteMode = false
		m.noteInput.Blur()
		return m, nil

	case "enter":
		m.noteMode = false
		m.noteInput.Blur()
		text := strings.TrimSpace(m.noteInput.Value())
		if text == "" || m.current == nil {
			return m, nil
		}
		id := m.current.ID
		note := models.NewNote(text, time.Now())
		return m, change(func(ctx context.Context) error {
			return m.opts.Backend.AddAction(ctx, id, note)
		}, id, len(m.current.Actions), "Note added")
	}

	var cmd tea.Cmd
	m.noteInput, cmd = m.noteInput.Update(msg)
	return m, cmd
}

func (m Model) viewDetail() string {
	if m.current == nil {
		return "Loading..."
	}

	keys := "j/k select • enter view • d delete • K/J reorder • m move to active • n note • a activate • e export • c copy • esc back"
	if m.noteMode {
		return m.viewport.View() + "\n" + searchHeaderStyle.Render("Note: ") + m.noteInput.View() + "\n" + helpStyle.Render("enter save • esc cancel")
	}
	return m.viewport.View() + "\n" + m.footer(keys)
}
