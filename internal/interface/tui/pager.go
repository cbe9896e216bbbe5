package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type keymap struct {
	Home,
	End,
	Copy,
	LineNumbers,
	Quit key.Binding
}

// FullHelp implements help.KeyMap.
func (k keymap) FullHelp() [][]key.Binding {
	return nil
}

// ShortHelp implements help.KeyMap.
func (k keymap) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(
			key.WithKeys("up", "down"),
			key.WithHelp("↓↑", "navigate"),
		),
		k.Home,
		k.End,
		k.Copy,
		k.LineNumbers,
		k.Quit,
	}
}

func defaultKeymap() keymap {
	return keymap{
		Home: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy"),
		),
		LineNumbers: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "line numbers"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("esc", "back"),
		),
	}
}

// pagerModel shows the full body of one action
type pagerModel struct {
	title           string
	content         string
	viewport        viewport.Model
	help            help.Model
	showLineNumbers bool
	lineNumberStyle lipgloss.Style
	keymap          keymap
	status          string
}

func newPager(title, content string, width, height int) pagerModel {
	if content == "" {
		content = "(no output recorded)"
	}
	p := pagerModel{
		title:           title,
		content:         content,
		viewport:        viewport.New(width, height),
		help:            help.New(),
		lineNumberStyle: timestampStyle,
		keymap:          defaultKeymap(),
	}
	p.resize(width, height)
	return p
}

func (p *pagerModel) helpView() string {
	return p.help.View(p.keymap)
}

// resize soft-wraps content to the new width
func (p *pagerModel) resize(width, height int) {
	p.viewport.Width = width
	p.viewport.Height = height - lipgloss.Height(p.helpView()) - 2

	maxWidth := width
	if p.showLineNumbers {
		maxWidth -= lipgloss.Width("     │ ")
	}
	if maxWidth < 10 {
		maxWidth = 10
	}

	var text strings.Builder
	for i, line := range strings.Split(p.content, "\n") {
		line = strings.ReplaceAll(line, "\t", "    ")
		if p.showLineNumbers {
			text.WriteString(p.lineNumberStyle.Render(fmt.Sprintf("%4d │ ", i+1)))
		}
		w := ansi.StringWidth(line)
		if w <= maxWidth {
			text.WriteString(line)
			text.WriteString("\n")
			continue
		}
		for idx := 0; idx < w; idx += maxWidth {
			if p.showLineNumbers && idx != 0 {
				text.WriteString(p.lineNumberStyle.Render("     │ "))
			}
			text.WriteString(ansi.Cut(line, idx, idx+maxWidth))
			text.WriteString("\n")
		}
	}
	p.viewport.SetContent(text.String())
}

func (m Model) updatePager(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := m.pager.keymap
	switch {
	case key.Matches(msg, km.Quit):
		m.mode = detailView
		return m, nil
	case key.Matches(msg, km.Home):
		m.pager.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, km.End):
		m.pager.viewport.GotoBottom()
		return m, nil
	case key.Matches(msg, km.LineNumbers):
		m.pager.showLineNumbers = !m.pager.showLineNumbers
		m.pager.resize(m.width, m.height)
		return m, nil
	case key.Matches(msg, km.Copy):
		if err := clipboard.WriteAll(m.pager.content); err != nil {
			m.pager.status = "Copy failed: " + err.Error()
		} else {
			m.pager.status = "Copied to clipboard"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.pager.viewport, cmd = m.pager.viewport.Update(msg)
	return m, cmd
}

func (p pagerModel) View() string {
	header := titleStyle.Render(p.title)
	if p.status != "" {
		header += "  " + statusStyle.Render(p.status)
	}
	return header + "\n\n" + p.viewport.View() + "\n" + p.helpView()
}
