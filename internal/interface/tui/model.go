package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/search"
)

type viewMode int

const (
	listView viewMode = iota
	detailView
	searchView
	helpView
	pagerView
)

// Loader reads the persisted sessions. It is called again after every
// change so the views reflect what is on disk.
type Loader func(ctx context.Context) (*engine.Engine, error)

// Options wires the TUI to the recording backend
type Options struct {
	// Backend applies ledger edits (a running recorder or a local engine)
	Backend engine.Backend
	// Load reads sessions for display
	Load Loader
	// DB enables search and index sync when set
	DB *db.DB
	// ExportTemplate renders markdown exports
	ExportTemplate string
}

type Model struct {
	opts     Options
	mode     viewMode
	list     list.Model
	viewport viewport.Model
	pager    pagerModel
	width    int
	height   int
	err      error
	status   string

	sessions []models.SessionSummary
	activeID string

	// Detail view
	current  *models.Session
	cursor   int
	viewsDir string

	// Note entry in detail view
	noteMode  bool
	noteInput textinput.Model

	// Pending session delete in list view
	confirmDelete string

	// Search view
	searchInput       textinput.Model
	searchResults     []searchGroup
	searchSelectedIdx int
	searchViewOffset  int
	searchCode        bool

	syncing bool
}

type searchGroup struct {
	SessionID   string
	SessionName string
	Matches     []search.Result
}

func New(opts Options) Model {
	si := textinput.New()
	si.Placeholder = "query, type:command, after:yesterday"
	si.CharLimit = 200

	ni := textinput.New()
	ni.Placeholder = "note text"
	ni.CharLimit = 2000

	return Model{
		opts:        opts,
		mode:        listView,
		searchInput: si,
		noteInput:   ni,
	}
}

func (m Model) Init() tea.Cmd {
	return loadSessions(m.opts.Load)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.sessions != nil {
			m.list = createSessionList(m.sessions, m.activeID, m.width, m.height)
		}
		if m.current != nil {
			m.viewport = createViewport(m.current, m.cursor, m.activeID, m.width, m.height)
		}
		if m.mode == pagerView {
			m.pager.resize(m.width, m.height)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		// Text entry owns the keyboard
		if m.mode == searchView {
			return m.updateSearch(msg)
		}
		if m.mode == detailView && m.noteMode {
			return m.updateNote(msg)
		}
		if m.mode == pagerView {
			return m.updatePager(msg)
		}

		switch msg.String() {
		case "q":
			if m.mode == listView {
				return m, tea.Quit
			}
			// In other views, go back to list
			m.mode = listView
			m.status = ""
			return m, loadSessions(m.opts.Load)

		case "?":
			m.mode = helpView
			return m, nil
		}

		// Mode-specific key handling
		switch m.mode {
		case listView:
			return m.updateList(msg)
		case detailView:
			return m.updateDetail(msg)
		case helpView:
			return m.updateHelp(msg)
		}

	case sessionsLoadedMsg:
		m.sessions = msg.sessions
		m.activeID = msg.activeID
		idx := m.list.Index()
		m.list = createSessionList(msg.sessions, msg.activeID, m.width, m.height)
		if idx < len(msg.sessions) {
			m.list.Select(idx)
		}
		return m, nil

	case sessionLoadedMsg:
		sess := msg.session
		m.current = &sess
		m.activeID = msg.activeID
		m.viewsDir = msg.viewsDir
		m.cursor = clampCursor(msg.cursor, len(sess.Actions))
		m.viewport = createViewport(m.current, m.cursor, m.activeID, m.width, m.height)
		m.mode = detailView
		return m, nil

	case searchResultsMsg:
		// Drop results for a query the user has already typed past
		if msg.query == m.searchInput.Value() {
			m.searchResults = msg.results
		}
		return m, nil

	case changedMsg:
		m.status = msg.status
		m.err = nil
		if m.mode == detailView && m.current != nil {
			return m, tea.Batch(loadSession(m.opts.Load, msg.sessionID, msg.cursor), loadSessions(m.opts.Load))
		}
		return m, loadSessions(m.opts.Load)

	case statusMsg:
		m.status = msg.message
		return m, nil

	case syncDoneMsg:
		m.syncing = false
		m.status = msg.status
		return m, nil

	case errMsg:
		m.err = msg.err
		m.syncing = false
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.err != nil && m.mode == listView && len(m.sessions) == 0 {
		return "Error: " + m.err.Error() + "\n\nPress q to quit"
	}

	switch m.mode {
	case listView:
		return m.viewList()
	case detailView:
		return m.viewDetail()
	case searchView:
		return m.viewSearch()
	case helpView:
		return m.viewHelp()
	case pagerView:
		return m.pager.View()
	}

	return ""
}

// footer shows the last error or status above the key hints
func (m Model) footer(keys string) string {
	switch {
	case m.err != nil:
		return errorStyle.Render("Error: "+m.err.Error()) + "\n" + helpStyle.Render(keys)
	case m.status != "":
		return statusStyle.Render(m.status) + "\n" + helpStyle.Render(keys)
	}
	return helpStyle.Render(keys)
}

func clampCursor(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}
