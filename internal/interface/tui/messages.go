package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/export"
	"github.com/neilberkman/devlog/internal/core/importer"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/search"
)

type errMsg struct {
	err error
}

type sessionsLoadedMsg struct {
	sessions []models.SessionSummary
	activeID string
}

type sessionLoadedMsg struct {
	session  models.Session
	activeID string
	cursor   int
	viewsDir string
}

type searchResultsMsg struct {
	query   string
	results []searchGroup
}

// changedMsg follows a successful ledger edit
type changedMsg struct {
	sessionID string
	cursor    int
	status    string
}

type statusMsg struct {
	message string
}

type syncDoneMsg struct {
	status string
}

// Most sessions shown in search results
const maxSearchSessions = 50

func loadSessions(load Loader) tea.Cmd {
	return func() tea.Msg {
		e, err := load(context.Background())
		if err != nil {
			return errMsg{err}
		}
		sessions := e.Store.List()
		if sessions == nil {
			sessions = []models.SessionSummary{}
		}
		return sessionsLoadedMsg{sessions: sessions, activeID: e.Lifecycle.ActiveSessionID()}
	}
}

func loadSession(load Loader, sessionID string, cursor int) tea.Cmd {
	return func() tea.Msg {
		e, err := load(context.Background())
		if err != nil {
			return errMsg{err}
		}
		sess, err := e.Store.Get(sessionID)
		if err != nil {
			return errMsg{err}
		}
		return sessionLoadedMsg{
			session:  sess,
			activeID: e.Lifecycle.ActiveSessionID(),
			cursor:   cursor,
			viewsDir: e.Files.ViewsDir(),
		}
	}
}

func performSearch(database *db.DB, query string, code bool) tea.Cmd {
	return func() tea.Msg {
		// Minimum 2 characters to search (avoid useless single-char results)
		if len(query) < 2 {
			return searchResultsMsg{query: query}
		}

		filters := search.ParseQuery(query, time.Now())
		if filters.Empty() {
			return searchResultsMsg{query: query}
		}
		run := search.Search
		if code {
			run = search.SearchCode
		}
		results, err := run(database, filters)
		if err != nil {
			return errMsg{err}
		}

		groups := groupResults(results, 3)
		if len(groups) > maxSearchSessions {
			groups = groups[:maxSearchSessions]
		}
		return searchResultsMsg{query: query, results: groups}
	}
}

// groupResults buckets matches by session in first-seen order, keeping at
// most perSession matches each
func groupResults(results []search.Result, perSession int) []searchGroup {
	groups := []searchGroup{}
	index := make(map[string]int)
	for _, r := range results {
		i, ok := index[r.SessionID]
		if !ok {
			i = len(groups)
			index[r.SessionID] = i
			groups = append(groups, searchGroup{SessionID: r.SessionID, SessionName: r.SessionName})
		}
		if len(groups[i].Matches) < perSession {
			groups[i].Matches = append(groups[i].Matches, r)
		}
	}
	return groups
}

// change runs a backend edit and reports where the cursor should land
func change(fn func(ctx context.Context) error, sessionID string, cursor int, status string) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil {
			return errMsg{err}
		}
		return changedMsg{sessionID: sessionID, cursor: cursor, status: status}
	}
}

func syncIndex(database *db.DB, load Loader) tea.Cmd {
	return func() tea.Msg {
		e, err := load(context.Background())
		if err != nil {
			return errMsg{err}
		}
		res, err := importer.New(database).ImportDirectory(e.Files, nil)
		if err != nil {
			return errMsg{fmt.Errorf("sync failed: %w", err)}
		}
		return syncDoneMsg{status: fmt.Sprintf("Synced: %d imported, %d unchanged, %d removed",
			res.Imported, res.Skipped, res.Removed)}
	}
}

func exportSession(sess models.Session, viewsDir, tmpl string) tea.Cmd {
	return func() tea.Msg {
		path := export.ViewPath(viewsDir, sess.ID, export.Markdown)
		if err := export.WriteFile(path, &sess, export.Markdown, tmpl); err != nil {
			return errMsg{err}
		}
		return statusMsg{message: "Exported to " + path}
	}
}

func copySession(sess models.Session, tmpl string) tea.Cmd {
	return func() tea.Msg {
		data, err := export.Render(&sess, export.Markdown, tmpl)
		if err != nil {
			return errMsg{err}
		}
		// Use cross-platform clipboard library
		if err := clipboard.WriteAll(string(data)); err != nil {
			return errMsg{fmt.Errorf("failed to copy to clipboard: %w", err)}
		}
		return statusMsg{message: "Session markdown copied to clipboard"}
	}
}
