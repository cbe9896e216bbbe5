package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/importer"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/search"
	"github.com/neilberkman/devlog/internal/core/store"
)

// BackendOpener returns where mutations go: a running recorder or a local engine
type BackendOpener func(ctx context.Context) (engine.Backend, error)

// SearchActionsArgs defines arguments for the search_actions tool
type SearchActionsArgs struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Type       string `json:"type,omitempty"`
	AfterDate  string `json:"after_date,omitempty"`
	BeforeDate string `json:"before_date,omitempty"`
	Code       bool   `json:"code,omitempty"`
}

// GetSessionArgs defines arguments for the get_session tool
type GetSessionArgs struct {
	SessionID   string `json:"session_id"`
	SearchQuery string `json:"search_query,omitempty"`
}

// ListSessionsArgs defines arguments for the list_sessions tool
type ListSessionsArgs struct {
	Limit int    `json:"limit,omitempty"`
	Since string `json:"since,omitempty"`
}

// AddNoteArgs defines arguments for the add_note tool
type AddNoteArgs struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionMatch represents a session search result
type SessionMatch struct {
	SessionID  string        `json:"session_id"`
	Name       string        `json:"name"`
	MatchCount int           `json:"match_count"`
	Matches    []ActionMatch `json:"matches"`
}

// ActionMatch represents an action match within a session
type ActionMatch struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Summary   string `json:"summary"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
}

// SessionDetail represents a session with its ledger
type SessionDetail struct {
	SessionID       string         `json:"session_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Notes           string         `json:"notes,omitempty"`
	StartedAt       string         `json:"started_at"`
	ActionCount     int            `json:"action_count"`
	Actions         []ActionDetail `json:"actions"`
	MatchingActions []ActionDetail `json:"matching_actions,omitempty"`
	Issues          []string       `json:"issues,omitempty"`
	Files           []FileRef      `json:"files,omitempty"`
}

// FileRef is a file the ledger mentions or changes
type FileRef struct {
	Path     string `json:"path"`
	Mentions int    `json:"mentions"`
	Modified bool   `json:"modified,omitempty"`
}

// ActionDetail represents a single ledger entry
type ActionDetail struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Summary   string `json:"summary"`
	Content   string `json:"content,omitempty"`
	Success   *bool  `json:"success,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SessionSummary represents a session in the list view
type SessionSummary struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartedAt   string `json:"started_at"`
	ActionCount int    `json:"action_count"`
}

const timeLayout = "2006-01-02 15:04:05"

// Actions in get_session carry at most this much text
const maxContent = 2000

// Server answers MCP tool calls from the search index and forwards notes
// to the recording backend.
type Server struct {
	db    *db.DB
	files *store.FileStore
	open  BackendOpener
}

// NewServer builds the tool handlers
func NewServer(database *db.DB, files *store.FileStore, open BackendOpener) *Server {
	return &Server{db: database, files: files, open: open}
}

// MCPServer registers every tool
func (s *Server) MCPServer(version string) *server.MCPServer {
	ms := server.NewMCPServer("devlog", version)

	searchTool := mcp.NewTool("search_actions",
		mcp.WithDescription("Search recorded development sessions (commands, outputs, notes, code changes) for a query. Supports session, action type and date filtering."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against action content")),
		mcp.WithNumber("limit",
			mcp.Description("Max number of sessions to return (default: 10)")),
		mcp.WithString("session_id",
			mcp.Description("Only search within this session")),
		mcp.WithString("type",
			mcp.Description("Only this action type: command, consequence, note, codeChange or screenshot")),
		mcp.WithString("after_date",
			mcp.Description("Only actions after this date ('2026-01-01', 'yesterday', '3 days ago')")),
		mcp.WithString("before_date",
			mcp.Description("Only actions before this date")),
		mcp.WithBoolean("code",
			mcp.Description("Match identifiers exactly without stemming")),
	)
	ms.AddTool(searchTool, s.handleSearchActions)

	getTool := mcp.NewTool("get_session",
		mcp.WithDescription("Retrieve a recorded session with its description, notes and action ledger"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id to retrieve")),
		mcp.WithString("search_query",
			mcp.Description("Optional term to pick out matching actions")),
	)
	ms.AddTool(getTool, s.handleGetSession)

	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("Get recorded development sessions, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to return (default: 20)")),
		mcp.WithString("since",
			mcp.Description("Only sessions started after this date")),
	)
	ms.AddTool(listTool, s.handleListSessions)

	noteTool := mcp.NewTool("add_note",
		mcp.WithDescription("Add a note to the active recording session, or to a given session"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Note text")),
		mcp.WithString("session_id",
			mcp.Description("Session to add the note to (default: active session)")),
	)
	ms.AddTool(noteTool, s.handleAddNote)

	return ms
}

// Serve runs the MCP server on stdio
func (s *Server) Serve(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

// sync brings the index up to date before a query
func (s *Server) sync() error {
	if _, err := importer.New(s.db).ImportDirectory(s.files, nil); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	return nil
}

func decodeArgs(request mcp.CallToolRequest, v interface{}) error {
	argsBytes, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return err
	}
	return json.Unmarshal(argsBytes, v)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleSearchActions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.sync(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var args SearchActionsArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}

	now := time.Now()
	filters := search.ParseQuery(args.Query, now)
	if args.SessionID != "" {
		filters.SessionID = args.SessionID
	}
	if args.Type != "" {
		filters.Type = args.Type
	}
	if args.AfterDate != "" {
		t, ok := search.ParseDate(args.AfterDate, now)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid after_date %q", args.AfterDate)), nil
		}
		filters.After = t
	}
	if args.BeforeDate != "" {
		t, ok := search.ParseDate(args.BeforeDate, now)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid before_date %q", args.BeforeDate)), nil
		}
		filters.Before = t
	}

	run := search.Search
	if args.Code {
		run = search.SearchCode
	}
	found, err := run(s.db, filters)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	results := []SessionMatch{}
	index := make(map[string]int)
	for _, r := range found {
		i, ok := index[r.SessionID]
		if !ok {
			if len(results) >= limit {
				continue
			}
			i = len(results)
			index[r.SessionID] = i
			results = append(results, SessionMatch{SessionID: r.SessionID, Name: r.SessionName})
		}
		results[i].MatchCount++
		// Limit to 3 matches per session for display
		if len(results[i].Matches) < 3 {
			results[i].Matches = append(results[i].Matches, ActionMatch{
				Index:     r.Seq,
				Type:      r.Type,
				Summary:   r.Summary,
				Snippet:   r.Snippet,
				Timestamp: r.Timestamp.Local().Format(timeLayout),
			})
		}
	}

	return jsonResult(map[string]interface{}{"sessions": results})
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.sync(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var args GetSessionArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	detail, err := s.db.GetSessionDetail(args.SessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %v", err)), nil
	}

	session := SessionDetail{
		SessionID:   detail.SessionID,
		Name:        detail.Name,
		Description: detail.Description,
		Notes:       detail.Notes,
		StartedAt:   detail.StartedAt.Local().Format(timeLayout),
		ActionCount: detail.ActionCount,
		Actions:     []ActionDetail{},
	}
	queryLower := strings.ToLower(args.SearchQuery)
	for _, a := range detail.Actions {
		ad := ActionDetail{
			Index:     a.Seq,
			Type:      a.Type,
			Summary:   a.Summary,
			Content:   truncate(a.TextContent, maxContent),
			Success:   a.Success,
			Timestamp: a.Timestamp.Local().Format(timeLayout),
		}
		session.Actions = append(session.Actions, ad)
		if queryLower != "" && strings.Contains(strings.ToLower(a.TextContent), queryLower) {
			session.MatchingActions = append(session.MatchingActions, ad)
		}
	}

	issues, files, err := s.db.GetSessionMetadata(detail.SessionID)
	if err != nil {
		log.Warn().Err(err).Str("session", detail.SessionID).Msg("session metadata unavailable")
	}
	for _, issue := range issues {
		session.Issues = append(session.Issues, issue.IssueID)
	}
	for _, f := range files {
		session.Files = append(session.Files, FileRef{Path: f.FilePath, Mentions: f.MentionCount, Modified: f.Modified})
	}

	return jsonResult(session)
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.sync(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var args ListSessionsArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	var since time.Time
	if args.Since != "" {
		t, ok := search.ParseDate(args.Since, time.Now())
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since %q", args.Since)), nil
		}
		since = t
	}

	rows, err := s.db.ListSessions(since)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	sessions := []SessionSummary{}
	for _, r := range rows {
		sessions = append(sessions, SessionSummary{
			SessionID:   r.SessionID,
			Name:        r.Name,
			Description: r.Description,
			StartedAt:   r.StartedAt.Local().Format(timeLayout),
			ActionCount: r.ActionCount,
		})
	}

	return jsonResult(map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleAddNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args AddNoteArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if strings.TrimSpace(args.Text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	backend, err := s.open(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open sessions: %v", err)), nil
	}
	if err := backend.AddAction(ctx, args.SessionID, models.NewNote(args.Text, time.Now())); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add note: %v", err)), nil
	}

	log.Info().Str("session", args.SessionID).Msg("note added over MCP")
	return jsonResult(map[string]interface{}{"ok": true})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
