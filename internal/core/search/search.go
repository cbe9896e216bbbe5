package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/neilberkman/devlog/internal/core/db"
)

// Result is one matching action
type Result struct {
	SessionID   string
	SessionName string
	Seq         int
	Type        string
	Summary     string
	Snippet     string
	File        string
	Timestamp   time.Time
}

// DefaultLimit caps result sets
const DefaultLimit = 1000

// Queries containing any of these use LIKE instead of MATCH
const likeOnlyChars = "-_@#$%&./:()\"'"

// Most recent first
const defaultOrderBy = "a.timestamp DESC, a.seq DESC"

// Search runs a natural-language search (porter stemming)
func Search(database *db.DB, f Filters) ([]Result, error) {
	return search(database, f, "actions_fts", DefaultLimit)
}

// SearchCode searches without stemming so identifiers match exactly
func SearchCode(database *db.DB, f Filters) ([]Result, error) {
	return search(database, f, "actions_fts_code", DefaultLimit)
}

// SearchLimit is Search with an explicit result cap
func SearchLimit(database *db.DB, f Filters, limit int) ([]Result, error) {
	return search(database, f, "actions_fts", limit)
}

func search(database *db.DB, f Filters, ftsTable string, limit int) ([]Result, error) {
	f.Query = strings.TrimSpace(f.Query)
	if f.Empty() {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var where []string
	var args []interface{}
	from := "actions a"
	snippet := "substr(a.text_content, 1, 200)"

	switch {
	case f.Query == "":
	case strings.ContainsAny(f.Query, likeOnlyChars):
		// FTS5 syntax chokes on these, fall back to substring match
		where = append(where, "a.text_content LIKE '%' || ? || '%'")
		args = append(args, f.Query)
	default:
		from = fmt.Sprintf("%s JOIN actions a ON %s.rowid = a.id", ftsTable, ftsTable)
		snippet = fmt.Sprintf("snippet(%s, 0, '', '', '...', 32)", ftsTable)
		where = append(where, ftsTable+" MATCH ?")
		args = append(args, f.Query)
	}

	if f.SessionID != "" {
		where = append(where, "s.session_id LIKE ? || '%'")
		args = append(args, f.SessionID)
	}
	if f.Type != "" {
		where = append(where, "a.type = ?")
		args = append(args, f.Type)
	}
	if f.Issue != "" {
		where = append(where, "a.session_id IN (SELECT session_id FROM session_issues WHERE issue_id = ? COLLATE NOCASE)")
		args = append(args, f.Issue)
	}
	if f.File != "" {
		where = append(where, "a.session_id IN (SELECT session_id FROM session_files WHERE file_path LIKE '%' || ? || '%')")
		args = append(args, f.File)
	}
	if !f.After.IsZero() {
		where = append(where, "a.timestamp >= ?")
		args = append(args, db.FormatTime(f.After))
	}
	if !f.Before.IsZero() {
		where = append(where, "a.timestamp < ?")
		args = append(args, db.FormatTime(f.Before))
	}

	query := fmt.Sprintf(`
		SELECT
			s.session_id,
			s.name,
			a.seq,
			a.type,
			a.summary,
			%s,
			COALESCE(a.file, ''),
			a.timestamp
		FROM %s
		JOIN sessions s ON s.id = a.session_id
		WHERE %s
		ORDER BY %s
		LIMIT ?
	`, snippet, from, strings.Join(where, " AND "), defaultOrderBy)
	args = append(args, limit)

	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var r Result
		var ts string
		if err := rows.Scan(&r.SessionID, &r.SessionName, &r.Seq, &r.Type, &r.Summary,
			&r.Snippet, &r.File, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Timestamp = db.ParseTime(ts)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}
