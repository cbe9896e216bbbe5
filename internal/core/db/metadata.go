package db

import (
	"database/sql"
	"fmt"

	"github.com/neilberkman/devlog/internal/core/metadata"
)

// SessionIssue is an issue ID a session's ledger mentions
type SessionIssue struct {
	IssueID      string
	FirstIndex   int
	LastIndex    int
	MentionCount int
}

// SessionFile is a file path a session's ledger mentions or changes
type SessionFile struct {
	FilePath     string
	FirstIndex   int
	LastIndex    int
	MentionCount int
	Modified     bool
}

// insertMetadata runs inside ReplaceSession; old rows went with the cascade
func insertMetadata(tx *sql.Tx, rowID int64, refs metadata.Summary) error {
	for _, occ := range refs.Issues {
		_, err := tx.Exec(`
			INSERT INTO session_issues (session_id, issue_id, first_index, last_index, mention_count)
			VALUES (?, ?, ?, ?, ?)
		`, rowID, occ.Value, occ.FirstIndex, occ.LastIndex, occ.Count)
		if err != nil {
			return fmt.Errorf("insert issue %s: %w", occ.Value, err)
		}
	}

	for _, occ := range refs.Files {
		_, err := tx.Exec(`
			INSERT INTO session_files (session_id, file_path, first_index, last_index, mention_count, modified)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rowID, occ.Value, occ.FirstIndex, occ.LastIndex, occ.Count, occ.Modified)
		if err != nil {
			return fmt.Errorf("insert file %s: %w", occ.Value, err)
		}
	}
	return nil
}

// FindSessionsByIssueID finds all sessions mentioning an issue ID
func (db *DB) FindSessionsByIssueID(issueID string) ([]Session, error) {
	sessions, err := db.querySessions(`
		SELECT s.session_id, s.name, s.description, s.notes, s.started_at, s.action_count,
			COALESCE(s.file_path, ''), COALESCE(s.file_hash, '')
		FROM sessions s
		WHERE s.id IN (SELECT session_id FROM session_issues WHERE issue_id = ? COLLATE NOCASE)
		ORDER BY s.started_at DESC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("query sessions by issue: %w", err)
	}
	return sessions, nil
}

// FindSessionsByFilePath finds all sessions mentioning a path containing filePath
func (db *DB) FindSessionsByFilePath(filePath string) ([]Session, error) {
	sessions, err := db.querySessions(`
		SELECT s.session_id, s.name, s.description, s.notes, s.started_at, s.action_count,
			COALESCE(s.file_path, ''), COALESCE(s.file_hash, '')
		FROM sessions s
		WHERE s.id IN (SELECT session_id FROM session_files WHERE file_path LIKE '%' || ? || '%')
		ORDER BY s.started_at DESC
	`, filePath)
	if err != nil {
		return nil, fmt.Errorf("query sessions by file: %w", err)
	}
	return sessions, nil
}

// GetSessionMetadata retrieves the issues and files recorded for a session
func (db *DB) GetSessionMetadata(sessionID string) ([]SessionIssue, []SessionFile, error) {
	issueRows, err := db.Query(`
		SELECT si.issue_id, si.first_index, si.last_index, si.mention_count
		FROM session_issues si
		JOIN sessions s ON s.id = si.session_id
		WHERE s.session_id = ?
		ORDER BY si.first_index
	`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("query issues: %w", err)
	}
	defer func() { _ = issueRows.Close() }()

	var issues []SessionIssue
	for issueRows.Next() {
		var issue SessionIssue
		if err := issueRows.Scan(&issue.IssueID, &issue.FirstIndex, &issue.LastIndex, &issue.MentionCount); err != nil {
			return nil, nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := issueRows.Err(); err != nil {
		return nil, nil, err
	}

	fileRows, err := db.Query(`
		SELECT sf.file_path, sf.first_index, sf.last_index, sf.mention_count, sf.modified
		FROM session_files sf
		JOIN sessions s ON s.id = sf.session_id
		WHERE s.session_id = ?
		ORDER BY sf.mention_count DESC, sf.first_index
	`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("query files: %w", err)
	}
	defer func() { _ = fileRows.Close() }()

	var files []SessionFile
	for fileRows.Next() {
		var file SessionFile
		if err := fileRows.Scan(&file.FilePath, &file.FirstIndex, &file.LastIndex, &file.MentionCount, &file.Modified); err != nil {
			return nil, nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, file)
	}

	return issues, files, fileRows.Err()
}

// GetMetadataStats returns statistics about extracted metadata
func (db *DB) GetMetadataStats() (issues, files, sessions int, err error) {
	err = db.QueryRow(`SELECT COUNT(DISTINCT issue_id) FROM session_issues`).Scan(&issues)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count issues: %w", err)
	}

	err = db.QueryRow(`SELECT COUNT(DISTINCT file_path) FROM session_files`).Scan(&files)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count files: %w", err)
	}

	err = db.QueryRow(`
		SELECT COUNT(DISTINCT session_id)
		FROM (
			SELECT session_id FROM session_issues
			UNION
			SELECT session_id FROM session_files
		)
	`).Scan(&sessions)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count sessions: %w", err)
	}

	return issues, files, sessions, nil
}
