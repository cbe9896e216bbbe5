package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/neilberkman/devlog/internal/core/metadata"
	"github.com/neilberkman/devlog/internal/core/models"
)

// Session is an indexed session row
type Session struct {
	SessionID   string
	Name        string
	Description string
	Notes       string
	StartedAt   time.Time
	ActionCount int
	FilePath    string
	FileHash    string
}

// IndexedAction is one ledger entry as stored in the index
type IndexedAction struct {
	Seq         int
	Type        string
	Timestamp   time.Time
	Success     *bool
	Summary     string
	TextContent string
	File        string
}

// SessionDetail is a session with its indexed actions in ledger order
type SessionDetail struct {
	Session
	Actions []IndexedAction
}

// ReplaceSession writes sess and its ledger, replacing any earlier copy.
// Old action rows go with the session row through the cascade.
func (db *DB) ReplaceSession(sess *models.Session, filePath, fileHash string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM sessions WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("delete old session: %w", err)
	}

	now := FormatTime(time.Now())
	result, err := tx.Exec(`
		INSERT INTO sessions (
			session_id, name, description, notes, started_at, action_count,
			file_path, file_hash, imported_at, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.Name, sess.Description, sess.Notes, FormatTime(sess.StartTime),
		len(sess.Actions), filePath, fileHash, now, now)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("session row id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO actions (
			session_id, seq, type, timestamp, success, summary, text_content, file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare action insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	if err := insertMetadata(tx, rowID, metadata.Extract(sess.Actions)); err != nil {
		return err
	}

	for i := range sess.Actions {
		a := &sess.Actions[i]
		var success sql.NullBool
		if a.Success != nil {
			success = sql.NullBool{Bool: *a.Success, Valid: true}
		}
		var file sql.NullString
		if a.File != "" {
			file = sql.NullString{String: a.File, Valid: true}
		}
		_, err := stmt.Exec(rowID, i, string(a.Type), FormatTime(a.Timestamp), success,
			a.Summary(), a.SearchText(), file)
		if err != nil {
			return fmt.Errorf("insert action %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// SessionHash returns the content hash recorded for sessionID, or "" if it is not indexed
func (db *DB) SessionHash(sessionID string) (string, error) {
	var hash sql.NullString
	err := db.QueryRow(`SELECT file_hash FROM sessions WHERE session_id = ?`, sessionID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash.String, nil
}

// DeleteSession removes sessionID and its actions from the index
func (db *DB) DeleteSession(sessionID string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

// SessionIDs lists every indexed session id
func (db *DB) SessionIDs() ([]string, error) {
	rows, err := db.Query(`SELECT session_id FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSessions returns indexed sessions newest first. A zero since lists all.
func (db *DB) ListSessions(since time.Time) ([]Session, error) {
	query := `
		SELECT session_id, name, description, notes, started_at, action_count,
			COALESCE(file_path, ''), COALESCE(file_hash, '')
		FROM sessions`

	var args []interface{}
	if !since.IsZero() {
		query += ` WHERE started_at >= ?`
		args = append(args, FormatTime(since))
	}
	query += ` ORDER BY started_at DESC LIMIT 1000`

	return db.querySessions(query, args...)
}

// querySessions scans rows selecting the columns ListSessions selects
func (db *DB) querySessions(query string, args ...interface{}) ([]Session, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started string
		err := rows.Scan(&s.SessionID, &s.Name, &s.Description, &s.Notes, &started,
			&s.ActionCount, &s.FilePath, &s.FileHash)
		if err != nil {
			return nil, err
		}
		s.StartedAt = ParseTime(started)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSessionDetail returns one indexed session with its actions
func (db *DB) GetSessionDetail(sessionID string) (*SessionDetail, error) {
	var detail SessionDetail
	var started string
	var rowID int64
	err := db.QueryRow(`
		SELECT id, session_id, name, description, notes, started_at, action_count,
			COALESCE(file_path, ''), COALESCE(file_hash, '')
		FROM sessions
		WHERE session_id = ?
	`, sessionID).Scan(&rowID, &detail.SessionID, &detail.Name, &detail.Description,
		&detail.Notes, &started, &detail.ActionCount, &detail.FilePath, &detail.FileHash)
	if err != nil {
		return nil, err
	}
	detail.StartedAt = ParseTime(started)

	rows, err := db.Query(`
		SELECT seq, type, timestamp, success, summary, text_content, COALESCE(file, '')
		FROM actions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, rowID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a IndexedAction
		var ts string
		var success sql.NullBool
		if err := rows.Scan(&a.Seq, &a.Type, &ts, &success, &a.Summary, &a.TextContent, &a.File); err != nil {
			return nil, err
		}
		a.Timestamp = ParseTime(ts)
		if success.Valid {
			v := success.Bool
			a.Success = &v
		}
		detail.Actions = append(detail.Actions, a)
	}
	return &detail, rows.Err()
}

// LogImport appends an entry to import_log
func (db *DB) LogImport(filePath, fileHash string, actions int, importErr error) error {
	status, message := "success", ""
	if importErr != nil {
		status, message = "failed", importErr.Error()
	}
	_, err := db.Exec(`
		INSERT INTO import_log (file_path, file_hash, imported_at, actions_imported, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, filePath, fileHash, FormatTime(time.Now()), actions, status, message)
	return err
}
