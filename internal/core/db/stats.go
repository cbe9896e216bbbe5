package db

import (
	"database/sql"
	"time"
)

// Stats summarizes the search index
type Stats struct {
	TotalSessions      int
	TotalActions       int
	ActionsByType      map[string]int
	OldestSession      time.Time
	NewestSession      time.Time
	BusiestSession     string
	BusiestActionCount int
	LastSync           time.Time
}

// GetStats returns counts and date range for the index
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{ActionsByType: make(map[string]int)}

	if err := db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&stats.TotalSessions); err != nil {
		return nil, err
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM actions").Scan(&stats.TotalActions); err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT type, COUNT(*) FROM actions GROUP BY type")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ActionsByType[typ] = n
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalSessions == 0 {
		return stats, nil
	}

	var oldest, newest, synced sql.NullString
	err = db.QueryRow("SELECT MIN(started_at), MAX(started_at), MAX(last_synced_at) FROM sessions").
		Scan(&oldest, &newest, &synced)
	if err != nil {
		return nil, err
	}
	stats.OldestSession = ParseTime(oldest.String)
	stats.NewestSession = ParseTime(newest.String)
	stats.LastSync = ParseTime(synced.String)

	err = db.QueryRow(`
		SELECT name, action_count
		FROM sessions
		ORDER BY action_count DESC, started_at DESC
		LIMIT 1
	`).Scan(&stats.BusiestSession, &stats.BusiestActionCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return stats, nil
}
