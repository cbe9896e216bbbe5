package db

func (db *DB) initSchema() error {
	schema := `
	-- One row per session record on disk
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		action_count INTEGER DEFAULT 0,
		file_path TEXT,
		file_hash TEXT,
		imported_at TEXT,
		last_synced_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

	-- Ledger entries in ledger order
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		success INTEGER,
		summary TEXT NOT NULL DEFAULT '',
		text_content TEXT NOT NULL DEFAULT '',
		file TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_actions_session_id ON actions(session_id);
	CREATE INDEX IF NOT EXISTS idx_actions_type ON actions(type);
	CREATE INDEX IF NOT EXISTS idx_actions_timestamp ON actions(timestamp);

	-- Issue IDs and file paths each session's ledger refers to
	CREATE TABLE IF NOT EXISTS session_issues (
		session_id INTEGER NOT NULL,
		issue_id TEXT NOT NULL,
		first_index INTEGER NOT NULL,
		last_index INTEGER NOT NULL,
		mention_count INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_session_issues_issue ON session_issues(issue_id COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS session_files (
		session_id INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		first_index INTEGER NOT NULL,
		last_index INTEGER NOT NULL,
		mention_count INTEGER NOT NULL DEFAULT 1,
		modified INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_session_files_path ON session_files(file_path);

	CREATE TABLE IF NOT EXISTS import_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		imported_at TEXT NOT NULL,
		actions_imported INTEGER,
		status TEXT CHECK(status IN ('success', 'failed')),
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_import_log_file_hash ON import_log(file_hash);

	-- Natural language search with porter stemming
	CREATE VIRTUAL TABLE IF NOT EXISTS actions_fts USING fts5(
		text_content,
		content=actions,
		content_rowid=id,
		tokenize='porter unicode61'
	);

	-- Code search without stemming (keeps identifiers intact)
	CREATE VIRTUAL TABLE IF NOT EXISTS actions_fts_code USING fts5(
		text_content,
		content=actions,
		content_rowid=id,
		tokenize='unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS actions_ai AFTER INSERT ON actions BEGIN
		INSERT INTO actions_fts(rowid, text_content) VALUES (new.id, new.text_content);
		INSERT INTO actions_fts_code(rowid, text_content) VALUES (new.id, new.text_content);
	END;

	CREATE TRIGGER IF NOT EXISTS actions_ad AFTER DELETE ON actions BEGIN
		INSERT INTO actions_fts(actions_fts, rowid, text_content) VALUES ('delete', old.id, old.text_content);
		INSERT INTO actions_fts_code(actions_fts_code, rowid, text_content) VALUES ('delete', old.id, old.text_content);
	END;

	CREATE TRIGGER IF NOT EXISTS actions_au AFTER UPDATE ON actions BEGIN
		INSERT INTO actions_fts(actions_fts, rowid, text_content) VALUES ('delete', old.id, old.text_content);
		INSERT INTO actions_fts_code(actions_fts_code, rowid, text_content) VALUES ('delete', old.id, old.text_content);
		INSERT INTO actions_fts(rowid, text_content) VALUES (new.id, new.text_content);
		INSERT INTO actions_fts_code(rowid, text_content) VALUES (new.id, new.text_content);
	END;
	`

	_, err := db.conn.Exec(schema)
	return err
}
