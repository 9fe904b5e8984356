package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Transferred dataset, fully replaced on each successful transfer
CREATE TABLE IF NOT EXISTS session_data (
	location TEXT,
	session_name TEXT,
	meeting_key INTEGER,
	session_key INTEGER,
	driver_number INTEGER,
	position INTEGER,
	datetime TEXT
);

CREATE INDEX IF NOT EXISTS idx_session_data_filter ON session_data(session_name, location);

-- Transfer audit table
CREATE TABLE IF NOT EXISTS transfers (
	id TEXT PRIMARY KEY,
	outcome TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
`
