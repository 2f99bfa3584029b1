package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
// results.db is recreated on every run, so the schema only needs a new
// version when a reader must tell old files from new ones.
var migrations = []Migration{
	{
		Version:     1,
		Description: "run metadata and table catalog",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    records_fetched INTEGER DEFAULT 0,
    records_kept INTEGER DEFAULT 0,
    records_dropped INTEGER DEFAULT 0,
    lockdown_start TEXT NOT NULL,
    reopening_start TEXT NOT NULL,
    analysis_end TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_ranges (
    run_id TEXT NOT NULL REFERENCES runs(id),
    position INTEGER NOT NULL,
    label TEXT NOT NULL,
    range_start TEXT NOT NULL,
    range_end TEXT NOT NULL,
    records INTEGER DEFAULT 0,
    truncated INTEGER DEFAULT 0,
    error TEXT,
    PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS drop_reasons (
    run_id TEXT NOT NULL REFERENCES runs(id),
    reason TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (run_id, reason)
);

CREATE TABLE IF NOT EXISTS result_tables (
    run_id TEXT NOT NULL REFERENCES runs(id),
    name TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    PRIMARY KEY (run_id, name)
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
