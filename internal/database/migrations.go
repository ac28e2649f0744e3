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
var migrations = []Migration{
	{
		Version:     1,
		Description: "financials cache",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS cached_financials (
    corp_code TEXT NOT NULL,
    year INTEGER NOT NULL,
    quarter INTEGER NOT NULL,
    report_code TEXT NOT NULL,
    fs_div TEXT NOT NULL,
    account_id TEXT NOT NULL,
    account_nm TEXT,
    thstrm_amount INTEGER,
    PRIMARY KEY (corp_code, year, report_code, fs_div, account_id)
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "entity directory and batch ledger",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS corp_codes (
    corp_code TEXT PRIMARY KEY,
    corp_name TEXT NOT NULL,
    stock_code TEXT,
    modify_date TEXT,
    synced_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS processing_status (
    corp_code TEXT PRIMARY KEY,
    period TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('done', 'empty', 'failed')),
    metric_count INTEGER DEFAULT 0,
    processed_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_corp_codes_name ON corp_codes(corp_name);
CREATE INDEX IF NOT EXISTS idx_cached_financials_corp ON cached_financials(corp_code, fs_div);
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
