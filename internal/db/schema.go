package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Nullable asset columns mirror optional
// fields of the JSON documents: NULL means the field was never set.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id           INTEGER PRIMARY KEY,
    login        TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    avatar_file  TEXT
);

CREATE TABLE IF NOT EXISTS assets (
    seq             INTEGER PRIMARY KEY,
    id              TEXT NOT NULL UNIQUE,
    id_numeric      INTEGER NOT NULL DEFAULT 0 CHECK (id_numeric IN (0, 1)),
    type            TEXT,
    name            TEXT,
    room            TEXT,
    status          TEXT CHECK (status IN ('free', 'busy')),
    busy_by_user_id INTEGER,
    counts_warnings INTEGER,
    counts_alarms   INTEGER,
    totals_warnings INTEGER,
    totals_alarms   INTEGER,
    has_description INTEGER NOT NULL DEFAULT 0,
    erp_guid        TEXT NOT NULL DEFAULT '',
    serial_number   TEXT NOT NULL DEFAULT '',
    passport_id     TEXT NOT NULL DEFAULT '',
    class_name      TEXT NOT NULL DEFAULT '',
    manufacturer    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS events (
    id               INTEGER PRIMARY KEY,
    asset_id         TEXT NOT NULL,
    asset_id_numeric INTEGER NOT NULL DEFAULT 0,
    ts               TEXT NOT NULL,
    type             TEXT NOT NULL,
    result           TEXT NOT NULL,
    user_login       TEXT NOT NULL,
    problem          TEXT
);
`

// EnsureSchema creates all tables if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
