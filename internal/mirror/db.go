// Package mirror persists the local copy of server state: folders, items,
// sync cursors and job history. Backed by SQLite in WAL mode.
package mirror

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// migrations run in order; the applied count is tracked in PRAGMA
// user_version. Append only, never edit a shipped entry.
var migrations = []string{
	`
CREATE TABLE folders (
    account_id   TEXT NOT NULL,
    server_id    TEXT NOT NULL,
    parent_id    TEXT NOT NULL DEFAULT '0',
    display_name TEXT NOT NULL,
    kind         INTEGER NOT NULL,
    unread       INTEGER NOT NULL DEFAULT 0,
    total        INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id, server_id)
);

CREATE TABLE mail_items (
    account_id             TEXT NOT NULL,
    folder_id              TEXT NOT NULL,
    server_id              TEXT NOT NULL,
    from_addr              TEXT NOT NULL DEFAULT '',
    to_addr                TEXT NOT NULL DEFAULT '',
    cc_addr                TEXT NOT NULL DEFAULT '',
    subject                TEXT NOT NULL DEFAULT '',
    date                   TIMESTAMP,
    read                   INTEGER NOT NULL DEFAULT 0,
    flagged                INTEGER NOT NULL DEFAULT 0,
    has_attachments        INTEGER NOT NULL DEFAULT 0,
    body                   TEXT NOT NULL DEFAULT '',
    body_encoding          TEXT NOT NULL DEFAULT '',
    body_fetched           INTEGER NOT NULL DEFAULT 0,
    read_receipt_requested INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id, folder_id, server_id)
);
CREATE INDEX idx_mail_items_date ON mail_items (account_id, folder_id, date DESC);

CREATE TABLE attachments (
    account_id     TEXT NOT NULL,
    item_server_id TEXT NOT NULL,
    file_reference TEXT NOT NULL,
    display_name   TEXT NOT NULL DEFAULT '',
    content_type   TEXT NOT NULL DEFAULT '',
    size_estimate  INTEGER NOT NULL DEFAULT 0,
    inline         INTEGER NOT NULL DEFAULT 0,
    content_id     TEXT NOT NULL DEFAULT '',
    local_path     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (account_id, file_reference)
);
CREATE INDEX idx_attachments_item ON attachments (account_id, item_server_id);

CREATE TABLE calendar_events (
    account_id       TEXT NOT NULL,
    folder_id        TEXT NOT NULL,
    server_id        TEXT NOT NULL,
    subject          TEXT NOT NULL DEFAULT '',
    location         TEXT NOT NULL DEFAULT '',
    body             TEXT NOT NULL DEFAULT '',
    start_at         INTEGER NOT NULL DEFAULT 0,
    end_at           INTEGER NOT NULL DEFAULT 0,
    all_day          INTEGER NOT NULL DEFAULT 0,
    organizer        TEXT NOT NULL DEFAULT '',
    attendees        TEXT NOT NULL DEFAULT '[]',
    busy             INTEGER NOT NULL DEFAULT 0,
    recurring        INTEGER NOT NULL DEFAULT 0,
    reminder_minutes INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id, folder_id, server_id)
);

CREATE TABLE contacts (
    account_id TEXT NOT NULL,
    folder_id  TEXT NOT NULL,
    server_id  TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name  TEXT NOT NULL DEFAULT '',
    file_as    TEXT NOT NULL DEFAULT '',
    company    TEXT NOT NULL DEFAULT '',
    email1     TEXT NOT NULL DEFAULT '',
    email2     TEXT NOT NULL DEFAULT '',
    phone      TEXT NOT NULL DEFAULT '',
    mobile     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (account_id, folder_id, server_id)
);

CREATE TABLE tasks (
    account_id TEXT NOT NULL,
    folder_id  TEXT NOT NULL,
    server_id  TEXT NOT NULL,
    subject    TEXT NOT NULL DEFAULT '',
    body       TEXT NOT NULL DEFAULT '',
    complete   INTEGER NOT NULL DEFAULT 0,
    due_date   INTEGER NOT NULL DEFAULT 0,
    importance INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (account_id, folder_id, server_id)
);

CREATE TABLE sync_cursors (
    account_id    TEXT NOT NULL,
    collection_id TEXT NOT NULL,
    sync_key      TEXT NOT NULL DEFAULT '0',
    updated_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (account_id, collection_id)
);

CREATE TABLE sync_jobs (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL,
    folder_id   TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    changed     INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_sync_jobs_account ON sync_jobs (account_id, started_at DESC);
`,
	`
ALTER TABLE mail_items ADD COLUMN invitation TEXT NOT NULL DEFAULT '';
`,
}

// Open opens (or creates) the mirror database at path and applies pending
// migrations.
func Open(path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mirror: create data dir: %w", err)
		}
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("mirror: open %s: %w", path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("mirror: read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("mirror: database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}
	for i := version; i < len(migrations); i++ {
		tx, err := db.Beginx()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("mirror: migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("mirror: bump schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
