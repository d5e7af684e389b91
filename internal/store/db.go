// Package store persists repo/jira-binding/user-binding configuration and
// the webhook-delivery dedup ledger to sqlite, opened WAL-mode per
// spec.md §6.6.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB embeds *sql.DB the way the teacher's store.DB does, so callers keep
// using database/sql directly for ad-hoc queries.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the sqlite database at path in WAL
// mode with a busy timeout, suitable for the single-writer-lock access
// pattern described in spec.md §5.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// sqlite permits only one writer at a time; a single connection
	// avoids SQLITE_BUSY storms under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
