package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection for the client-owned papo.db: the
// persisted session snapshot and the send journal live here. Message
// sequences do not; they are in-memory only and reloaded from the
// server on every room switch.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended
// pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}
