// Package store is the durable sink for streaming mode: one SQLite table
// per schema table, batch appends in a single transaction, and typed reads
// for cache bootstrap.
//
// SQLite supports one writer at a time, so the pool is pinned to a single
// connection; WAL mode keeps concurrent readers unblocked during appends.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database used as the streaming sink.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the required
// pragmas. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries. Prefer the typed
// Store methods.
func (s *Store) DB() *sql.DB { return s.db }

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// quoteIdent quotes a table or column name for use in SQL text. Names come
// from the validated schema, but quoting keeps reserved words usable.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
