// Package store provides the durable SQLite persistence layer: person
// records, bounded per-person embedding banks, and the singleton
// active-session row.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the SQLite database. All mutations are serialized through
// a single write path (writeMu) and committed before the call returns;
// readers see either the pre-mutation or the post-mutation state, never a
// partial write.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// Open opens (creating if necessary) the database at path, switches it to
// WAL journal mode and applies pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// WAL keeps readers unblocked while the single writer commits;
	// busy_timeout covers the brief WAL checkpoint locks.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := s.ensureSessionRow(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize active session: %w", err)
	}
	return s, nil
}

// DB returns the underlying sql.DB for direct read access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a serialized write transaction. The transaction is
// rolled back on any error, leaving the store in its pre-mutation state.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ensureSessionRow guarantees exactly one row in active_session. A zero or
// duplicated row count (e.g. after a crash mid-clear) is repaired here.
func (s *Store) ensureSessionRow(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM active_session").Scan(&count); err != nil {
			return fmt.Errorf("counting session rows: %w", err)
		}
		switch {
		case count == 1:
			return nil
		case count > 1:
			if _, err := tx.ExecContext(ctx, "DELETE FROM active_session"); err != nil {
				return fmt.Errorf("removing duplicate session rows: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO active_session (id, person_id, last_seen) VALUES (1, NULL, NULL)"); err != nil {
			return fmt.Errorf("seeding session row: %w", err)
		}
		return nil
	})
}
