// Package secrets keeps per-domain form values (logins, passwords) in a
// local SQLite database so they are typed once and reused.
package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no value is stored for a domain and name.
var ErrNotFound = errors.New("secret not found")

const schema = `
CREATE TABLE IF NOT EXISTS secrets (
	domain     TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (domain, name)
);`

// Store is a SQLite-backed secret store.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" keeps
// everything in memory.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("Failed to set pragma", zap.String("pragma", pragma), zap.Error(err))
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Debug("Opened secrets database", zap.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Get returns the value stored for name on domain.
func (s *Store) Get(ctx context.Context, domain, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM secrets WHERE domain = ? AND name = ?`, domain, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s on %s", ErrNotFound, name, domain)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return value, nil
}

// Set stores value for name on domain, replacing any previous value.
func (s *Store) Set(ctx context.Context, domain, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (domain, name, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(domain, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		domain, name, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	s.logger.Debug("Stored secret", zap.String("domain", domain), zap.String("name", name))
	return nil
}

// Delete removes name from domain. Deleting a missing secret is not an
// error.
func (s *Store) Delete(ctx context.Context, domain, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM secrets WHERE domain = ? AND name = ?`, domain, name); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

// Names lists the secret names stored for domain, sorted.
func (s *Store) Names(ctx context.Context, domain string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM secrets WHERE domain = ? ORDER BY name`, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
