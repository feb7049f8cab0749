// Package keystore persists the feed API key for the command-line client.
package keystore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	api_key TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Store keeps a single API key in a SQLite file. It is safe for concurrent
// use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.RWMutex
}

// Open opens or creates the keystore at path. Missing parent directories
// are created with owner-only permissions.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	connStr := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create keystore directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	// One connection keeps :memory: databases consistent across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping keystore: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create keystore schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Get returns the stored key. Read failures are logged and reported as
// absent.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var key string
	err := s.db.QueryRow(`SELECT api_key FROM credentials WHERE id = 1`).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		s.logger.Warn("read credential failed", "error", err)
		return "", false
	}
	return key, key != ""
}

// Set stores key, replacing any previous value.
func (s *Store) Set(key string) error {
	if key == "" {
		return errors.New("credential must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO credentials (id, api_key, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			api_key = excluded.api_key,
			updated_at = excluded.updated_at
	`, key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Clear removes the stored key. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Static is an in-memory credential holder, used when the key comes from
// the environment instead of the keystore file.
type Static struct {
	mu  sync.RWMutex
	key string
}

// NewStatic returns a store holding key. An empty key reads as absent.
func NewStatic(key string) *Static {
	return &Static{key: key}
}

// Get returns the key and whether one is set.
func (s *Static) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key, s.key != ""
}

// Set replaces the key in memory.
func (s *Static) Set(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	return nil
}

// Clear forgets the key.
func (s *Static) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = ""
	return nil
}
