// Package sqlite provides a SQLite-backed tank store. It reuses the
// in-memory implementation for all document semantics and snapshots the full
// state to a single table as a JSON blob after every successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"aquacore/internal/infra/persistence/memory"
	"aquacore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.TankStore = (*Store)(nil)

const stateBucket = "tanks"

// Store persists the in-memory state to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and hydrates the
// in-memory state from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "aquacore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, stateBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		stateBucket, payload,
	); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Create allocates the tank in memory, then snapshots to SQLite.
func (s *Store) Create(ctx context.Context, userID, name string) (string, error) {
	id, err := s.Store.Create(ctx, userID, name)
	if err != nil {
		return "", err
	}
	if err := s.persist(); err != nil {
		return "", err
	}
	return id, nil
}

// Write applies the merge in memory, then snapshots to SQLite.
func (s *Store) Write(ctx context.Context, key domain.SessionKey, partial domain.Document) error {
	if err := s.Store.Write(ctx, key, partial); err != nil {
		return err
	}
	return s.persist()
}

// Delete removes the tank in memory, then snapshots to SQLite.
func (s *Store) Delete(ctx context.Context, key domain.SessionKey) error {
	if err := s.Store.Delete(ctx, key); err != nil {
		return err
	}
	return s.persist()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
