// Package postgres provides a Postgres-backed tank store that mirrors the
// in-memory semantics and snapshots state after every successful mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"aquacore/internal/infra/persistence/memory"
	"aquacore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.TankStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/aquacore?sslmode=disable"
	stateBucket   = "tanks"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory
// implementation for document semantics.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory store from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, stateBucket).Scan(&payload)
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

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		stateBucket, payload,
	); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Create allocates the tank in memory, then snapshots to Postgres.
func (s *Store) Create(ctx context.Context, userID, name string) (string, error) {
	id, err := s.Store.Create(ctx, userID, name)
	if err != nil {
		return "", err
	}
	if err := s.persist(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// Write applies the merge in memory, then snapshots to Postgres.
func (s *Store) Write(ctx context.Context, key domain.SessionKey, partial domain.Document) error {
	if err := s.Store.Write(ctx, key, partial); err != nil {
		return err
	}
	return s.persist(ctx)
}

// Delete removes the tank in memory, then snapshots to Postgres.
func (s *Store) Delete(ctx context.Context, key domain.SessionKey) error {
	if err := s.Store.Delete(ctx, key); err != nil {
		return err
	}
	return s.persist(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }
