package storage

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations
var migrationsFS embed.FS

// PGStore implements SessionStore and EventLog against Postgres through a
// pgxpool: two tables are not enough schema to earn a generated ORM layer,
// so hand-written SQL drives pgxpool directly, with golang-migrate for
// schema management.
type PGStore struct {
	pool *pgxpool.Pool
}

// PGConfig configures a Postgres connection pool.
type PGConfig struct {
	DSN          string
	MaxConns     int32
	MigrationDir string
}

// NewPGStore opens a pgxpool against cfg.DSN and applies pending migrations.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := runMigrations(cfg.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &PGStore{pool: pool}, nil
}

func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// SaveSession implements SessionStore: an upsert keyed by session id.
func (s *PGStore) SaveSession(ctx context.Context, sessionID string, state []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET state = $2, updated_at = now()
	`, sessionID, state)
	if err != nil {
		return fmt.Errorf("saving session %q: %w", sessionID, err)
	}
	return nil
}

// LoadSession implements SessionStore.
func (s *PGStore) LoadSession(ctx context.Context, sessionID string) ([]byte, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM sessions WHERE session_id = $1`, sessionID).Scan(&state)
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", sessionID, err)
	}
	return state, nil
}

// AppendEvent implements EventLog: an append-only insert, never updated or
// deleted, keyed by request id.
func (s *PGStore) AppendEvent(ctx context.Context, requestID string, eventType string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO request_events (request_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, requestID, eventType, payload)
	if err != nil {
		return fmt.Errorf("appending event for %q: %w", requestID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PGStore) Close() { s.pool.Close() }

var (
	_ SessionStore = (*PGStore)(nil)
	_ EventLog     = (*PGStore)(nil)
)
