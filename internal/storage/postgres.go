package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS gateway_stats (
	id                  UUID PRIMARY KEY,
	gateway_id          TEXT NOT NULL,
	time                TIMESTAMPTZ NOT NULL,
	tx_packets_received BIGINT NOT NULL,
	tx_packets_emitted  BIGINT NOT NULL,
	tx_per_frequency    JSONB NOT NULL,
	tx_per_modulation   JSONB NOT NULL,
	tx_per_status       JSONB NOT NULL,
	metadata            JSONB
);
CREATE INDEX IF NOT EXISTS idx_gateway_stats_gateway_time ON gateway_stats (gateway_id, time DESC);

CREATE TABLE IF NOT EXISTS event_logs (
	id          UUID PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL,
	gateway_id  TEXT NOT NULL,
	type        TEXT NOT NULL,
	level       TEXT NOT NULL,
	description TEXT NOT NULL,
	details     JSONB
);
CREATE INDEX IF NOT EXISTS idx_event_logs_gateway_created ON event_logs (gateway_id, created_at DESC);
`

// PoolConfig holds the connection pool limits
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore implements Store interface for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string, pool PoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
