// Package postgressink stores records as JSONB rows in PostgreSQL.
package postgressink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/sink"
)

const DefaultTable = "scraped_records"

// Pool is the subset of *pgxpool.Pool used by the sink.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Sink inserts one row per record keyed by (kind, key). Re-emitted records are
// ignored, so overlapping or resumed runs are idempotent.
type Sink struct {
	pool   Pool
	insert string
}

var _ sink.Sink = (*Sink)(nil)

// Open connects to dsn, verifies the connection and creates table if needed.
func Open(ctx context.Context, dsn, table string) (*Sink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := New(ctx, pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates table on pool if needed and returns a sink writing to it.
func New(ctx context.Context, pool Pool, table string) (*Sink, error) {
	if table == "" {
		table = DefaultTable
	}
	ident := pgx.Identifier{table}.Sanitize()

	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+ident+` (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		payload JSONB NOT NULL,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (kind, key)
	)`)
	if err != nil {
		return nil, fmt.Errorf("create %s table: %w", table, err)
	}

	return &Sink{
		pool: pool,
		insert: `INSERT INTO ` + ident + ` (kind, key, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, key) DO NOTHING`,
	}, nil
}

func (s *Sink) Emit(ctx context.Context, r types.Record) error {
	payload, err := types.MarshalRecord(r)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, s.insert, string(r.Kind()), r.Key(), payload); err != nil {
		return fmt.Errorf("insert %s %s: %w", r.Kind(), r.Key(), err)
	}
	return nil
}

func (s *Sink) Close(context.Context) error {
	s.pool.Close()
	return nil
}
