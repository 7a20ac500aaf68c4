// Package postgres provides a Postgres-backed version store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/version-radar/internal/radar"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "versions"

// Config controls the Postgres connection pool used for version rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type acquireFunc func(ctx context.Context) (querier, func(), error)

// Store keeps one row per software name, keyed by a primary key on software_name.
type Store struct {
	acquire   acquireFunc
	closePool func()
	table     string
}

// New creates a pool-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{
		acquire: func(ctx context.Context) (querier, func(), error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("acquire connection: %w", err)
			}
			return conn, conn.Release, nil
		},
		closePool: pool.Close,
		table:     table,
	}, nil
}

// NewWithQuerier constructs a store over an existing connection or pool (primarily for testing).
func NewWithQuerier(q querier, table string) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{
		acquire: func(context.Context) (querier, func(), error) {
			return q, func() {}, nil
		},
		table: name,
	}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Migrate creates the versions table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	q, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	software_name TEXT PRIMARY KEY,
	version       TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := q.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Session acquires a pooled connection; Close hands it back.
func (s *Store) Session(ctx context.Context) (radar.Session, error) {
	q, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &session{q: q, release: release, table: s.table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close(_ context.Context) error {
	if s == nil || s.closePool == nil {
		return nil
	}
	s.closePool()
	return nil
}

type session struct {
	q       querier
	release func()
	table   string
	once    sync.Once
}

func (ss *session) Get(ctx context.Context, softwareName string) (radar.VersionRecord, error) {
	query := fmt.Sprintf(`
SELECT software_name, version, created_at, updated_at
FROM %s
WHERE software_name = $1`, ss.table)
	rec, err := scanRecord(ss.q.QueryRow(ctx, query, softwareName))
	if errors.Is(err, pgx.ErrNoRows) {
		return radar.VersionRecord{}, radar.ErrNotFound
	}
	if err != nil {
		return radar.VersionRecord{}, fmt.Errorf("select version: %w", err)
	}
	return rec, nil
}

func (ss *session) Upsert(ctx context.Context, softwareName, version string, at time.Time) (radar.VersionRecord, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (software_name, version, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (software_name) DO UPDATE
SET version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
RETURNING software_name, version, created_at, updated_at`, ss.table)
	rec, err := scanRecord(ss.q.QueryRow(ctx, query, softwareName, version, at))
	if err != nil {
		return radar.VersionRecord{}, fmt.Errorf("upsert version: %w", err)
	}
	return rec, nil
}

func (ss *session) Close(_ context.Context) error {
	ss.once.Do(ss.release)
	return nil
}

func scanRecord(row pgx.Row) (radar.VersionRecord, error) {
	var rec radar.VersionRecord
	if err := row.Scan(&rec.SoftwareName, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return radar.VersionRecord{}, err
	}
	return rec, nil
}
