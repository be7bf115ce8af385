package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist, regardless of
// which backend is in use.
var ErrNotFound = errors.New("not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config selects a backend. DSN is a connection URL for postgres and a file
// path for sqlite; it is ignored by the memory backend.
type Config struct {
	Driver string
	DSN    string
}

// Backend bundles an opened set of stores with whatever resources back them.
type Backend struct {
	Stores domain.Stores

	pool *pgxpool.Pool
	sq   *sqliteBackend
}

// Open creates the backend named by cfg.Driver.
// - postgres: external PostgreSQL with pgvector, connection URL in DSN
// - sqlite: single-file local database, path in DSN
// - memory: ephemeral in-process backend
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a connection URL")
		}
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return &Backend{Stores: NewPostgres(pool, logger), pool: pool}, nil

	case DriverSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite driver requires a database path")
		}
		sq, err := openSQLite(cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{Stores: sq.stores(), sq: sq}, nil

	case DriverMemory, "":
		return &Backend{Stores: NewMemory()}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: postgres, sqlite, memory)", cfg.Driver)
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

// Ping verifies the underlying database is reachable. The memory backend is
// always reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.pool != nil {
		return b.pool.Ping(ctx)
	}
	if b.sq != nil {
		return b.sq.db.PingContext(ctx)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.sq != nil {
		return b.sq.db.Close()
	}
	return nil
}
