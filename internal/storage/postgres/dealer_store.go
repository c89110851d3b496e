// Package postgres provides Postgres-backed persistence for dealer records.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DealerStoreConfig controls the connection pool used for dealer rows.
type DealerStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// DealerStore writes finished dealer records into Postgres.
type DealerStore struct {
	pool  execCloser
	table string
}

// NewDealerStore creates a Postgres-backed DealerStore using the provided config.
func NewDealerStore(ctx context.Context, cfg DealerStoreConfig) (*DealerStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "dealers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DealerStore{pool: pool, table: table}, nil
}

// NewDealerStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewDealerStoreWithPool(pool execCloser, table string) (*DealerStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "dealers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &DealerStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *DealerStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRun inserts every record of a finished run. Failures here are fatal
// to the save step only; the in-memory record set stays with the caller.
func (s *DealerStore) StoreRun(ctx context.Context, runID string, records []dealer.Record) error {
	if s == nil || s.pool == nil {
		return &dealer.PersistError{Err: fmt.Errorf("dealer store is not configured")}
	}
	if runID == "" {
		return &dealer.PersistError{Err: fmt.Errorf("run id is required")}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	vehicle_type,
	brand,
	location,
	dealer_name,
	address,
	phone,
	email,
	city,
	state,
	pincode,
	source_url,
	discovered_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, s.table)

	for _, rec := range records {
		args := []any{
			runID,
			rec.VehicleType,
			rec.Brand,
			rec.Location,
			rec.DealerName,
			rec.Address,
			rec.Phone,
			rec.Email,
			rec.City,
			rec.State,
			rec.Pincode,
			rec.SourceURL,
			rec.DiscoveredAt,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return &dealer.PersistError{Err: fmt.Errorf("insert dealer %q: %w", rec.DealerName, err)}
		}
	}
	return nil
}
