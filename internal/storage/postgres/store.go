// Package postgres implements the line-item cache on a shared Postgres
// database, so several hosts can reuse each other's fetches.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TobiSchelling/dartq/internal/filing"
)

const schema = `
CREATE TABLE IF NOT EXISTS cached_financials (
    corp_code TEXT NOT NULL,
    year INTEGER NOT NULL,
    quarter INTEGER NOT NULL,
    report_code TEXT NOT NULL,
    fs_div TEXT NOT NULL,
    account_id TEXT NOT NULL,
    account_nm TEXT,
    thstrm_amount BIGINT,
    fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (corp_code, year, report_code, fs_div, account_id)
)`

// Store is a filing.CacheStore backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ filing.CacheStore = (*Store)(nil)

// Open connects to url and ensures the cache table exists.
func Open(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Get returns the cached line item for key.
func (s *Store) Get(ctx context.Context, key filing.CacheKey) (filing.LineItem, bool, error) {
	var (
		label  *string
		amount *int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT account_nm, thstrm_amount FROM cached_financials
		WHERE corp_code = $1 AND year = $2 AND report_code = $3 AND fs_div = $4 AND account_id = $5`,
		key.EntityID, key.Year, key.Kind.Code(), key.Variant.Code(), key.AccountKey,
	).Scan(&label, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return filing.LineItem{}, false, nil
	}
	if err != nil {
		return filing.LineItem{}, false, err
	}

	item := filing.LineItem{
		EntityID:   key.EntityID,
		Year:       key.Year,
		Kind:       key.Kind,
		Variant:    key.Variant,
		AccountKey: key.AccountKey,
		Amount:     amount,
	}
	if label != nil {
		item.AccountLabel = *label
	}
	return item, true, nil
}

// Upsert stores item, replacing any row with the same key.
func (s *Store) Upsert(ctx context.Context, item filing.LineItem) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cached_financials
		(corp_code, year, quarter, report_code, fs_div, account_id, account_nm, thstrm_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (corp_code, year, report_code, fs_div, account_id)
		DO UPDATE SET account_nm = EXCLUDED.account_nm, thstrm_amount = EXCLUDED.thstrm_amount`,
		item.EntityID, item.Year, item.Kind.Quarter(), item.Kind.Code(), item.Variant.Code(),
		item.AccountKey, item.AccountLabel, item.Amount,
	)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", item.Key(), err)
	}
	return nil
}

// Count returns the number of cached line items for an entity.
func (s *Store) Count(ctx context.Context, entityID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM cached_financials WHERE corp_code = $1", entityID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", entityID, err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
