package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TobiSchelling/dartq/internal/filing"
)

var _ filing.CacheStore = (*DB)(nil)

// Get returns the cached line item for key.
func (db *DB) Get(ctx context.Context, key filing.CacheKey) (filing.LineItem, bool, error) {
	var (
		label  sql.NullString
		amount sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT account_nm, thstrm_amount FROM cached_financials
		WHERE corp_code = ? AND year = ? AND report_code = ? AND fs_div = ? AND account_id = ?`,
		key.EntityID, key.Year, key.Kind.Code(), key.Variant.Code(), key.AccountKey,
	).Scan(&label, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return filing.LineItem{}, false, nil
	}
	if err != nil {
		return filing.LineItem{}, false, err
	}

	item := filing.LineItem{
		EntityID:     key.EntityID,
		Year:         key.Year,
		Kind:         key.Kind,
		Variant:      key.Variant,
		AccountKey:   key.AccountKey,
		AccountLabel: label.String,
	}
	if amount.Valid {
		v := amount.Int64
		item.Amount = &v
	}
	return item, true, nil
}

// Upsert stores item, replacing any row with the same key.
func (db *DB) Upsert(ctx context.Context, item filing.LineItem) error {
	var amount sql.NullInt64
	if item.Amount != nil {
		amount = sql.NullInt64{Int64: *item.Amount, Valid: true}
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO cached_financials
		(corp_code, year, quarter, report_code, fs_div, account_id, account_nm, thstrm_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (corp_code, year, report_code, fs_div, account_id)
		DO UPDATE SET account_nm = excluded.account_nm, thstrm_amount = excluded.thstrm_amount`,
		item.EntityID, item.Year, item.Kind.Quarter(), item.Kind.Code(), item.Variant.Code(),
		item.AccountKey, item.AccountLabel, amount,
	)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", item.Key(), err)
	}
	return nil
}

// CountCached returns the number of cached line items for an entity.
func (db *DB) CountCached(ctx context.Context, corpCode string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cached_financials WHERE corp_code = ?", corpCode,
	).Scan(&n)
	return n, err
}
