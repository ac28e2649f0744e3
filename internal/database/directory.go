package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReplaceCorps upserts the full entity directory in one transaction.
func (db *DB) ReplaceCorps(ctx context.Context, corps []Corp) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin directory sync: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO corp_codes (corp_code, corp_name, stock_code, modify_date, synced_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT (corp_code) DO UPDATE SET
			corp_name = excluded.corp_name,
			stock_code = excluded.stock_code,
			modify_date = excluded.modify_date,
			synced_at = excluded.synced_at`,
	)
	if err != nil {
		return fmt.Errorf("preparing directory upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range corps {
		if _, err := stmt.ExecContext(ctx, c.Code, c.Name, c.StockCode, c.ModifyDate); err != nil {
			return fmt.Errorf("upserting corp %s: %w", c.Code, err)
		}
	}
	return tx.Commit()
}

// CountCorps returns the directory size.
func (db *DB) CountCorps(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM corp_codes").Scan(&n)
	return n, err
}

// FindCorps returns entries named exactly name, or when there are none,
// entries whose name contains it. Listed entities sort first.
func (db *DB) FindCorps(ctx context.Context, name string) ([]Corp, error) {
	exact, err := db.queryCorps(ctx,
		`SELECT corp_code, corp_name, COALESCE(stock_code, ''), COALESCE(modify_date, '')
		FROM corp_codes WHERE corp_name = ?
		ORDER BY COALESCE(stock_code, '') = '', corp_code`, name)
	if err != nil || len(exact) > 0 {
		return exact, err
	}
	return db.queryCorps(ctx,
		`SELECT corp_code, corp_name, COALESCE(stock_code, ''), COALESCE(modify_date, '')
		FROM corp_codes WHERE instr(corp_name, ?) > 0
		ORDER BY COALESCE(stock_code, '') = '', length(corp_name), corp_code`, name)
}

// LastCorpSync returns when the directory was last synced, or the zero time
// if it never was.
func (db *DB) LastCorpSync(ctx context.Context) (time.Time, error) {
	var s sql.NullString
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(synced_at) FROM corp_codes").Scan(&s); err != nil {
		return time.Time{}, err
	}
	if !s.Valid {
		return time.Time{}, nil
	}
	return time.Parse(time.DateTime, s.String)
}

func (db *DB) queryCorps(ctx context.Context, query string, args ...any) ([]Corp, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var corps []Corp
	for rows.Next() {
		var c Corp
		if err := rows.Scan(&c.Code, &c.Name, &c.StockCode, &c.ModifyDate); err != nil {
			return nil, err
		}
		corps = append(corps, c)
	}
	return corps, rows.Err()
}
