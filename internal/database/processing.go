package database

import (
	"context"
	"database/sql"
	"errors"
)

// GetUnprocessedCorps returns up to limit directory entries with no
// processing_status row, ordered by code.
func (db *DB) GetUnprocessedCorps(ctx context.Context, limit int) ([]Corp, error) {
	return db.queryCorps(ctx,
		`SELECT c.corp_code, c.corp_name, COALESCE(c.stock_code, ''), COALESCE(c.modify_date, '')
		FROM corp_codes c LEFT JOIN processing_status p ON c.corp_code = p.corp_code
		WHERE p.corp_code IS NULL
		ORDER BY c.corp_code ASC
		LIMIT ?`, limit,
	)
}

// MarkProcessed records a batch outcome for an entity.
func (db *DB) MarkProcessed(ctx context.Context, corpCode, period, status string, metricCount int) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO processing_status (corp_code, period, status, metric_count, processed_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT (corp_code) DO UPDATE SET
			period = excluded.period,
			status = excluded.status,
			metric_count = excluded.metric_count,
			processed_at = excluded.processed_at`,
		corpCode, period, status, metricCount,
	)
	return err
}

// GetProcessingStatus returns the batch outcome for an entity, or nil.
func (db *DB) GetProcessingStatus(ctx context.Context, corpCode string) (*ProcessingStatus, error) {
	var s ProcessingStatus
	var processedAt sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT corp_code, period, status, metric_count, processed_at
		FROM processing_status WHERE corp_code = ?`, corpCode,
	).Scan(&s.CorpCode, &s.Period, &s.Status, &s.MetricCount, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		s.ProcessedAt = &processedAt.String
	}
	return &s, nil
}
