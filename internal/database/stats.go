package database

import (
	"context"
	"database/sql"
)

// GetStats returns aggregate counts across the cache, directory and ledger.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM cached_financials", &s.CachedRows},
		{"SELECT COUNT(DISTINCT corp_code) FROM cached_financials", &s.CachedEntities},
		{"SELECT COUNT(*) FROM corp_codes", &s.DirectorySize},
		{"SELECT COUNT(*) FROM processing_status", &s.ProcessedCorps},
		{"SELECT COUNT(*) FROM processing_status WHERE status = 'empty'", &s.EmptyCorps},
	}
	for _, c := range counts {
		if err := db.conn.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var last sql.NullString
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(processed_at) FROM processing_status").Scan(&last); err != nil {
		return nil, err
	}
	s.LastProcessedAt = last.String
	return s, nil
}
