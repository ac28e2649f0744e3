package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"

	"github.com/TobiSchelling/dartq/internal/collect"
	"github.com/TobiSchelling/dartq/internal/config"
	"github.com/TobiSchelling/dartq/internal/database"
	"github.com/TobiSchelling/dartq/internal/filing"
	"github.com/TobiSchelling/dartq/internal/normalize"
)

// Batch statuses recorded in the processing ledger.
const (
	StatusDone   = "done"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// Metrics is the quarterly series for one entity.
type Metrics struct {
	EntityID string                   `json:"entity_id"`
	Name     string                   `json:"name,omitempty"`
	Target   string                   `json:"target"`
	Variant  string                   `json:"variant,omitempty"`
	Quarters []filing.QuarterlyMetric `json:"quarters"`
}

// BatchEntry is the outcome of one entity in a batch run.
type BatchEntry struct {
	Corp     database.Corp
	Status   string
	Quarters int
	Err      error
}

// BatchResult holds the results of a batch run.
type BatchResult struct {
	Period  string
	Entries []BatchEntry
}

// Service ties name resolution, cache-first collection and normalization
// together.
type Service struct {
	db        *database.DB
	resolver  filing.NameResolver
	collector *collect.Collector
}

// New creates a service. db holds the batch ledger; store is the line item
// cache, which may or may not be db itself.
func New(cfg *config.Config, db *database.DB, store filing.CacheStore, fetcher filing.StatementFetcher, resolver filing.NameResolver, progress collect.ProgressFunc) *Service {
	opts := collect.OptionsFromConfig(cfg)
	opts.Progress = progress
	return &Service{
		db:        db,
		resolver:  resolver,
		collector: collect.NewCollector(store, fetcher, opts),
	}
}

// CollectQuarterlyMetrics returns the discrete quarterly series for entityID
// over the window ending at year/month. When nothing was filed it returns
// metrics with no quarters together with filing.ErrNoData.
func (s *Service) CollectQuarterlyMetrics(ctx context.Context, entityID string, year, month int) (*Metrics, error) {
	r, err := s.collector.Collect(ctx, entityID, year, month)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		EntityID: r.EntityID,
		Target:   r.Periods[len(r.Periods)-1].String(),
		Quarters: normalize.Quarterly(r.Items),
	}
	if r.Variant != 0 {
		m.Variant = r.Variant.String()
	}
	if len(r.Items) == 0 {
		return m, filing.ErrNoData
	}
	return m, nil
}

// MetricsByName resolves name and collects its metrics for a YYYYMM target.
func (s *Service) MetricsByName(ctx context.Context, name, yyyymm string) (*Metrics, error) {
	year, month, err := filing.ParseYearMonth(yyyymm)
	if err != nil {
		return nil, err
	}
	code, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	m, err := s.CollectQuarterlyMetrics(ctx, code, year, month)
	if m != nil {
		m.Name = name
	}
	return m, err
}

// Batch collects metrics for up to size directory entities that have not
// been processed yet and records each outcome.
func (s *Service) Batch(ctx context.Context, size int, yyyymm string) (*BatchResult, error) {
	year, month, err := filing.ParseYearMonth(yyyymm)
	if err != nil {
		return nil, err
	}
	corps, err := s.db.GetUnprocessedCorps(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed entities: %w", err)
	}

	res := &BatchResult{Period: yyyymm}
	if len(corps) == 0 {
		log.Info().Msg("no unprocessed entities")
		return res, nil
	}
	log.Info().Int("entities", len(corps)).Str("period", yyyymm).Msg("processing batch")

	for _, c := range corps {
		entry := BatchEntry{Corp: c}
		m, err := s.CollectQuarterlyMetrics(ctx, c.Code, year, month)
		switch {
		case errors.Is(err, filing.ErrNoData):
			entry.Status = StatusEmpty
		case err != nil:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			entry.Status = StatusFailed
			entry.Err = err
		default:
			entry.Status = StatusDone
			entry.Quarters = len(m.Quarters)
		}

		if err := s.db.MarkProcessed(ctx, c.Code, yyyymm, entry.Status, entry.Quarters); err != nil {
			return res, fmt.Errorf("recording status for %s: %w", c.Code, err)
		}
		log.Info().Str("corp", c.Code).Str("name", c.Name).Str("status", entry.Status).Int("quarters", entry.Quarters).Msg("entity processed")
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}
