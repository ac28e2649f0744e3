package collect

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/TobiSchelling/dartq/internal/config"
	"github.com/TobiSchelling/dartq/internal/filing"
)

// Options tunes a Collector.
type Options struct {
	Workers         int
	FetchTimeout    time.Duration
	WindowYears     int
	MaxProbePeriods int
	Progress        ProgressFunc
}

// OptionsFromConfig maps the collect section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:         cfg.Collect.Workers,
		FetchTimeout:    cfg.Collect.FetchTimeout,
		WindowYears:     cfg.Collect.WindowYears,
		MaxProbePeriods: cfg.Collect.MaxProbePeriods,
	}
}

// Result holds the results of a collection run.
type Result struct {
	RunID    string
	EntityID string
	Periods  []filing.ReportPeriod

	// Variant is zero when the statement basis could not be settled.
	Variant   filing.Variant
	Items     []filing.LineItem
	CacheHits int
	Probes    int
	Fetched   int
	Failed    int
}

// Collector gathers every tracked line item an entity filed across a
// trailing window, serving what it can from the cache and fetching the rest
// concurrently.
type Collector struct {
	store    filing.CacheStore
	fetcher  filing.StatementFetcher
	resolver *VariantResolver
	opts     Options
}

// NewCollector creates a collector. Zero-valued options fall back to the
// built-in defaults.
func NewCollector(store filing.CacheStore, fetcher filing.StatementFetcher, opts Options) *Collector {
	if opts.Workers < 1 {
		opts.Workers = 10
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.WindowYears < 1 {
		opts.WindowYears = filing.DefaultWindowYears
	}
	return &Collector{
		store:    store,
		fetcher:  fetcher,
		resolver: NewVariantResolver(store, fetcher, opts.FetchTimeout, opts.MaxProbePeriods),
		opts:     opts,
	}
}

// Collect returns the union of cached and freshly fetched tracked items for
// entityID over the window ending at the latest period available in
// year/month. Individual fetch failures are absorbed; only an invalid target
// or a cancelled context yields an error.
func (c *Collector) Collect(ctx context.Context, entityID string, year, month int) (*Result, error) {
	periods, err := filing.PlanWindow(year, month, c.opts.WindowYears)
	if err != nil {
		return nil, err
	}

	r := &Result{
		RunID:    uuid.NewString(),
		EntityID: filing.NormalizeEntityID(entityID),
		Periods:  periods,
	}
	acc := make(map[filing.CacheKey]filing.LineItem)
	add := func(items []filing.LineItem) {
		for _, it := range items {
			acc[it.Key()] = it
		}
	}

	// Cache scan. A consolidated hit narrows the candidates immediately.
	candidates := filing.Variants
	var evidence []filing.Variant
	var missing []filing.ReportPeriod
	for _, p := range periods {
		hit := false
		for _, v := range candidates {
			items := c.lookup(ctx, r, p, v)
			if len(items) == 0 {
				continue
			}
			add(items)
			r.CacheHits++
			hit = true
			if !slices.Contains(evidence, v) {
				evidence = append(evidence, v)
			}
			if v == filing.Consolidated {
				candidates = []filing.Variant{filing.Consolidated}
			}
			break
		}
		if !hit {
			missing = append(missing, p)
		}
	}
	c.opts.Progress.emit(Event{Kind: EventCacheScanned, RunID: r.RunID, EntityID: r.EntityID, Period: r.target(), Succeeded: r.CacheHits, Tasks: len(missing)})
	log.Debug().Str("run_id", r.RunID).Str("entity", r.EntityID).Int("hits", r.CacheHits).Int("missing", len(missing)).Msg("cache scanned")

	if len(missing) == 0 {
		r.Variant = variantOf(candidates, evidence)
		r.Items = sortedItems(acc)
		return r, nil
	}

	// Variant discovery.
	tried := make(map[attempt]bool)
	c.opts.Progress.emit(Event{Kind: EventProbeStarted, RunID: r.RunID, EntityID: r.EntityID, Period: r.target(), Tasks: len(missing)})
	res := c.resolver.Resolve(ctx, r.EntityID, missing, evidence, tried)
	r.Variant = res.Variant
	r.Probes = res.Probes
	if res.Probes > 0 {
		hit := 0
		if res.Resolved() {
			hit = 1
		}
		r.Fetched += hit
		r.Failed += res.Probes - hit
	}
	add(res.Items)
	candidates = res.Candidates()
	c.opts.Progress.emit(Event{Kind: EventProbeResolved, RunID: r.RunID, EntityID: r.EntityID, Period: r.target(), Variant: res.Variant, Tasks: res.Probes})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Probe results were cached, so a second scan picks them up.
	var tasks []Task
	for _, p := range missing {
		found := false
		for _, v := range candidates {
			if items := c.lookup(ctx, r, p, v); len(items) > 0 {
				add(items)
				found = true
				break
			}
		}
		if found {
			continue
		}
		for _, v := range candidates {
			t := Task{EntityID: r.EntityID, Period: p, Variant: v}
			if !tried[t.attempt()] {
				tasks = append(tasks, t)
			}
		}
	}

	if len(tasks) > 0 {
		c.opts.Progress.emit(Event{Kind: EventFetchStarted, RunID: r.RunID, EntityID: r.EntityID, Period: r.target(), Variant: res.Variant, Tasks: len(tasks)})
		log.Info().Str("run_id", r.RunID).Str("entity", r.EntityID).Int("tasks", len(tasks)).Int("workers", c.opts.Workers).Msg("fetching statements")

		outcomes := runPool(ctx, c.opts.Workers, tasks, c.fetchAndCache)
		ok, failed := 0, 0
		for _, out := range outcomes {
			if !out.OK() {
				failed++
				log.Debug().Str("run_id", r.RunID).Str("task", out.Task.String()).AnErr("reason", out.Err).Msg("fetch yielded nothing")
				continue
			}
			ok++
			add(out.Items)
		}
		r.Fetched += ok
		r.Failed += failed
		c.opts.Progress.emit(Event{Kind: EventFetchCompleted, RunID: r.RunID, EntityID: r.EntityID, Period: r.target(), Variant: res.Variant, Tasks: len(tasks), Succeeded: ok, Failed: failed})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.Items = sortedItems(acc)
	log.Info().Str("run_id", r.RunID).Str("entity", r.EntityID).Int("items", len(r.Items)).Int("cache_hits", r.CacheHits).Int("fetched", r.Fetched).
		Int("failed", r.Failed).Msg("collection complete")
	return r, nil
}

// fetchAndCache fetches one statement and caches its tracked items right
// away. The returned outcome carries only tracked items.
func (c *Collector) fetchAndCache(ctx context.Context, t Task) Outcome {
	out := fetchOne(ctx, c.fetcher, c.opts.FetchTimeout, t)
	if !out.OK() {
		return out
	}
	saved, err := filing.SaveStatement(ctx, c.store, out.Items)
	if err != nil {
		log.Warn().Err(err).Str("task", t.String()).Msg("caching statement failed")
		saved = filing.FilterTracked(out.Items)
	}
	if len(saved) == 0 {
		return Outcome{Task: t, Err: fmt.Errorf("no tracked accounts in statement")}
	}
	return Outcome{Task: t, Items: saved}
}

// lookup treats a failing cache as a miss.
func (c *Collector) lookup(ctx context.Context, r *Result, p filing.ReportPeriod, v filing.Variant) []filing.LineItem {
	items, err := filing.LookupStatement(ctx, c.store, r.EntityID, p, v)
	if err != nil {
		log.Warn().Err(err).Str("run_id", r.RunID).Str("period", p.String()).Str("variant", v.String()).Msg("cache lookup failed")
		return nil
	}
	return items
}

func variantOf(candidates, evidence []filing.Variant) filing.Variant {
	if len(candidates) == 1 {
		return candidates[0]
	}
	if slices.Contains(evidence, filing.Separate) {
		return filing.Separate
	}
	return 0
}

func sortedItems(acc map[filing.CacheKey]filing.LineItem) []filing.LineItem {
	items := make([]filing.LineItem, 0, len(acc))
	for _, it := range acc {
		items = append(items, it)
	}
	slices.SortFunc(items, func(a, b filing.LineItem) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		if a.Variant != b.Variant {
			return int(a.Variant) - int(b.Variant)
		}
		switch {
		case a.AccountKey < b.AccountKey:
			return -1
		case a.AccountKey > b.AccountKey:
			return 1
		}
		return 0
	})
	return items
}

func (r *Result) target() filing.ReportPeriod {
	return r.Periods[len(r.Periods)-1]
}
