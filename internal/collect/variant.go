package collect

import (
	"context"
	"slices"
	"time"

	"github.com/phuslu/log"

	"github.com/TobiSchelling/dartq/internal/filing"
)

// Resolution is the outcome of variant discovery.
type Resolution struct {
	// Variant is zero when no evidence or probe settled the basis.
	Variant filing.Variant
	// FromCache is set when cached items decided the variant.
	FromCache bool
	// Probes counts remote fetches spent probing.
	Probes int
	// Items holds the tracked items of the confirming probe.
	Items []filing.LineItem
}

// Resolved reports whether a single variant was confirmed.
func (r Resolution) Resolved() bool {
	return r.Variant != 0
}

// Candidates returns the variants still to be fetched.
func (r Resolution) Candidates() []filing.Variant {
	if r.Resolved() {
		return []filing.Variant{r.Variant}
	}
	return filing.Variants
}

// VariantResolver decides whether an entity files consolidated or separate
// statements, spending as few remote calls as it can.
type VariantResolver struct {
	store     filing.CacheStore
	fetcher   filing.StatementFetcher
	timeout   time.Duration
	maxProbes int
}

// NewVariantResolver creates a resolver. maxProbePeriods caps how many
// periods are probed; zero means every missing period may be tried.
func NewVariantResolver(store filing.CacheStore, fetcher filing.StatementFetcher, timeout time.Duration, maxProbePeriods int) *VariantResolver {
	return &VariantResolver{store: store, fetcher: fetcher, timeout: timeout, maxProbes: maxProbePeriods}
}

// Resolve settles the variant for entityID. evidence lists the variants
// under which cached items were already found; any evidence decides without
// probing. Otherwise missing periods are probed newest first, consolidated
// before separate, until one returns data. Every probe is recorded in tried
// so the bulk phase never repeats it.
func (vr *VariantResolver) Resolve(ctx context.Context, entityID string, missing []filing.ReportPeriod, evidence []filing.Variant, tried map[attempt]bool) Resolution {
	if v, ok := fromEvidence(entityID, evidence); ok {
		return Resolution{Variant: v, FromCache: true}
	}

	order := slices.Clone(missing)
	slices.SortFunc(order, func(a, b filing.ReportPeriod) int {
		switch {
		case b.Before(a):
			return -1
		case a.Before(b):
			return 1
		}
		return 0
	})
	if vr.maxProbes > 0 && len(order) > vr.maxProbes {
		order = order[:vr.maxProbes]
	}

	var res Resolution
	for _, p := range order {
		for _, v := range filing.Variants {
			if ctx.Err() != nil {
				return res
			}
			t := Task{EntityID: entityID, Period: p, Variant: v}
			if tried[t.attempt()] {
				continue
			}
			tried[t.attempt()] = true
			res.Probes++

			out := fetchOne(ctx, vr.fetcher, vr.timeout, t)
			if !out.OK() {
				log.Debug().Str("task", t.String()).AnErr("reason", out.Err).Msg("probe found no data")
				continue
			}

			saved, err := filing.SaveStatement(ctx, vr.store, out.Items)
			if err != nil {
				log.Warn().Err(err).Str("task", t.String()).Msg("caching probe result failed")
				saved = filing.FilterTracked(out.Items)
			}
			res.Variant = v
			res.Items = saved
			log.Info().Str("entity", entityID).Str("period", p.String()).Str("variant", v.String()).
				Int("probes", res.Probes).Msg("variant confirmed by probe")
			return res
		}
	}

	log.Warn().Str("entity", entityID).Int("probes", res.Probes).Msg("variant unresolved; fetching both")
	return res
}

// fromEvidence picks the variant implied by cached items. Consolidated
// wins when both are present.
func fromEvidence(entityID string, evidence []filing.Variant) (filing.Variant, bool) {
	hasCons := slices.Contains(evidence, filing.Consolidated)
	hasSep := slices.Contains(evidence, filing.Separate)
	if hasCons && hasSep {
		log.Warn().Str("entity", entityID).Msg("cache holds both consolidated and separate statements; using consolidated")
	}
	switch {
	case hasCons:
		return filing.Consolidated, true
	case hasSep:
		return filing.Separate, true
	}
	return 0, false
}
