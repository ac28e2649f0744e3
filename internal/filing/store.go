package filing

import (
	"context"
	"fmt"
)

// CacheStore is a persistent keyed store of filed line items. Upsert must be
// safe for concurrent use and idempotent for identical content.
type CacheStore interface {
	Get(ctx context.Context, key CacheKey) (LineItem, bool, error)
	Upsert(ctx context.Context, item LineItem) error
}

// StatementFetcher retrieves one statement from the remote filings API.
// An empty result with a nil error means the API had nothing for that key.
type StatementFetcher interface {
	Fetch(ctx context.Context, entityID string, year int, kind ReportKind, variant Variant) ([]LineItem, error)
}

// NameResolver maps an entity name to its identifier. It returns
// ErrNotFound or an *AmbiguousError when no single entity matches.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// LookupStatement returns the cached tracked items for one period and
// variant. An empty result is a cache miss.
func LookupStatement(ctx context.Context, store CacheStore, entityID string, p ReportPeriod, v Variant) ([]LineItem, error) {
	var items []LineItem
	for _, account := range TrackedAccountKeys {
		key := CacheKey{EntityID: entityID, Year: p.Year, Kind: p.Kind, Variant: v, AccountKey: account}
		item, ok, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("cache get %s: %w", key, err)
		}
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// SaveStatement upserts the tracked subset of items and returns what was stored.
func SaveStatement(ctx context.Context, store CacheStore, items []LineItem) ([]LineItem, error) {
	tracked := FilterTracked(items)
	for _, it := range tracked {
		if err := store.Upsert(ctx, it); err != nil {
			return nil, fmt.Errorf("cache upsert %s: %w", it.Key(), err)
		}
	}
	return tracked, nil
}
