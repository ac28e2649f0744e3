// Package filingtest provides in-memory fakes of the filing interfaces.
package filingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/TobiSchelling/dartq/internal/filing"
)

// Store is an in-memory filing.CacheStore.
type Store struct {
	mu      sync.Mutex
	items   map[filing.CacheKey]filing.LineItem
	Upserts int
}

// NewStore returns a store preloaded with items.
func NewStore(items ...filing.LineItem) *Store {
	s := &Store{items: make(map[filing.CacheKey]filing.LineItem)}
	for _, it := range items {
		s.items[it.Key()] = it
	}
	return s
}

func (s *Store) Get(_ context.Context, key filing.CacheKey) (filing.LineItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	return it, ok, nil
}

func (s *Store) Upsert(_ context.Context, item filing.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Key()] = item
	s.Upserts++
	return nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Call records one Fetch invocation.
type Call struct {
	EntityID string
	Year     int
	Kind     filing.ReportKind
	Variant  filing.Variant
}

// Fetcher is a scripted filing.StatementFetcher. Statements not present in
// Data yield an empty result; keys in Fail return an error.
type Fetcher struct {
	mu    sync.Mutex
	Data  map[Call][]filing.LineItem
	Fail  map[Call]error
	calls []Call
}

// NewFetcher returns an empty scripted fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{Data: make(map[Call][]filing.LineItem), Fail: make(map[Call]error)}
}

// Add scripts a statement with the given revenue and operating income.
func (f *Fetcher) Add(entityID string, year int, kind filing.ReportKind, v filing.Variant, revenue, opIncome int64) {
	c := Call{EntityID: entityID, Year: year, Kind: kind, Variant: v}
	f.Data[c] = []filing.LineItem{
		Item(entityID, year, kind, v, filing.RevenueKey, revenue),
		Item(entityID, year, kind, v, filing.OperatingIncomeKey, opIncome),
		Item(entityID, year, kind, v, "ifrs-full_Assets", revenue*10),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, entityID string, year int, kind filing.ReportKind, v filing.Variant) ([]filing.LineItem, error) {
	c := Call{EntityID: entityID, Year: year, Kind: kind, Variant: v}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	items, fail := f.Data[c], f.Fail[c]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail != nil {
		return nil, fail
	}
	return append([]filing.LineItem(nil), items...), nil
}

// Calls returns a copy of every recorded call.
func (f *Fetcher) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsFor counts recorded calls under variant v.
func (f *Fetcher) CallsFor(v filing.Variant) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Variant == v {
			n++
		}
	}
	return n
}

// Item builds a line item with a non-nil amount.
func Item(entityID string, year int, kind filing.ReportKind, v filing.Variant, account string, amount int64) filing.LineItem {
	a := amount
	return filing.LineItem{
		EntityID:     entityID,
		Year:         year,
		Kind:         kind,
		Variant:      v,
		AccountKey:   account,
		AccountLabel: fmt.Sprintf("label:%s", account),
		Amount:       &a,
	}
}
