// Package badger implements the line-item cache on an embedded Badger KV store.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/TobiSchelling/dartq/internal/filing"
)

// maxConflictRetries bounds retries of an upsert that lost a transaction race.
const maxConflictRetries = 5

// record is the stored form of a filing.LineItem.
type record struct {
	EntityID     string
	Year         int
	Quarter      int
	ReportCode   string
	FSDiv        string
	AccountKey   string
	AccountLabel string
	Amount       *int64
}

// Store is a filing.CacheStore backed by badgerhold.
type Store struct {
	store *badgerhold.Store
}

var _ filing.CacheStore = (*Store)(nil)

// Open opens or creates a Badger store in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}
	return open(badgerdb.DefaultOptions(dir))
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open(badgerdb.DefaultOptions("").WithInMemory(true))
}

func open(opts badgerdb.Options) (*Store, error) {
	options := badgerhold.DefaultOptions
	options.Options = opts.WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{store: store}, nil
}

// Get returns the cached line item for key.
func (s *Store) Get(_ context.Context, key filing.CacheKey) (filing.LineItem, bool, error) {
	var rec record
	err := s.store.Get(key.String(), &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return filing.LineItem{}, false, nil
	}
	if err != nil {
		return filing.LineItem{}, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return filing.LineItem{
		EntityID:     key.EntityID,
		Year:         key.Year,
		Kind:         key.Kind,
		Variant:      key.Variant,
		AccountKey:   key.AccountKey,
		AccountLabel: rec.AccountLabel,
		Amount:       rec.Amount,
	}, true, nil
}

// Upsert stores item under its cache key.
func (s *Store) Upsert(ctx context.Context, item filing.LineItem) error {
	key := item.Key()
	rec := record{
		EntityID:     item.EntityID,
		Year:         item.Year,
		Quarter:      item.Kind.Quarter(),
		ReportCode:   item.Kind.Code(),
		FSDiv:        item.Variant.Code(),
		AccountKey:   item.AccountKey,
		AccountLabel: item.AccountLabel,
		Amount:       item.Amount,
	}

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.store.Upsert(key.String(), &rec)
		if !errors.Is(err, badgerdb.ErrConflict) {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}
	return nil
}

// Count returns the number of cached line items for an entity.
func (s *Store) Count(ctx context.Context, entityID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.store.Count(&record{}, badgerhold.Where("EntityID").Eq(entityID))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", entityID, err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.store.Close()
}
