package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/TobiSchelling/dartq/internal/config"
	"github.com/TobiSchelling/dartq/internal/database"
	"github.com/TobiSchelling/dartq/internal/filing"
	"github.com/TobiSchelling/dartq/internal/filing/filingtest"
)

func TestOpenSQLite(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	defer db.Close()

	cfg := config.Default()
	store, err := Open(context.Background(), cfg, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item := filingtest.Item("00126380", 2025, filing.KindQ1, filing.Consolidated, filing.RevenueKey, 5)
	if err := store.Upsert(context.Background(), item); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n, err := store.Count(context.Background(), "00126380"); err != nil || n != 1 {
		t.Errorf("expected 1 cached item, got %d (err=%v)", n, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// The shared database must survive closing the store.
	if _, ok, err := db.Get(context.Background(), item.Key()); err != nil || !ok {
		t.Errorf("expected item through shared db, got ok=%v err=%v", ok, err)
	}
}

func TestOpenBadger(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "badger"
	cfg.Storage.DataDir = t.TempDir()

	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	item := filingtest.Item("00126380", 2025, filing.KindH1, filing.Separate, filing.RevenueKey, 9)
	if err := store.Upsert(context.Background(), item); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, ok, err := store.Get(context.Background(), item.Key()); err != nil || !ok {
		t.Errorf("expected hit, got ok=%v err=%v", ok, err)
	}
	if n, err := store.Count(context.Background(), "00126380"); err != nil || n != 1 {
		t.Errorf("expected 1 cached item, got %d (err=%v)", n, err)
	}
	if n, err := store.Count(context.Background(), "00164779"); err != nil || n != 0 {
		t.Errorf("expected no items for another entity, got %d (err=%v)", n, err)
	}
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "postgres"
	cfg.Storage.PostgresURLEnv = "DARTQ_UNSET_URL_FOR_TEST"
	t.Setenv("DARTQ_UNSET_URL_FOR_TEST", "")

	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Error("expected error without postgres url")
	}
}
