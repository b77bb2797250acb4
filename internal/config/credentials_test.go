package config

import (
	"testing"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Setenv("ENGINE_ENCRYPTION_KEY", "01234567890123456789012345678901"[:32])
	tmpFile := t.TempDir() + "/test.db"
	database, err := db.Init(tmpFile)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return database
}

func TestCredentialStoreFallsBackToEnvWhenNoRow(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	t.Setenv("SCRAPER_TOKEN", "env-token-value")

	store := NewCredentialStore(database.DB)
	v, err := store.Get("reddit_scraper")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "env-token-value" {
		t.Errorf("expected env fallback value, got %q", v)
	}
}

func TestCredentialStoreSetOverridesEnvFallback(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	t.Setenv("SCRAPER_TOKEN", "env-token-value")

	store := NewCredentialStore(database.DB)
	if err := store.Set("reddit_scraper", "db-token-value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, err := store.Get("reddit_scraper")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "db-token-value" {
		t.Errorf("expected DB-stored value to take precedence, got %q", v)
	}
}

func TestCredentialStoreUnknownProviderNoFallback(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewCredentialStore(database.DB)
	if _, err := store.Get("unknown_provider"); err == nil {
		t.Error("expected error for provider with no row and no env fallback")
	}
}
