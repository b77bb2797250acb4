package config

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/cheolwanpark/leadsignal/engine/internal/crypto"
)

// envFallback maps a provider key to the environment variable consulted
// when no row exists yet in provider_credentials — first-boot convenience
// so an operator can seed credentials without touching the database.
var envFallback = map[string]string{
	"reddit_scraper": "SCRAPER_TOKEN",
	"reddit_direct":  "DIRECT_API_KEY",
}

// CredentialStore is the provider credential vault: AES-256-GCM sealed rows
// in provider_credentials, env var first-boot fallback, DB override once a
// row has been written via Set.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore wraps an existing database connection.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Get returns the plaintext credential for provider. Precedence: a row in
// provider_credentials decrypted via internal/crypto, falling back to the
// matching environment variable when no row exists.
func (c *CredentialStore) Get(provider string) (string, error) {
	var encrypted string
	err := c.db.QueryRow(`SELECT encrypted_value FROM provider_credentials WHERE provider = ?`, provider).Scan(&encrypted)
	switch {
	case err == sql.ErrNoRows:
		if envKey, ok := envFallback[provider]; ok {
			if v := os.Getenv(envKey); v != "" {
				return v, nil
			}
		}
		return "", fmt.Errorf("no credential set for provider %q", provider)
	case err != nil:
		return "", fmt.Errorf("load credential for %q: %w", provider, err)
	}

	plaintext, err := crypto.Decrypt(provider, encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt credential for %q: %w", provider, err)
	}
	return plaintext, nil
}

// Set encrypts and upserts a credential row, overriding any env var
// fallback from this point forward.
func (c *CredentialStore) Set(provider, plaintext string) error {
	encrypted, err := crypto.Encrypt(provider, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credential for %q: %w", provider, err)
	}
	_, err = c.db.Exec(`
		INSERT INTO provider_credentials (provider, encrypted_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			encrypted_value = excluded.encrypted_value,
			updated_at = excluded.updated_at
	`, provider, encrypted)
	if err != nil {
		return fmt.Errorf("store credential for %q: %w", provider, err)
	}
	return nil
}
