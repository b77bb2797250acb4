package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidKeyLength  = errors.New("encryption key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
)

var (
	cachedKey []byte
	keyOnce   sync.Once
	keyErr    error
)

// getMasterKey retrieves the root key material from the environment. The
// key must be exactly 32 bytes; it is never used directly to seal
// anything — Encrypt/Decrypt always derive a per-provider subkey from it
// (see deriveProviderKey). Cached after first load for performance.
func getMasterKey() ([]byte, error) {
	keyOnce.Do(func() {
		key := os.Getenv("ENGINE_ENCRYPTION_KEY")
		if key == "" {
			keyErr = errors.New("ENGINE_ENCRYPTION_KEY environment variable not set")
			return
		}

		keyBytes := []byte(key)
		if len(keyBytes) != 32 {
			keyErr = fmt.Errorf("%w: got %d bytes, need 32", ErrInvalidKeyLength, len(keyBytes))
			return
		}

		cachedKey = keyBytes
	})

	return cachedKey, keyErr
}

// deriveProviderKey derives a 32-byte AES-256 key scoped to provider from
// the master key via HKDF-SHA256, so that provider_credentials rows for
// different providers (reddit_scraper, llm_gemini, ...) are never sealed
// under the same key bytes. A leaked derived key for one provider carries
// no information about another provider's key, and rotating a single
// provider's credential scheme (info string) re-keys only that row class.
func deriveProviderKey(provider string) ([]byte, error) {
	master, err := getMasterKey()
	if err != nil {
		return nil, err
	}

	subkey := make([]byte, 32)
	r := hkdf.New(sha256.New, master, nil, []byte("leadsignal-credential:"+provider))
	if _, err := io.ReadFull(r, subkey); err != nil {
		return nil, fmt.Errorf("derive key for provider %q: %w", provider, err)
	}
	return subkey, nil
}

// Encrypt seals plaintext with AES-GCM under a key derived for provider and
// returns base64-encoded ciphertext.
// Note: Always encrypts, even empty strings. Use NULL in DB to represent "not set".
func Encrypt(provider, plaintext string) (string, error) {
	key, err := deriveProviderKey(provider)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens base64-encoded ciphertext with AES-GCM under the key
// derived for provider. provider must match the value Encrypt was called
// with, or GCM authentication fails.
// Note: Empty ciphertext is invalid and returns error. Use NULL in DB for "not set".
func Decrypt(provider, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", errors.New("cannot decrypt empty string, expected NULL in DB")
	}

	key, err := deriveProviderKey(provider)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
