package crypto

import (
	"sync"
	"testing"
)

func setupTestKey(t *testing.T) {
	t.Setenv("ENGINE_ENCRYPTION_KEY", "01234567890123456789012345678901"[:32])
	keyOnce = sync.Once{}
	cachedKey = nil
	keyErr = nil
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	setupTestKey(t)

	ciphertext, err := Encrypt("reddit_scraper", "super-secret-token")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	plaintext, err := Decrypt("reddit_scraper", ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plaintext != "super-secret-token" {
		t.Errorf("expected round-tripped plaintext, got %q", plaintext)
	}
}

func TestDecryptFailsUnderWrongProvider(t *testing.T) {
	setupTestKey(t)

	ciphertext, err := Encrypt("reddit_scraper", "super-secret-token")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := Decrypt("llm_gemini", ciphertext); err == nil {
		t.Error("expected decrypt under a different provider's derived key to fail GCM auth")
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	setupTestKey(t)

	ciphertext, err := Encrypt("reddit_scraper", "")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	plaintext, err := Decrypt("reddit_scraper", ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plaintext != "" {
		t.Errorf("expected empty round-tripped plaintext, got %q", plaintext)
	}
}

func TestDecryptRejectsEmptyCiphertext(t *testing.T) {
	setupTestKey(t)

	if _, err := Decrypt("reddit_scraper", ""); err == nil {
		t.Error("expected error decrypting empty ciphertext")
	}
}
