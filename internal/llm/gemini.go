package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"google.golang.org/genai"
	"google.golang.org/genai/tokenizer"
)

const (
	// tokenizerModel backs local token counting; the local tokenizer
	// doesn't support preview models so the stable release is used —
	// token counts are nearly identical between stable and preview variants.
	tokenizerModel = "gemini-2.5-flash"

	geminiModel         = "gemini-2.5-flash-preview-09-2025"
	geminiMaxRetries    = 3
	geminiBaseDelay     = 1 * time.Second
	geminiRequestTimeout = 30 * time.Second
)

// GeminiClient is the Gemini variant of llm.Client.
type GeminiClient struct {
	client    *genai.Client
	tokenizer *tokenizer.LocalTokenizer
}

// NewGeminiClient creates a Gemini-backed LLM client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	tok, err := tokenizer.NewLocalTokenizer(tokenizerModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}

	return &GeminiClient{client: client, tokenizer: tok}, nil
}

// ProviderKind identifies the usage counter bucket for Gemini calls.
func (c *GeminiClient) ProviderKind() db.APIKind { return db.APIKindLLMGemini }

// CountTokens counts tokens in a prompt without making an API call.
func (c *GeminiClient) CountTokens(prompt string) (int, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, "user")}
	result, err := c.tokenizer.CountTokens(contents, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return int(result.TotalTokens), nil
}

// GenerateJSON calls Gemini with retry and exponential backoff, returning
// the sanitized JSON text. Errors are only returned once every retry is
// exhausted; callers never see a bare transport error on a transient failure.
func (c *GeminiClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, "system")
	}

	var lastErr error
	for attempt := 0; attempt < geminiMaxRetries; attempt++ {
		if attempt > 0 {
			delay := geminiBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, geminiRequestTimeout)
		result, err := c.client.Models.GenerateContent(reqCtx, geminiModel, genai.Text(userPrompt), config)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("attempt %d: API call failed: %w", attempt+1, err)
			continue
		}

		text := result.Text()
		cancel()
		if text == "" {
			lastErr = fmt.Errorf("attempt %d: empty response from API", attempt+1)
			continue
		}

		return sanitizeJSONResponse(text), nil
	}

	slog.Error("gemini generation exhausted retries", "error", lastErr)
	return "", fmt.Errorf("all %d attempts failed: %w", geminiMaxRetries, lastErr)
}

// Close releases client resources (currently a no-op, genai.Client requires none).
func (c *GeminiClient) Close() error {
	return nil
}
