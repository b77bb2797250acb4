// Package llm adapts chat-completion providers to the one capability the
// pipeline needs: given a system and user prompt, return text that parses
// to a JSON object. Retries happen inside each client; callers never see a
// raw transport error on a transient failure.
package llm

import (
	"context"
	"fmt"

	"github.com/cheolwanpark/leadsignal/engine/internal/config"
	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

// Client is the LLMClient interface: synchronous chat completion with
// JSON-shaped output; each implementation retries transient failures
// inside GenerateJSON.
type Client interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	ProviderKind() db.APIKind
}

// Factory builds the configured LLM Client variant, keyed on
// config.LLMProvider ("gemini" or "openai").
func Factory(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return NewGeminiClient(ctx, cfg.GeminiAPIKey)
	case "openai":
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
