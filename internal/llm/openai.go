package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	backoff "github.com/cenkalti/backoff/v4"
	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Offline BPE loader avoids downloading encoding files at runtime,
	// required for containers without outbound internet access.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const (
	openaiModel          = "gpt-4o-mini"
	openaiRequestTimeout = 30 * time.Second
)

// OpenAIClient is the OpenAI-compatible variant of llm.Client: a raw
// chat-completions HTTP call, no SDK (none exists in the pack).
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIClient builds an OpenAI-compatible client against baseURL
// (defaulting to the public OpenAI API).
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: openaiRequestTimeout},
	}
}

// ProviderKind identifies the usage counter bucket for OpenAI calls.
func (c *OpenAIClient) ProviderKind() db.APIKind { return db.APIKindLLMOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// estimateTokenCount uses the cl100k_base encoding, compatible with most
// modern chat models, purely for local prompt-size bookkeeping.
func estimateTokenCount(text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Error("failed to get tiktoken encoding", "error", err)
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

// GenerateJSON issues one chat-completions call, retrying transient
// failures with exponential backoff, and returns sanitized JSON text.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	_ = estimateTokenCount(systemPrompt + userPrompt) // local bookkeeping only

	reqBody := chatCompletionRequest{
		Model: openaiModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var text string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("chat completion request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read chat completion response: %w", err)
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("chat completion returned %d: %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("chat completion returned %d: %s", resp.StatusCode, string(respBody)))
		}

		var parsed chatCompletionResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode chat completion response: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}

		text = sanitizeJSONResponse(parsed.Choices[0].Message.Content)
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", fmt.Errorf("chat completion exhausted retries: %w", err)
	}
	return text, nil
}
