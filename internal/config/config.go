// Package config loads the engine's environment-variable configuration
// surface and provides the encrypted provider-credential vault that backs
// it.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config is the whole engine's environment-derived configuration.
type Config struct {
	Port     int
	DBPath   string
	LogLevel string

	RedditAPIProvider string // "scraper" | "direct"
	ScraperHost       string
	ScraperActorID    string
	DirectAPIHost     string

	LLMProvider   string // "gemini" | "openai"
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	SESRegion    string
	SESAccessKey string
	SESSecretKey string
	SESFromAddr  string

	EnableScheduledPolling bool
	PollTimesStarter       []int
	PollTimesPremium       []int

	DefaultBatchSize        int
	MaxConcurrent           int
	MinRelevancyScore       int
	AutoSuggestionThreshold int
}

// LoadConfig loads and validates the configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:     getEnvAsInt("ENGINE_PORT", 8080),
		DBPath:   getEnv("ENGINE_DB_PATH", "/data/engine.db"),
		LogLevel: getEnv("ENGINE_LOG_LEVEL", "info"),

		RedditAPIProvider: getEnv("REDDIT_API_PROVIDER", "scraper"),
		ScraperHost:       getEnv("SCRAPER_HOST", ""),
		ScraperActorID:    getEnv("SCRAPER_ACTOR_ID", ""),
		DirectAPIHost:     getEnv("DIRECT_API_HOST", ""),

		LLMProvider:   getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		SESRegion:    getEnv("SES_REGION", "us-east-1"),
		SESAccessKey: getEnv("SES_ACCESS_KEY", ""),
		SESSecretKey: getEnv("SES_SECRET_KEY", ""),
		SESFromAddr:  getEnv("SES_FROM_ADDRESS", ""),

		EnableScheduledPolling: getEnvAsBool("ENABLE_SCHEDULED_POLLING", true),
		PollTimesStarter:       getEnvAsIntList("POLL_TIMES_STARTER", []int{7, 16}),
		PollTimesPremium:       getEnvAsIntList("POLL_TIMES_PREMIUM", []int{7, 11, 16, 22}),

		DefaultBatchSize:        getEnvAsInt("DEFAULT_BATCH_SIZE", 20),
		MaxConcurrent:           getEnvAsInt("MAX_CONCURRENT", 5),
		MinRelevancyScore:       getEnvAsInt("MIN_RELEVANCY_SCORE", 50),
		AutoSuggestionThreshold: getEnvAsInt("AUTO_SUGGESTION_THRESHOLD", 90),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the parts of the configuration that aren't credentials
// (those are optional at boot and validated lazily by CredentialStore.Get).
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("ENGINE_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("ENGINE_DB_PATH is required")
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("ENGINE_LOG_LEVEL must be one of [debug, info, warn, error], got '%s'", c.LogLevel)
	}
	if c.RedditAPIProvider != "scraper" && c.RedditAPIProvider != "direct" {
		return fmt.Errorf("REDDIT_API_PROVIDER must be 'scraper' or 'direct', got '%s'", c.RedditAPIProvider)
	}
	if c.LLMProvider != "gemini" && c.LLMProvider != "openai" {
		return fmt.Errorf("LLM_PROVIDER must be 'gemini' or 'openai', got '%s'", c.LLMProvider)
	}
	if c.DefaultBatchSize <= 0 {
		return fmt.Errorf("DEFAULT_BATCH_SIZE must be positive, got %d", c.DefaultBatchSize)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT must be positive, got %d", c.MaxConcurrent)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an integer or the default
// value. Logs a warning and returns default if the value cannot be parsed.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s=%s, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsBool returns the environment variable as a boolean or the default
// value. Accepts true/false, 1/0, yes/no, on/off (case-insensitive).
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(strings.TrimSpace(valueStr))
	switch valueStr {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		log.Printf("Warning: Invalid boolean for %s=%s, using default %v", key, valueStr, defaultValue)
		return defaultValue
	}
}

// getEnvAsIntList parses a comma-separated list of UTC hours, e.g.
// "7,11,16,22". Malformed entries are skipped with a warning; an empty or
// entirely-malformed value falls back to defaultValue.
func getEnvAsIntList(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Printf("Warning: invalid hour %q in %s, skipping", part, key)
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
