package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	if c.OpenAI.MaxConcurrent < 1 {
		errs = append(errs, fmt.Sprintf("OPENAI_MAX_CONCURRENT must be at least 1, got %d", c.OpenAI.MaxConcurrent))
	}
	if c.Retrieval.Dimensions < 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_DIMENSIONS must be positive, got %d", c.Retrieval.Dimensions))
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_MIN_SIMILARITY must be in [0,1], got %g", c.Retrieval.MinSimilarity))
	}
	if c.Retrieval.KeywordCap <= 0 || c.Retrieval.KeywordCap > 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_KEYWORD_CAP must be in (0,1], got %g", c.Retrieval.KeywordCap))
	}

	// Missing API key is survivable: retrieval degrades to keyword/direct and
	// chat turns fail over to the unavailable condition. Warn only.
	if c.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is empty — model and embedding calls will fail")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
