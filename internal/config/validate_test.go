package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "fitcoach",
			Password: "secret", Name: "fitcoach", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		JWT: JWTConfig{
			AccessSecret: "access-secret-that-is-at-least-32-chars!",
		},
		OpenAI: OpenAIConfig{
			APIKey: "sk-test", Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small",
			MaxConcurrent: 5, Timeout: 30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Dimensions: 1536, TimeWindowDays: 30, MaxResults: 3,
			MinSimilarity: 0.4, SemanticFloor: 0.3, KeywordFloor: 0.3,
			KeywordCap: 0.9, DirectFloor: 0.3, TopicFloor: 0.2, TopicWindow: 90,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_JWTSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT_ACCESS_SECRET error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_InvalidPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 99999
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected port validation errors")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected SERVER_PORT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PORT") {
		t.Errorf("expected DB_PORT error in: %v", err)
	}
}

func TestValidate_SimilarityOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.MinSimilarity = 1.5
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "RETRIEVAL_MIN_SIMILARITY") {
		t.Fatalf("expected RETRIEVAL_MIN_SIMILARITY error, got: %v", err)
	}
}

func TestValidate_MaxConcurrentAtLeastOne(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAI.MaxConcurrent = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_MAX_CONCURRENT") {
		t.Fatalf("expected OPENAI_MAX_CONCURRENT error, got: %v", err)
	}
}
