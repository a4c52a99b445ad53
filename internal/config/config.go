package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig
	DB          DBConfig
	Redis       RedisConfig
	NATS        NATSConfig
	JWT         JWTConfig
	OpenAI      OpenAIConfig
	Retrieval   RetrievalConfig
	Session     SessionConfig
	Maintenance MaintenanceConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type JWTConfig struct {
	AccessSecret string
}

// OpenAIConfig covers both the chat-completion and the embedding provider.
// MaxConcurrent bounds simultaneous outbound model calls process-wide.
type OpenAIConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration
	MaxConcurrent  int
}

// RetrievalConfig holds the hybrid-search tunables. The floors and boosts are
// empirically chosen; treat them as knobs, not guarantees.
type RetrievalConfig struct {
	Dimensions     int
	TimeWindowDays int
	MaxResults     int
	MinSimilarity  float64
	SemanticFloor  float64
	KeywordFloor   float64
	KeywordCap     float64
	DirectFloor    float64
	TopicFloor     float64
	TopicWindow    int
}

type SessionConfig struct {
	MaxMessages int
	TTL         time.Duration
}

type MaintenanceConfig struct {
	RetentionDays int
	Interval      time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         k.String("openai.api.key"),
			Model:          k.String("openai.model"),
			EmbeddingModel: k.String("openai.embedding.model"),
			Temperature:    float32(k.Float64("openai.temperature")),
			MaxTokens:      k.Int("openai.max.tokens"),
			MaxConcurrent:  k.Int("openai.max.concurrent"),
		},
		Retrieval: RetrievalConfig{
			Dimensions:     k.Int("retrieval.dimensions"),
			TimeWindowDays: k.Int("retrieval.time.window.days"),
			MaxResults:     k.Int("retrieval.max.results"),
			MinSimilarity:  k.Float64("retrieval.min.similarity"),
			SemanticFloor:  k.Float64("retrieval.semantic.floor"),
			KeywordFloor:   k.Float64("retrieval.keyword.floor"),
			KeywordCap:     k.Float64("retrieval.keyword.cap"),
			DirectFloor:    k.Float64("retrieval.direct.floor"),
			TopicFloor:     k.Float64("retrieval.topic.floor"),
			TopicWindow:    k.Int("retrieval.topic.window.days"),
		},
		Session: SessionConfig{
			MaxMessages: k.Int("session.max.messages"),
		},
		Maintenance: MaintenanceConfig{
			RetentionDays: k.Int("maintenance.retention.days"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	applyDefaults(cfg)

	// Parse durations
	cfg.OpenAI.Timeout, err = parseDuration(k, "openai.timeout", "30s")
	if err != nil {
		return nil, err
	}
	cfg.Session.TTL, err = parseDuration(k, "session.ttl", "1h")
	if err != nil {
		return nil, err
	}
	cfg.Maintenance.Interval, err = parseDuration(k, "maintenance.interval", "168h")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "fitcoach"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "fitcoach"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.7
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 1000
	}
	if cfg.OpenAI.MaxConcurrent == 0 {
		cfg.OpenAI.MaxConcurrent = 5
	}
	if cfg.Retrieval.Dimensions == 0 {
		cfg.Retrieval.Dimensions = 1536
	}
	if cfg.Retrieval.TimeWindowDays == 0 {
		cfg.Retrieval.TimeWindowDays = 30
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = 3
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.4
	}
	if cfg.Retrieval.SemanticFloor == 0 {
		cfg.Retrieval.SemanticFloor = 0.3
	}
	if cfg.Retrieval.KeywordFloor == 0 {
		cfg.Retrieval.KeywordFloor = 0.3
	}
	if cfg.Retrieval.KeywordCap == 0 {
		cfg.Retrieval.KeywordCap = 0.9
	}
	if cfg.Retrieval.DirectFloor == 0 {
		cfg.Retrieval.DirectFloor = 0.3
	}
	if cfg.Retrieval.TopicFloor == 0 {
		cfg.Retrieval.TopicFloor = 0.2
	}
	if cfg.Retrieval.TopicWindow == 0 {
		cfg.Retrieval.TopicWindow = 90
	}
	if cfg.Session.MaxMessages == 0 {
		cfg.Session.MaxMessages = 20
	}
	if cfg.Maintenance.RetentionDays == 0 {
		cfg.Maintenance.RetentionDays = 90
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
