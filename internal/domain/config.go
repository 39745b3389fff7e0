package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Scoring holds detector threshold overrides and similarity tuning.
	Scoring ScoringConfig `json:"scoring"`

	// Reasoning holds the LLM reasoning stage settings.
	Reasoning ReasoningConfig `json:"reasoning"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ScoringConfig tunes the deterministic scoring path. Thresholds overrides
// detector constants by key (e.g. "amount_high", "zscore_strong"); absent
// keys fall back to the built-in defaults.
type ScoringConfig struct {
	Thresholds map[string]float64 `json:"thresholds,omitempty"`

	// UnusualHours overrides the default {0..5} unusual-hour set.
	UnusualHours []int `json:"unusualHours,omitempty"`
}

// ReasoningConfig holds settings for the guarded LLM reasoning stage.
type ReasoningConfig struct {
	Enabled      bool `json:"enabled"`
	GuardEnabled bool `json:"guardEnabled"`

	// Endpoint is an OpenAI-compatible chat completions URL.
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKeyEnv string `json:"apiKeyEnv"` // env var holding the API key
	MaxTokens int    `json:"maxTokens"`

	// StageTimeout bounds the whole reasoning stage; it is capped below
	// ProviderTimeout so a hung provider call cannot outlive the stage.
	StageTimeout    time.Duration `json:"stageTimeout"`
	ProviderTimeout time.Duration `json:"providerTimeout"`

	MaxHTTPRetries    int `json:"maxHttpRetries"`
	MaxContentRetries int `json:"maxContentRetries"`

	// ConsistencyThreshold is the minimum consistency score for a hybrid
	// result; below it the reasoning output is rejected.
	ConsistencyThreshold float64 `json:"consistencyThreshold"`

	// GroundingThreshold is the minimum fraction of findings that must
	// trace back to deterministic evidence.
	GroundingThreshold float64 `json:"groundingThreshold"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier.
// Reasoning is off by default; the deterministic path needs no provider.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: ScoringConfig{},
		Reasoning: ReasoningConfig{
			Enabled:              false,
			GuardEnabled:         true,
			Model:                "gpt-4o-mini",
			MaxTokens:            1024,
			StageTimeout:         20 * time.Second,
			ProviderTimeout:      30 * time.Second,
			MaxHTTPRetries:       3,
			MaxContentRetries:    3,
			ConsistencyThreshold: 0.7,
			GroundingThreshold:   0.3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
