package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MilvusConfig holds the connection settings for the chunk vector index.
type MilvusConfig struct {
	Address    string `yaml:"address"`    // Milvus service address
	Collection string `yaml:"collection"` // collection holding chunk embeddings
}

// RedisConfig holds the connection settings for the session store backend.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig holds the connection settings for the document catalog.
type MySQLConfig struct {
	Address         string `yaml:"address"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// MongoConfig holds the connection settings for the chunk payload store.
type MongoConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// KafkaConfig holds the broker list for the stage-event publisher.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Enabled bool     `yaml:"enabled"`
}

// DatabaseConfigs groups every backing store the service talks to.
type DatabaseConfigs struct {
	Milvus  MilvusConfig `yaml:"milvus"`
	Redis   RedisConfig  `yaml:"redis"`
	MySQL   MySQLConfig  `yaml:"mysql"`
	MongoDB MongoConfig  `yaml:"mongodb"`
	Kafka   KafkaConfig  `yaml:"kafka"`
}

// ModelConfig describes one model endpoint for a provider.
type ModelConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL,omitempty"`
}

// LLMConfig selects the synthesis provider and its model settings.
type LLMConfig struct {
	Provider string      `yaml:"provider"` // "openai", "gemini" or "ollama"
	OpenAI   ModelConfig `yaml:"openai"`
	Gemini   ModelConfig `yaml:"gemini"`
	Ollama   ModelConfig `yaml:"ollama"`
}

// EmbeddingConfig selects the embedding provider and its model settings.
type EmbeddingConfig struct {
	Provider  string      `yaml:"provider"`
	OpenAI    ModelConfig `yaml:"openai"`
	Gemini    ModelConfig `yaml:"gemini"`
	Ollama    ModelConfig `yaml:"ollama"`
	CacheSize int         `yaml:"cacheSize"` // cached query embeddings; 0 disables the cache
	CacheTTL  string      `yaml:"cacheTTL"`  // e.g. "10m"
}

// RateLimiterConfig tunes the token-bucket limiter in front of the API.
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"`     // tokens per second
	Capacity int     `yaml:"capacity"` // burst size
}

// CircuitBreakerConfig tunes the breaker around the synthesis provider.
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // cool-down, e.g. "30s"
}

// MiddlewareConfig groups the protective layers around the service.
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RetrievalConfig tunes the iterative retriever and the analysis pipeline.
type RetrievalConfig struct {
	MaxRounds            int     `yaml:"maxRounds"`            // retrieval rounds per query (default 5)
	RelevanceFloor       float64 `yaml:"relevanceFloor"`       // marginal similarity cutoff
	ReservedOutputTokens int     `yaml:"reservedOutputTokens"` // tokens kept for the model answer
	SafetyMargin         float64 `yaml:"safetyMargin"`         // fraction of input window left unused
	SearchTimeout        string  `yaml:"searchTimeout"`        // per-round chunk store timeout, e.g. "3s"
	SynthesisTimeout     string  `yaml:"synthesisTimeout"`     // model call timeout, e.g. "60s"
	MaxContradictions    int     `yaml:"maxContradictions"`    // analyzer report cap (default 50)
}

// SessionConfig tunes session storage and eviction.
type SessionConfig struct {
	Backend     string `yaml:"backend"`     // "inmemory" or "redis"
	IdleTimeout string `yaml:"idleTimeout"` // e.g. "30m"; empty disables eviction
}

// AppInfo carries basic application identity.
type AppInfo struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggerConfig sets the log level.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig sets the HTTP listen address.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Session    SessionConfig    `yaml:"session"`
	Middleware MiddlewareConfig `yaml:"middleware"`
	Logger     LoggerConfig     `yaml:"logger"`
	Databases  DatabaseConfigs  `yaml:"databases"`
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Retrieval.MaxRounds == 0 {
		c.Retrieval.MaxRounds = 5
	}
	if c.Retrieval.RelevanceFloor == 0 {
		c.Retrieval.RelevanceFloor = 0.35
	}
	if c.Retrieval.ReservedOutputTokens == 0 {
		c.Retrieval.ReservedOutputTokens = 1500
	}
	if c.Retrieval.SafetyMargin == 0 {
		c.Retrieval.SafetyMargin = 0.1
	}
	if c.Retrieval.SearchTimeout == "" {
		c.Retrieval.SearchTimeout = "3s"
	}
	if c.Retrieval.SynthesisTimeout == "" {
		c.Retrieval.SynthesisTimeout = "60s"
	}
	if c.Retrieval.MaxContradictions == 0 {
		c.Retrieval.MaxContradictions = 50
	}
	if c.Embedding.CacheTTL == "" {
		c.Embedding.CacheTTL = "10m"
	}
	if c.Middleware.RateLimiter.Enabled {
		if c.Middleware.RateLimiter.Rate == 0 {
			c.Middleware.RateLimiter.Rate = 10
		}
		if c.Middleware.RateLimiter.Capacity == 0 {
			c.Middleware.RateLimiter.Capacity = 20
		}
	}
	if c.Middleware.CircuitBreaker.Enabled {
		if c.Middleware.CircuitBreaker.FailureThreshold == 0 {
			c.Middleware.CircuitBreaker.FailureThreshold = 5
		}
		if c.Middleware.CircuitBreaker.SuccessThreshold == 0 {
			c.Middleware.CircuitBreaker.SuccessThreshold = 2
		}
		if c.Middleware.CircuitBreaker.Timeout == "" {
			c.Middleware.CircuitBreaker.Timeout = "30s"
		}
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "inmemory"
	}
	if c.Session.IdleTimeout == "" {
		c.Session.IdleTimeout = "30m"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
}
