package config

import (
	"time"
)

// Index backends
const (
	BackendSQLite  = "sqlite"
	BackendChromem = "chromem"
)

// Config is the complete application configuration
type Config struct {
	Embedding EmbeddingConfig `koanf:"embedding"`
	LLM       LLMConfig       `koanf:"llm"`
	Index     IndexConfig     `koanf:"index"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Scraper   ScraperConfig   `koanf:"scraper"`
	Server    ServerConfig    `koanf:"server"`
	Batch     BatchConfig     `koanf:"batch"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string        `koanf:"provider" validate:"required,oneof=huggingface gemini local"`
	Model     string        `koanf:"model"`
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url" validate:"omitempty,url"`
	Dimension int           `koanf:"dimension" validate:"min=1,max=4096"`
	CacheSize int           `koanf:"cache_size" validate:"min=1"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LLMConfig configures response generation
type LLMConfig struct {
	APIKey           string        `koanf:"api_key"`
	Model            string        `koanf:"model" validate:"required"`
	Temperature      float32       `koanf:"temperature" validate:"gte=0,lte=2"`
	SystemPromptPath string        `koanf:"system_prompt_path"`
	BaseURL          string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
}

// IndexConfig locates the knowledge base
type IndexConfig struct {
	Dir     string `koanf:"dir" validate:"required"`
	Backend string `koanf:"backend" validate:"required,oneof=sqlite chromem"`
	Source  string `koanf:"source" validate:"required"`
	Workers int    `koanf:"workers" validate:"min=0"`
}

// RetrievalConfig tunes the query pipeline
type RetrievalConfig struct {
	TopK int `koanf:"top_k" validate:"min=1,max=100"`
}

// ScraperConfig bounds outbound page fetches
type ScraperConfig struct {
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxBody  int64         `koanf:"max_body" validate:"min=1"`
	MaxChars int           `koanf:"max_chars" validate:"min=1"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	RateLimit       int           `koanf:"rate_limit" validate:"min=0"` // Requests per minute per IP, 0 disables
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// BatchConfig configures the evaluation client
type BatchConfig struct {
	APIURL      string        `koanf:"api_url" validate:"required,url"`
	Concurrency int           `koanf:"concurrency" validate:"min=1,max=64"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() Config {
	return Config{
		Embedding: EmbeddingConfig{
			Provider:  "huggingface",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			Dimension: 384,
			CacheSize: 10000,
			Timeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Model:            "gemini-2.0-flash-lite",
			Temperature:      0.2,
			SystemPromptPath: "sys2.md",
			Timeout:          60 * time.Second,
		},
		Index: IndexConfig{
			Dir:     "index",
			Backend: BackendSQLite,
			Source:  "data/shl-docs.md",
		},
		Retrieval: RetrievalConfig{
			TopK: 10,
		},
		Scraper: ScraperConfig{
			Timeout:  30 * time.Second,
			MaxBody:  2 << 20,
			MaxChars: 8000,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimit:       60,
			RequestTimeout:  120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Batch: BatchConfig{
			APIURL:      "https://rec-engine.onrender.com/recommend",
			Concurrency: 5,
			Timeout:     60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := defaultConfig()
	return &cfg
}

// EmbeddingAPIKey returns the credential for the configured embedding
// provider. The gemini provider falls back to the generation key.
func (c *Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey == "" && c.Embedding.Provider == "gemini" {
		return c.LLM.APIKey
	}
	return c.Embedding.APIKey
}
