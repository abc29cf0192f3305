package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	CacheSize int
	Timeout   time.Duration
}

// New creates an embedder with explicit configuration.
// An empty provider selects Hugging Face when a key is present and the
// local provider otherwise.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch DetectProvider(cfg) {
	case ProviderHuggingFace:
		return NewHuggingFaceProvider(cfg, cache)
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would construct for cfg
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(strings.TrimSpace(cfg.Provider))
	}
	if cfg.APIKey != "" {
		return ProviderHuggingFace
	}
	return ProviderLocal
}
