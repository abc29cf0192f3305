package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the hosted model used for recommendations
	DefaultModel = "gemini-2.0-flash-lite"
	// DefaultTemperature keeps answers close to the retrieved catalog text
	DefaultTemperature = 0.2
	// DefaultTimeout bounds a single generation call
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrNoAPIKey is returned when the generator has no credential
	ErrNoAPIKey = errors.New("gemini API key not set")
	// ErrEmptyPrompt is returned for blank prompts
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// Config configures a GeminiGenerator
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	BaseURL     string // Overrides the API endpoint, used by tests
	Timeout     time.Duration
}

// GeminiGenerator completes prompts with the Gemini API.
// Calls are never retried.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGeminiGenerator creates a generator from cfg
func NewGeminiGenerator(ctx context.Context, cfg Config) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// Generate sends prompt as a single user turn and returns the response text
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return text, nil
}

// Model returns the configured model name
func (g *GeminiGenerator) Model() string {
	return g.model
}
