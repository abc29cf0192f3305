package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
}

// EmbeddingRequest represents a request to generate embeddings
type EmbeddingRequest struct {
	Text string
}

// BatchEmbeddingRequest represents a batch request
type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse represents a batch response
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder interface defines methods for generating embeddings
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts in one call
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Func adapts an Embedder to the single-text function signature used by
// vector stores that compute embeddings themselves.
func Func(e Embedder) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		emb, err := e.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		return emb.Vector, nil
	}
}

// Cache provides in-memory LRU caching of embeddings by content hash
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of an embedding from cache.
// Callers may mutate the returned vector freely.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	return cloneEmbedding(emb), true
}

// Set stores an embedding in cache with automatic LRU eviction
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, cloneEmbedding(emb))
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

func cloneEmbedding(emb *Embedding) *Embedding {
	out := *emb
	out.Vector = make([]float32, len(emb.Vector))
	copy(out.Vector, emb.Vector)
	return &out
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest validates a batch embedding request
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return nil
}

// batchFunc computes raw vectors for texts that missed the cache
type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// generateCached serves cached vectors and sends only misses to call.
// Results are returned in request order.
func generateCached(ctx context.Context, cache *Cache, provider, model string, texts []string, call batchFunc) ([]*Embedding, error) {
	out := make([]*Embedding, len(texts))
	hashes := make([]string, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		hashes[i] = ComputeHash(text)
		if cache != nil {
			if emb, ok := cache.Get(hashes[i]); ok {
				out[i] = emb
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := call(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrProviderFailed, len(missTexts), len(vectors))
	}

	for j, vec := range vectors {
		i := missIdx[j]
		emb := &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  provider,
			Model:     model,
			Hash:      hashes[i],
		}
		if cache != nil {
			cache.Set(emb.Hash, emb)
		}
		out[i] = emb
	}

	return out, nil
}
