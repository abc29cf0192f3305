package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"google.golang.org/genai"
)

// Provider configuration
const (
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderLocal       = "local"

	// Default models
	DefaultHuggingFaceModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultGeminiModel      = "gemini-embedding-001"
	DefaultLocalModel       = "local-hashing"

	// DefaultHuggingFaceURL is the hosted inference router for feature extraction
	DefaultHuggingFaceURL = "https://router.huggingface.co/hf-inference/models"

	// Dimensions
	HuggingFaceDimension = 384
	GeminiDimension      = 768
	LocalDimension       = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	DefaultCacheSize = 10000
	DefaultTimeout   = 30 * time.Second
)

// HuggingFaceProvider implements Embedder using the Hugging Face inference API
type HuggingFaceProvider struct {
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewHuggingFaceProvider creates a new Hugging Face embedder
func NewHuggingFaceProvider(cfg Config, cache *Cache) (*HuggingFaceProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Hugging Face token not set", ErrNoProviderEnabled)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultHuggingFaceModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = HuggingFaceDimension
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HuggingFaceProvider{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
	}, nil
}

func (h *HuggingFaceProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := h.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (h *HuggingFaceProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := generateCached(ctx, h.cache, ProviderHuggingFace, h.model, req.Texts, h.callAPI)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderHuggingFace,
		Model:      h.model,
	}, nil
}

func (h *HuggingFaceProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"inputs": texts,
		"options": map[string]bool{
			"wait_for_model": true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/pipeline/feature-extraction", h.baseURL, h.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	// Sentence-transformer pipelines return one pooled vector per input
	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return vectors, nil
}

func (h *HuggingFaceProvider) Dimension() int {
	return h.dimension
}

func (h *HuggingFaceProvider) Provider() string {
	return ProviderHuggingFace
}

func (h *HuggingFaceProvider) Model() string {
	return h.model
}

func (h *HuggingFaceProvider) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

// GeminiProvider implements Embedder using the Gemini embedding API
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
	cache     *Cache
}

// NewGeminiProvider creates a new Gemini embedder
func NewGeminiProvider(ctx context.Context, cfg Config, cache *Cache) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key not set", ErrNoProviderEnabled)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = GeminiDimension
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

	return &GeminiProvider{
		client:    client,
		model:     model,
		dimension: dimension,
		cache:     cache,
	}, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := g.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := generateCached(ctx, g.cache, ProviderGemini, g.model, req.Texts, g.callAPI)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderGemini,
		Model:      g.model,
	}, nil
}

func (g *GeminiProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: genai.Ptr(int32(g.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (g *GeminiProvider) Dimension() int {
	return g.dimension
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	return nil
}

// LocalProvider embeds text with signed feature hashing over word tokens.
// It needs no network access and is deterministic, which makes it suitable
// for offline builds and tests. Similar wording yields similar vectors.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := l.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := generateCached(ctx, l.cache, ProviderLocal, l.model, req.Texts, func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			vectors[i] = hashVector(text, LocalDimension)
		}
		return vectors, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector folds lowercase word tokens into a fixed-size unit vector
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(dim))
		if sum&(1<<63) != 0 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}

	if len(tokens) == 0 {
		// Keep the vector non-zero so cosine similarity stays defined
		vector[0] = 1
	}

	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
