package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/indexer"
	"github.com/dshills/assessment-recommender/internal/recommend"
	"github.com/dshills/assessment-recommender/internal/searcher"
	"github.com/dshills/assessment-recommender/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeSourceNotFound     = -32001 // Catalog source cannot be read
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Knowledge base not loaded
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeAnalysisFailed     = -32005 // Retrieval or generation failed
)

// handleRecommendAssessments handles the recommend_assessments tool invocation
func (s *Server) handleRecommendAssessments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	if s.recommender == nil {
		return nil, newMCPError(ErrorCodeInternalError, "recommendations are not configured", nil)
	}

	res, err := s.recommender.Recommend(ctx, query)
	if err != nil {
		return nil, recommendError(err)
	}

	response := map[string]interface{}{
		"recommended_assessments": res.Recommendations.RecommendedAssessments,
		"count":                   res.Recommendations.Len(),
		"retrieved_passages":      res.Retrieved,
		"raw_response":            res.Raw,
	}
	if len(res.ScrapedURLs) > 0 {
		response["scraped_urls"] = res.ScrapedURLs
		response["scrape_failures"] = res.ScrapeFailures
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// recommendError maps the orchestrator's error taxonomy onto MCP codes
func recommendError(err error) error {
	var analysisErr *recommend.AnalysisError
	switch {
	case errors.Is(err, recommend.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, recommend.UserMessage(err), nil)
	case errors.Is(err, recommend.ErrKnowledgeBaseNotLoaded):
		return newMCPError(ErrorCodeNotIndexed, recommend.UserMessage(err), map[string]interface{}{
			"hint": "run the index_catalog tool first",
		})
	case errors.As(err, &analysisErr):
		return newMCPError(ErrorCodeAnalysisFailed, recommend.UserMessage(err), map[string]interface{}{
			"stage": analysisErr.Stage,
		})
	default:
		return newMCPError(ErrorCodeInternalError, "recommendation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleSearchCatalog handles the search_catalog tool invocation
func (s *Server) handleSearchCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode, err := searcher.ParseSearchMode(getStringDefault(args, "search_mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   args["search_mode"],
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	var filters *storage.SearchFilters
	if raw, ok := args["filters"].(map[string]interface{}); ok {
		filters = &storage.SearchFilters{
			HeadingPrefix: getStringDefault(raw, "heading_prefix", ""),
			MinRelevance:  getFloatDefault(raw, "min_relevance", 0),
		}
		if filters.MinRelevance < 0 || filters.MinRelevance > 1 {
			return nil, newMCPError(ErrorCodeInvalidParams, "min_relevance must be between 0 and 1", map[string]interface{}{
				"param": "filters.min_relevance",
				"value": filters.MinRelevance,
			})
		}
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if !status.Loaded() {
		return nil, newMCPError(ErrorCodeNotIndexed, "Error: Knowledge base not loaded", map[string]interface{}{
			"hint": "run the index_catalog tool first",
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     mode,
		Filters:  filters,
		UseCache: true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":            r.Rank,
			"relevance_score": r.RelevanceScore,
			"headings":        r.Headings,
			"content":         r.Content,
			"source":          r.Source,
		})
	}

	response := map[string]interface{}{
		"results":       results,
		"total_results": resp.TotalResults,
		"search_mode":   string(resp.SearchMode),
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetIndexStatus handles the get_index_status tool invocation
func (s *Server) handleGetIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":              status.Loaded(),
		"indexing_in_progress": s.lock.Held(),
		"statistics": map[string]interface{}{
			"documents_count":  status.DocumentsCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
			"cached_searches":  s.searcher.CacheLen(),
		},
		"embedding": map[string]interface{}{
			"provider":  status.Provider,
			"model":     status.Model,
			"dimension": status.Dimension,
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
	}
	if source, since, ok := s.lock.Current(); ok {
		response["indexing_source"] = source
		response["indexing_since"] = since.Format(time.RFC3339)
	}
	if !status.LastIndexedAt.IsZero() {
		response["last_indexed_at"] = status.LastIndexedAt.Format(time.RFC3339)
	}
	if !status.Loaded() {
		response["message"] = "Knowledge base not loaded. Use the index_catalog tool to build it."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexCatalog handles the index_catalog tool invocation
func (s *Server) handleIndexCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	source := getStringDefault(args, "source", s.source)
	if err := validateSource(source); err != nil {
		return nil, newMCPError(ErrorCodeSourceNotFound, "invalid source", map[string]interface{}{
			"param":  "source",
			"value":  source,
			"reason": err.Error(),
		})
	}
	force := getBoolDefault(args, "force", false)

	if !s.lock.TryAcquire(source) {
		current, since, _ := s.lock.Current()
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"source":  current,
			"started": since.Format(time.RFC3339),
		})
	}
	defer s.lock.Release()

	stats, err := s.indexer.IndexSource(ctx, source, &indexer.Config{
		Workers: s.workers,
		Force:   force,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached searches may reference replaced chunk IDs
	s.searcher.InvalidateCache()

	s.logger.Info("catalog indexed via mcp",
		zap.String("source", source),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Bool("skipped", stats.DocumentsSkipped > 0))

	response := map[string]interface{}{
		"indexed":              true,
		"source":               source,
		"skipped_unchanged":    stats.DocumentsSkipped > 0,
		"chunks_created":       stats.ChunksCreated,
		"embeddings_generated": stats.EmbeddingsGenerated,
		"duration_ms":          stats.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateSource checks that a catalog path is an absolute, readable file
func validateSource(path string) error {
	if path == "" {
		return ErrSourceRequired
	}

	if !filepath.IsAbs(path) {
		return ErrSourceNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrSourceNotFound
	}
	if err != nil {
		return ErrSourceNotReadable
	}

	if info.IsDir() {
		return ErrSourceIsDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrSourceNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation errors

var (
	ErrSourceRequired    = errors.New("source is required")
	ErrSourceNotAbsolute = errors.New("source must be an absolute path")
	ErrSourceNotFound    = errors.New("source does not exist")
	ErrSourceNotReadable = errors.New("source is not readable")
	ErrSourceIsDirectory = errors.New("source is a directory")
)
