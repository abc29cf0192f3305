package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/assessment-recommender/internal/embedder"
	"github.com/dshills/assessment-recommender/internal/indexer"
	"github.com/dshills/assessment-recommender/internal/recommend"
	"github.com/dshills/assessment-recommender/internal/searcher"
	"github.com/dshills/assessment-recommender/internal/storage"
)

const catalog = `# Individual Test Solutions

## Java 8 (New)

Multi-choice test that measures the knowledge of Java class design.

## Verify Numerical Ability

Numerical reasoning with charts and tables.

# Pre-packaged Job Solutions

## Account Manager Solution

Sales focused bundle for account managers.
`

const modelOutput = `<result>{"recommended_assessments":[{"url":"https://www.shl.com/java","name":"Java 8 (New)","adaptive_support":"No","description":"Java","duration":18,"remote_support":"Yes","test_type":["Knowledge & Skills"]}]}</result>`

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return modelOutput, nil
}

// ToolsTestSuite exercises the tool handlers against an in-memory index
type ToolsTestSuite struct {
	suite.Suite
	ctx       context.Context
	server    *Server
	store     storage.Storage
	generator *stubGenerator
	source    string
}

func (s *ToolsTestSuite) SetupTest() {
	s.ctx = context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.store = store

	emb, err := embedder.NewLocalProvider(embedder.NewCache(100))
	s.Require().NoError(err)

	s.source = filepath.Join(s.T().TempDir(), "catalog.md")
	s.Require().NoError(os.WriteFile(s.source, []byte(catalog), 0644))

	srch := searcher.NewSearcher(store, emb)
	s.generator = &stubGenerator{}
	orch := recommend.NewOrchestrator(srch, s.generator, nil, recommend.Options{SystemPrompt: "system"})

	server, err := NewServer(Deps{
		Recommender: orch,
		Storage:     store,
		Indexer:     indexer.New(store, emb, nil),
		Searcher:    srch,
		Source:      s.source,
		Workers:     2,
	})
	s.Require().NoError(err)
	s.server = server
}

func (s *ToolsTestSuite) TearDownTest() {
	_ = s.store.Close()
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// decode extracts the JSON payload from a text tool result
func (s *ToolsTestSuite) decode(result *mcp.CallToolResult) map[string]interface{} {
	s.Require().NotNil(result)
	s.Require().Len(result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	s.Require().True(ok, "expected text content")

	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal([]byte(text.Text), &out))
	return out
}

func (s *ToolsTestSuite) requireCode(err error, code int) {
	var mcpErr *MCPError
	s.Require().True(errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	s.Equal(code, mcpErr.Code)
}

func (s *ToolsTestSuite) index() {
	_, err := s.server.handleIndexCatalog(s.ctx, call("index_catalog", map[string]interface{}{}))
	s.Require().NoError(err)
}

func (s *ToolsTestSuite) TestNewServer_RequiresComponents() {
	_, err := NewServer(Deps{})
	s.Error(err)
}

func (s *ToolsTestSuite) TestGetIndexStatus_Empty() {
	result, err := s.server.handleGetIndexStatus(s.ctx, call("get_index_status", nil))
	s.Require().NoError(err)

	out := s.decode(result)
	s.Equal(false, out["indexed"])
	s.Contains(out["message"], "index_catalog")
}

func (s *ToolsTestSuite) TestIndexCatalog() {
	result, err := s.server.handleIndexCatalog(s.ctx, call("index_catalog", map[string]interface{}{}))
	s.Require().NoError(err)

	out := s.decode(result)
	s.Equal(true, out["indexed"])
	s.Equal(s.source, out["source"])
	s.Equal(float64(3), out["chunks_created"])
	s.Equal(false, out["skipped_unchanged"])

	// Unchanged source is skipped unless forced
	result, err = s.server.handleIndexCatalog(s.ctx, call("index_catalog", map[string]interface{}{}))
	s.Require().NoError(err)
	s.Equal(true, s.decode(result)["skipped_unchanged"])

	result, err = s.server.handleIndexCatalog(s.ctx, call("index_catalog", map[string]interface{}{"force": true}))
	s.Require().NoError(err)
	s.Equal(false, s.decode(result)["skipped_unchanged"])

	status, err := s.server.handleGetIndexStatus(s.ctx, call("get_index_status", nil))
	s.Require().NoError(err)
	statusOut := s.decode(status)
	s.Equal(true, statusOut["indexed"])
	stats := statusOut["statistics"].(map[string]interface{})
	s.Equal(float64(3), stats["chunks_count"])
}

func (s *ToolsTestSuite) TestIndexCatalog_InvalidSource() {
	tests := map[string]string{
		"relative":  "catalog.md",
		"missing":   filepath.Join(s.T().TempDir(), "missing.md"),
		"directory": s.T().TempDir(),
	}
	for name, source := range tests {
		_, err := s.server.handleIndexCatalog(s.ctx, call("index_catalog", map[string]interface{}{"source": source}))
		s.requireCode(err, ErrorCodeSourceNotFound)
		s.T().Log(name)
	}
}

func (s *ToolsTestSuite) TestIndexCatalog_InProgress() {
	s.Require().True(s.server.lock.TryAcquire(s.source))
	defer s.server.lock.Release()

	_, err := s.server.handleIndexCatalog(s.ctx, call("index_catalog", nil))
	s.requireCode(err, ErrorCodeIndexingInProgress)

	result, err := s.server.handleGetIndexStatus(s.ctx, call("get_index_status", nil))
	s.Require().NoError(err)
	status := s.decode(result)
	s.Equal(true, status["indexing_in_progress"])
	s.Equal(s.source, status["indexing_source"])
}

func (s *ToolsTestSuite) TestIndexCatalog_PurgesSearchCache() {
	s.index()

	_, err := s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{"query": "java"}))
	s.Require().NoError(err)
	s.Equal(1, s.server.searcher.CacheLen())

	_, err = s.server.handleIndexCatalog(s.ctx, call("index_catalog", map[string]interface{}{"force": true}))
	s.Require().NoError(err)
	s.Equal(0, s.server.searcher.CacheLen())
}

func (s *ToolsTestSuite) TestSearchCatalog() {
	s.index()

	result, err := s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{
		"query":       "Java class design",
		"limit":       float64(2),
		"search_mode": "keyword",
	}))
	s.Require().NoError(err)

	out := s.decode(result)
	s.Equal("keyword", out["search_mode"])
	results := out["results"].([]interface{})
	s.Require().NotEmpty(results)
	s.LessOrEqual(len(results), 2)
	first := results[0].(map[string]interface{})
	s.Equal(float64(1), first["rank"])
	s.Contains(first["headings"], "Java 8 (New)")
}

func (s *ToolsTestSuite) TestSearchCatalog_HeadingFilter() {
	s.index()

	result, err := s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{
		"query":       "bundle test reasoning",
		"search_mode": "vector",
		"filters":     map[string]interface{}{"heading_prefix": "Pre-packaged Job Solutions"},
	}))
	s.Require().NoError(err)

	for _, r := range s.decode(result)["results"].([]interface{}) {
		headings := r.(map[string]interface{})["headings"].([]interface{})
		s.Equal("Pre-packaged Job Solutions", headings[0])
	}
}

func (s *ToolsTestSuite) TestSearchCatalog_Validation() {
	s.index()

	_, err := s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{}))
	s.requireCode(err, ErrorCodeEmptyQuery)

	_, err = s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{"query": "java", "limit": float64(500)}))
	s.requireCode(err, ErrorCodeInvalidParams)

	_, err = s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{"query": "java", "search_mode": "fuzzy"}))
	s.requireCode(err, ErrorCodeInvalidParams)

	_, err = s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{
		"query":   "java",
		"filters": map[string]interface{}{"min_relevance": float64(2)},
	}))
	s.requireCode(err, ErrorCodeInvalidParams)

	_, err = s.server.handleSearchCatalog(s.ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: "nope"}})
	s.requireCode(err, ErrorCodeInvalidParams)
}

func (s *ToolsTestSuite) TestSearchCatalog_NotIndexed() {
	_, err := s.server.handleSearchCatalog(s.ctx, call("search_catalog", map[string]interface{}{"query": "java"}))
	s.requireCode(err, ErrorCodeNotIndexed)
}

func (s *ToolsTestSuite) TestRecommendAssessments() {
	s.index()

	result, err := s.server.handleRecommendAssessments(s.ctx, call("recommend_assessments", map[string]interface{}{
		"query": "Java developer, 40 minutes",
	}))
	s.Require().NoError(err)

	out := s.decode(result)
	s.Equal(float64(1), out["count"])
	s.Equal(modelOutput, out["raw_response"])
	recs := out["recommended_assessments"].([]interface{})
	s.Equal("Java 8 (New)", recs[0].(map[string]interface{})["name"])
	s.Greater(out["retrieved_passages"], float64(0))

	s.Require().Len(s.generator.prompts, 1)
	s.Contains(s.generator.prompts[0], "Java 8 (New)")
}

func (s *ToolsTestSuite) TestRecommendAssessments_Errors() {
	_, err := s.server.handleRecommendAssessments(s.ctx, call("recommend_assessments", map[string]interface{}{"query": ""}))
	s.requireCode(err, ErrorCodeEmptyQuery)

	_, err = s.server.handleRecommendAssessments(s.ctx, call("recommend_assessments", map[string]interface{}{"query": "java"}))
	s.requireCode(err, ErrorCodeNotIndexed)

	s.index()
	s.generator.err = errors.New("quota exceeded")
	_, err = s.server.handleRecommendAssessments(s.ctx, call("recommend_assessments", map[string]interface{}{"query": "java"}))
	s.requireCode(err, ErrorCodeAnalysisFailed)
}

func TestToolsTestSuite(t *testing.T) {
	suite.Run(t, new(ToolsTestSuite))
}
