package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/indexer"
	"github.com/dshills/assessment-recommender/internal/recommend"
	"github.com/dshills/assessment-recommender/internal/searcher"
	"github.com/dshills/assessment-recommender/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "assessment-recommender"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Recommender answers a hiring query with parsed recommendations
type Recommender interface {
	Recommend(ctx context.Context, query string) (*recommend.Result, error)
}

// Deps are the application components the tools operate on. Storage,
// Indexer and Searcher must share one SQLite index.
type Deps struct {
	Recommender Recommender
	Storage     storage.Storage
	Indexer     *indexer.Indexer
	Searcher    *searcher.Searcher
	Source      string // Default catalog for index_catalog
	Workers     int
	Logger      *zap.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	recommender Recommender
	storage     storage.Storage
	indexer     *indexer.Indexer
	searcher    *searcher.Searcher
	source      string
	workers     int
	lock        indexer.IndexLock
	logger      *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Storage == nil || deps.Indexer == nil || deps.Searcher == nil {
		return nil, errors.New("mcp server requires storage, indexer and searcher")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		mcp:         server.NewMCPServer(ServerName, ServerVersion),
		recommender: deps.Recommender,
		storage:     deps.Storage,
		indexer:     deps.Indexer,
		searcher:    deps.Searcher,
		source:      deps.Source,
		workers:     deps.Workers,
		logger:      deps.Logger,
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(recommendAssessmentsTool(), s.handleRecommendAssessments)
	s.mcp.AddTool(searchCatalogTool(), s.handleSearchCatalog)
	s.mcp.AddTool(getIndexStatusTool(), s.handleGetIndexStatus)
	s.mcp.AddTool(indexCatalogTool(), s.handleIndexCatalog)
}
