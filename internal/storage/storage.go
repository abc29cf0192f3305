package storage

import (
	"context"
	"time"

	"github.com/dshills/assessment-recommender/pkg/types"
	"github.com/goccy/go-json"
)

// Storage defines the interface for persisting and querying the catalog index
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, path string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, documentID int64) error

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	GetChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*Chunk, error)
	ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID int64) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*IndexStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Document represents an indexed markdown source file
type Document struct {
	ID            int64
	Path          string
	ContentHash   [32]byte
	SizeBytes     int64
	ChunkCount    int
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk represents a heading-delimited section stored for retrieval
type Chunk struct {
	ID          int64
	DocumentID  int64
	Ordinal     int
	Headings    []string
	Content     string
	ContentHash [32]byte
	TokenCount  int
	StartLine   int
	EndLine     int
	ChunkType   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// SearchFilters narrows search results
type SearchFilters struct {
	ChunkTypes    []string // Filter by chunk type (section, preamble)
	HeadingPrefix string   // Only chunks whose heading path starts with this
	MinRelevance  float64  // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64
}

// IndexStatus contains statistics about the index
type IndexStatus struct {
	DocumentsCount  int
	ChunksCount     int
	EmbeddingsCount int
	Provider        string
	Model           string
	Dimension       int
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}

// Loaded reports whether the index can answer retrieval queries
func (s *IndexStatus) Loaded() bool {
	return s != nil && s.ChunksCount > 0 && s.Health.EmbeddingsAvailable
}

// ToTypesChunk converts a storage Chunk to types.Chunk
func (c *Chunk) ToTypesChunk() *types.Chunk {
	return &types.Chunk{
		ID:          c.ID,
		DocumentID:  c.DocumentID,
		Ordinal:     c.Ordinal,
		Headings:    append([]string(nil), c.Headings...),
		Content:     c.Content,
		ContentHash: c.ContentHash,
		TokenCount:  c.TokenCount,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		ChunkType:   types.ChunkType(c.ChunkType),
	}
}

// FromTypesChunk converts types.Chunk to a storage Chunk
func FromTypesChunk(c *types.Chunk) *Chunk {
	return &Chunk{
		ID:          c.ID,
		DocumentID:  c.DocumentID,
		Ordinal:     c.Ordinal,
		Headings:    append([]string(nil), c.Headings...),
		Content:     c.Content,
		ContentHash: c.ContentHash,
		TokenCount:  c.TokenCount,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		ChunkType:   string(c.ChunkType),
	}
}

// encodeHeadings stores the heading list as a JSON array
func encodeHeadings(headings []string) string {
	if len(headings) == 0 {
		return "[]"
	}
	data, err := json.Marshal(headings)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeHeadings(raw string) []string {
	var headings []string
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &headings); err != nil {
		return nil
	}
	return headings
}
