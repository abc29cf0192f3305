package chromemstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/philippgille/chromem-go"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/chunker"
	"github.com/dshills/assessment-recommender/internal/embedder"
	"github.com/dshills/assessment-recommender/pkg/types"
)

// CollectionName is the chromem collection holding catalog chunks
const CollectionName = "assessment-catalog"

const (
	metaHeadings = "headings"
	metaSource   = "source"
	metaOrdinal  = "ordinal"
	metaProvider = "provider"
	metaModel    = "model"

	defaultConcurrency = 4
)

// BuildStats reports the outcome of a Build
type BuildStats struct {
	ChunksCreated       int
	EmbeddingsGenerated int
	Duration            time.Duration
}

// Build chunks sourcePath, embeds every chunk and replaces the collection
// stored under dir. Vectors are computed up front so the collection never
// calls back into the embedder while loading.
func Build(ctx context.Context, dir, sourcePath string, emb embedder.Embedder, logger *zap.Logger) (*BuildStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	chunks, err := chunker.New().ChunkFile(sourcePath, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk %s: %w", sourcePath, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced from %s", sourcePath)
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db: %w", err)
	}
	if err := db.DeleteCollection(CollectionName); err != nil {
		return nil, fmt.Errorf("failed to drop old collection: %w", err)
	}
	collection, err := db.GetOrCreateCollection(CollectionName, nil, embedder.Func(emb))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, batch := range lo.Chunk(chunks, embedder.DefaultBatchSize) {
		texts := lo.Map(batch, func(c *types.Chunk, _ int) string { return c.FullContent() })
		resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		for i, c := range batch {
			headings, err := json.Marshal(c.Headings)
			if err != nil {
				return nil, fmt.Errorf("failed to encode headings: %w", err)
			}
			docs = append(docs, chromem.Document{
				ID: strconv.Itoa(c.Ordinal),
				Metadata: map[string]string{
					metaHeadings: string(headings),
					metaSource:   sourcePath,
					metaOrdinal:  strconv.Itoa(c.Ordinal),
					metaProvider: resp.Provider,
					metaModel:    resp.Model,
				},
				Embedding: resp.Embeddings[i].Vector,
				Content:   c.Content,
			})
		}
	}

	if err := collection.AddDocuments(ctx, docs, defaultConcurrency); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	stats := &BuildStats{
		ChunksCreated:       len(chunks),
		EmbeddingsGenerated: len(docs),
		Duration:            time.Since(start),
	}
	logger.Info("chromem index built",
		zap.String("dir", dir),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// Store answers retrieval queries from a persisted chromem collection
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embedder.Embedder
}

// Open loads the collection under dir. A missing collection is not an
// error; Retrieve reports types.ErrIndexNotLoaded instead.
func Open(dir string, emb embedder.Embedder) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db: %w", err)
	}
	return &Store{
		db:         db,
		collection: db.GetCollection(CollectionName, embedder.Func(emb)),
		embedder:   emb,
	}, nil
}

// Count returns the number of stored chunks
func (s *Store) Count() int {
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

// Retrieve returns the k chunks most similar to query
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	count := s.Count()
	if count == 0 {
		return nil, types.ErrIndexNotLoaded
	}
	if k <= 0 {
		return []types.SearchResult{}, nil
	}
	// chromem rejects requests for more results than documents
	k = min(k, count)

	found, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]types.SearchResult, 0, len(found))
	for i, r := range found {
		ordinal, _ := strconv.Atoi(r.Metadata[metaOrdinal])

		var headings []string
		if raw := r.Metadata[metaHeadings]; raw != "" {
			_ = json.Unmarshal([]byte(raw), &headings)
		}

		results = append(results, types.SearchResult{
			// Ordinals start at 0; chunk IDs must be positive
			ChunkID:        int64(ordinal) + 1,
			Rank:           i + 1,
			RelevanceScore: clampScore(float64(r.Similarity)),
			Headings:       headings,
			Content:        r.Content,
			Source:         r.Metadata[metaSource],
		})
	}
	return results, nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
