package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/assessment-recommender/internal/chunker"
	"github.com/dshills/assessment-recommender/internal/embedder"
	"github.com/dshills/assessment-recommender/internal/storage"
	"github.com/dshills/assessment-recommender/pkg/types"
)

// ErrNoChunks is returned when a source yields nothing to index
var ErrNoChunks = errors.New("source produced no chunks")

// Indexer coordinates the build pipeline: chunk -> store -> embed
type Indexer struct {
	chunker  *chunker.Chunker
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *zap.Logger

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int  // Concurrent embedding batches (default: runtime.NumCPU())
	BatchSize int  // Texts per embedding call (default: embedder.DefaultBatchSize)
	Force     bool // Rebuild even when the source hash is unchanged
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	DocumentsIndexed    int
	DocumentsSkipped    int
	ChunksCreated       int
	EmbeddingsGenerated int
	Duration            time.Duration
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		chunker:  chunker.New(),
		storage:  store,
		embedder: emb,
		logger:   logger,
		workers:  runtime.NumCPU(),
	}
}

// IndexSource chunks a markdown source, stores its chunks and embeds them.
// An unchanged source is skipped unless config.Force is set.
func (idx *Indexer) IndexSource(ctx context.Context, sourcePath string, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 || config.BatchSize > embedder.MaxBatchSize {
		config.BatchSize = embedder.DefaultBatchSize
	}
	idx.workers = config.Workers

	startTime := time.Now()
	stats := &Statistics{}

	hash, sizeBytes, err := computeFileHash(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	if !config.Force {
		existing, err := idx.storage.GetDocument(ctx, sourcePath)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if existing != nil && existing.ContentHash == hash {
			idx.logger.Info("source unchanged, skipping", zap.String("source", sourcePath))
			stats.DocumentsSkipped = 1
			stats.Duration = time.Since(startTime)
			return stats, nil
		}
	}

	chunks, err := idx.chunker.ChunkFile(sourcePath, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk source: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, sourcePath)
	}

	doc := &storage.Document{
		Path:       sourcePath,
		SizeBytes:  sizeBytes,
		ChunkCount: len(chunks),
	}
	stored, err := idx.storeChunks(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}
	stats.ChunksCreated = len(stored)

	embedded, err := idx.embedChunks(ctx, stored, config.BatchSize)
	if err != nil {
		return nil, err
	}
	stats.EmbeddingsGenerated = embedded

	// Record the real hash only once every chunk has a vector, so an
	// interrupted build is never mistaken for a complete one
	doc.ContentHash = hash
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to finalize document: %w", err)
	}

	stats.DocumentsIndexed = 1
	stats.Duration = time.Since(startTime)

	idx.logger.Info("index built",
		zap.String("source", sourcePath),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Int("embeddings", stats.EmbeddingsGenerated),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// storeChunks replaces the document's chunks in a single transaction
func (idx *Indexer) storeChunks(ctx context.Context, doc *storage.Document, chunks []*types.Chunk) ([]*storage.Chunk, error) {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.UpsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := tx.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("failed to delete old chunks: %w", err)
	}

	stored := make([]*storage.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		chunk.DocumentID = doc.ID
		if err := chunk.Validate(); err != nil {
			return nil, fmt.Errorf("chunk %d (lines %d-%d): %w", chunk.Ordinal, chunk.StartLine, chunk.EndLine, err)
		}
		sc := storage.FromTypesChunk(chunk)
		if err := tx.UpsertChunk(ctx, sc); err != nil {
			return nil, fmt.Errorf("failed to store chunk: %w", err)
		}
		stored = append(stored, sc)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, nil
}

// embedChunks generates embeddings in concurrent batches and writes each
// batch in its own transaction
func (idx *Indexer) embedChunks(ctx context.Context, chunks []*storage.Chunk, batchSize int) (int, error) {
	semaphore := make(chan struct{}, idx.workers)
	var embedded int32
	var writeMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]
		batchNum := i/batchSize + 1

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			texts := make([]string, len(batch))
			for j, c := range batch {
				texts[j] = c.ToTypesChunk().FullContent()
			}

			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("embedding batch %d: %w", batchNum, err)
			}

			writeMu.Lock()
			err = idx.writeEmbeddings(gctx, batch, resp.Embeddings)
			writeMu.Unlock()
			if err != nil {
				return fmt.Errorf("storing batch %d: %w", batchNum, err)
			}

			atomic.AddInt32(&embedded, int32(len(batch)))
			idx.logger.Debug("embedded batch", zap.Int("batch", batchNum), zap.Int("size", len(batch)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt32(&embedded)), err
	}
	return int(embedded), nil
}

func (idx *Indexer) writeEmbeddings(ctx context.Context, chunks []*storage.Chunk, embeddings []*embedder.Embedding) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, chunk := range chunks {
		emb := embeddings[i]
		record := &storage.Embedding{
			ChunkID:   chunk.ID,
			Vector:    storage.SerializeVector(emb.Vector),
			Dimension: len(emb.Vector),
			Provider:  emb.Provider,
			Model:     emb.Model,
		}
		if err := tx.UpsertEmbedding(ctx, record); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// computeFileHash computes SHA-256 hash of a file
func computeFileHash(filePath string) ([32]byte, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	n, err := io.Copy(hash, file)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))
	return result, n, nil
}
