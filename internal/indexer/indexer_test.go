package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/assessment-recommender/internal/embedder"
	"github.com/dshills/assessment-recommender/internal/storage"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension        int
	generateBatchErr error
	callCount        int
	batchSizes       []int
	mu               sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 8}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	resp, err := m.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generateBatchErr != nil {
		return nil, m.generateBatchErr
	}

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		vector := make([]float32, m.dimension)
		vector[len(text)%m.dimension] = 1
		embeddings[i] = &embedder.Embedding{
			Vector:    vector,
			Dimension: m.dimension,
			Provider:  "mock",
			Model:     "test-v1",
		}
	}

	m.callCount += len(req.Texts)
	m.batchSizes = append(m.batchSizes, len(req.Texts))

	return &embedder.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   "mock",
		Model:      "test-v1",
	}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func writeSource(t testing.TB, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sourceFixture = `# Individual Test Solutions

## Java 8 (New)
Multi-choice test that measures the knowledge of Java class design.

## Verify - Numerical Ability
Measures numerical reasoning.

## OPQ32r
Occupational personality questionnaire.

# Pre-packaged Job Solutions

## Account Manager Solution
Sales focused bundle.
`

func TestNew(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), nil)
	require.NotNil(t, idx)
	assert.NotNil(t, idx.chunker)
	assert.NotNil(t, idx.logger)
	assert.Greater(t, idx.workers, 0)
}

func TestIndexSource(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb, nil)
	ctx := context.Background()
	source := writeSource(t, sourceFixture)

	stats, err := idx.IndexSource(ctx, source, &Config{BatchSize: 2, Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 4, stats.ChunksCreated)
	assert.Equal(t, 4, stats.EmbeddingsGenerated)
	assert.Equal(t, 4, emb.getCallCount())
	for _, size := range emb.batchSizes {
		assert.LessOrEqual(t, size, 2)
	}

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Loaded())
	assert.Equal(t, 4, status.ChunksCount)
	assert.Equal(t, 4, status.EmbeddingsCount)
	assert.Equal(t, "mock", status.Provider)

	doc, err := store.GetDocument(ctx, source)
	require.NoError(t, err)
	assert.NotEqual(t, [32]byte{}, doc.ContentHash)
	assert.Equal(t, 4, doc.ChunkCount)

	chunks, err := store.ListChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"Individual Test Solutions", "Java 8 (New)"}, chunks[0].Headings)
	assert.Equal(t, []string{"Pre-packaged Job Solutions", "Account Manager Solution"}, chunks[3].Headings)
}

func TestIndexSource_Incremental(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb, nil)
	ctx := context.Background()
	source := writeSource(t, sourceFixture)

	_, err := idx.IndexSource(ctx, source, nil)
	require.NoError(t, err)
	calls := emb.getCallCount()

	stats, err := idx.IndexSource(ctx, source, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsSkipped)
	assert.Equal(t, 0, stats.DocumentsIndexed)
	assert.Equal(t, calls, emb.getCallCount(), "unchanged source must not be re-embedded")

	stats, err = idx.IndexSource(ctx, source, &Config{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Greater(t, emb.getCallCount(), calls)
}

func TestIndexSource_ChangedSourceReplacesChunks(t *testing.T) {
	store := setupTestStorage(t)
	idx := New(store, newMockEmbedder(), nil)
	ctx := context.Background()
	source := writeSource(t, sourceFixture)

	_, err := idx.IndexSource(ctx, source, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(source, []byte("# Only\nOne section now.\n"), 0644))
	stats, err := idx.IndexSource(ctx, source, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunksCreated)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.ChunksCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
}

func TestIndexSource_EmbeddingFailureLeavesIncompleteDocument(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	emb.generateBatchErr = errors.New("upstream unavailable")
	idx := New(store, emb, nil)
	ctx := context.Background()
	source := writeSource(t, sourceFixture)

	_, err := idx.IndexSource(ctx, source, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Loaded())

	// The next run rebuilds instead of skipping
	emb.mu.Lock()
	emb.generateBatchErr = nil
	emb.mu.Unlock()

	stats, err := idx.IndexSource(ctx, source, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 0, stats.DocumentsSkipped)
}

func TestIndexSource_Errors(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), nil)
	ctx := context.Background()

	_, err := idx.IndexSource(ctx, filepath.Join(t.TempDir(), "missing.md"), nil)
	assert.Error(t, err)

	_, err = idx.IndexSource(ctx, writeSource(t, "# A\n## B\n"), nil)
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestIndexSource_CancelledContext(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.IndexSource(ctx, writeSource(t, sourceFixture), nil)
	assert.Error(t, err)
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock

	assert.False(t, lock.Held())
	_, _, ok := lock.Current()
	assert.False(t, ok)

	require.True(t, lock.TryAcquire("data/catalog.md"))
	assert.True(t, lock.Held())
	assert.False(t, lock.TryAcquire("data/other.md"), "second acquire must fail while held")

	source, since, ok := lock.Current()
	assert.True(t, ok)
	assert.Equal(t, "data/catalog.md", source)
	assert.False(t, since.IsZero())

	lock.Release()
	assert.False(t, lock.Held())
	source, _, _ = lock.Current()
	assert.Empty(t, source)

	assert.True(t, lock.TryAcquire("data/other.md"))
	lock.Release()
}

func TestIndexLock_Concurrent(t *testing.T) {
	var lock IndexLock
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.TryAcquire("catalog.md") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
}
