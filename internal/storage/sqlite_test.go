package storage

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/dshills/assessment-recommender/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createTestDocument(t *testing.T, s Storage, path string) *Document {
	t.Helper()
	doc := &Document{
		Path:        path,
		ContentHash: sha256.Sum256([]byte(path)),
		SizeBytes:   128,
	}
	require.NoError(t, s.UpsertDocument(context.Background(), doc))
	return doc
}

func createTestChunk(t *testing.T, s Storage, documentID int64, ordinal int, headings []string, content string) *Chunk {
	t.Helper()
	tc := &types.Chunk{
		DocumentID: documentID,
		Ordinal:    ordinal,
		Headings:   headings,
		Content:    content,
		StartLine:  ordinal*10 + 1,
		EndLine:    ordinal*10 + 5,
		ChunkType:  types.ChunkSection,
	}
	tc.ComputeContentHash()
	tc.TokenCount = tc.ComputeTokenCount()

	chunk := FromTypesChunk(tc)
	require.NoError(t, s.UpsertChunk(context.Background(), chunk))
	return chunk
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	version, err := CurrentVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestOpenIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	assert.False(t, IndexExists(dir))

	s, err := OpenIndex(dir)
	require.NoError(t, err)
	createTestDocument(t, s, "data/catalog.md")
	require.NoError(t, s.Close())

	assert.True(t, IndexExists(dir))

	// Reopening applies no migrations twice
	s, err = OpenIndex(dir)
	require.NoError(t, err)
	defer s.Close()

	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpsertDocument(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	doc := createTestDocument(t, storage, "data/catalog.md")
	assert.Greater(t, doc.ID, int64(0))

	// Same path updates in place
	doc.ContentHash = sha256.Sum256([]byte("changed"))
	doc.ChunkCount = 4
	firstID := doc.ID
	require.NoError(t, storage.UpsertDocument(ctx, doc))
	assert.Equal(t, firstID, doc.ID)

	got, err := storage.GetDocument(ctx, "data/catalog.md")
	require.NoError(t, err)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, 4, got.ChunkCount)
}

func TestGetDocument_NotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetDocument(context.Background(), "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChunkRoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	doc := createTestDocument(t, storage, "catalog.md")
	chunk := createTestChunk(t, storage, doc.ID, 0, []string{"Individual Test Solutions", "Java 8 (New)"}, "Measures Java class design.")

	got, err := storage.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, chunk.Headings, got.Headings)
	assert.Equal(t, chunk.Content, got.Content)
	assert.Equal(t, chunk.ContentHash, got.ContentHash)
	assert.Equal(t, string(types.ChunkSection), got.ChunkType)

	tc := got.ToTypesChunk()
	assert.Equal(t, "Individual Test Solutions > Java 8 (New)", tc.HeadingPath())
	assert.NoError(t, tc.Validate())

	_, err = storage.GetChunk(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetChunksByIDs_PreservesOrder(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	doc := createTestDocument(t, storage, "catalog.md")
	a := createTestChunk(t, storage, doc.ID, 0, []string{"A"}, "alpha")
	b := createTestChunk(t, storage, doc.ID, 1, []string{"B"}, "beta")
	c := createTestChunk(t, storage, doc.ID, 2, []string{"C"}, "gamma")

	chunks, err := storage.GetChunksByIDs(ctx, []int64{c.ID, 424242, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int64{c.ID, a.ID, b.ID}, []int64{chunks[0].ID, chunks[1].ID, chunks[2].ID})

	empty, err := storage.GetChunksByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteDocument_Cascades(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	doc := createTestDocument(t, storage, "catalog.md")
	chunk := createTestChunk(t, storage, doc.ID, 0, []string{"A"}, "alpha")
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
		ChunkID:   chunk.ID,
		Vector:    SerializeVector([]float32{1, 0}),
		Dimension: 2,
		Provider:  "local",
		Model:     "local-hashing",
	}))

	require.NoError(t, storage.DeleteDocument(ctx, doc.ID))

	_, err := storage.GetChunk(ctx, chunk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = storage.GetEmbedding(ctx, chunk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteChunksByDocument(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	doc := createTestDocument(t, storage, "catalog.md")
	createTestChunk(t, storage, doc.ID, 0, []string{"A"}, "alpha")
	createTestChunk(t, storage, doc.ID, 1, []string{"B"}, "beta")

	require.NoError(t, storage.DeleteChunksByDocument(ctx, doc.ID))

	chunks, err := storage.ListChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// FTS rows are removed with their chunks
	results, err := storage.SearchText(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsertEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	doc := createTestDocument(t, storage, "catalog.md")
	chunk := createTestChunk(t, storage, doc.ID, 0, []string{"A"}, "alpha")

	emb := &Embedding{
		ChunkID:   chunk.ID,
		Vector:    SerializeVector([]float32{0.1, 0.2, 0.3}),
		Dimension: 3,
		Provider:  "huggingface",
		Model:     "sentence-transformers/all-MiniLM-L6-v2",
	}
	require.NoError(t, storage.UpsertEmbedding(ctx, emb))
	assert.Greater(t, emb.ID, int64(0))

	// Re-embedding replaces the vector
	emb.Vector = SerializeVector([]float32{0.4, 0.5, 0.6})
	require.NoError(t, storage.UpsertEmbedding(ctx, emb))

	got, err := storage.GetEmbedding(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, DeserializeVector(got.Vector))
	assert.Equal(t, "huggingface", got.Provider)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Loaded())
	assert.True(t, status.Health.DatabaseAccessible)

	doc := createTestDocument(t, storage, "catalog.md")
	chunk := createTestChunk(t, storage, doc.ID, 0, []string{"A"}, "alpha")
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
		ChunkID:   chunk.ID,
		Vector:    SerializeVector([]float32{1, 0}),
		Dimension: 2,
		Provider:  "local",
		Model:     "local-hashing",
	}))

	status, err = storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Loaded())
	assert.Equal(t, 1, status.DocumentsCount)
	assert.Equal(t, 1, status.ChunksCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
	assert.Equal(t, "local", status.Provider)
	assert.Equal(t, 2, status.Dimension)
	assert.False(t, status.LastIndexedAt.IsZero())
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	t.Run("rollback discards writes", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)

		createTestDocument(t, tx, "rolled-back.md")
		require.NoError(t, tx.Rollback())

		_, err = storage.GetDocument(ctx, "rolled-back.md")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("commit persists writes", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)

		doc := createTestDocument(t, tx, "committed.md")
		createTestChunk(t, tx, doc.ID, 0, []string{"A"}, "alpha")

		// Reads inside the transaction see its own writes
		chunks, err := tx.ListChunksByDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Len(t, chunks, 1)

		require.NoError(t, tx.Commit())

		got, err := storage.GetDocument(ctx, "committed.md")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
	})

	t.Run("nested transactions rejected", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
	})
}

func TestRollbackMigration(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db))

	version, err := CurrentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version.String())

	assert.Error(t, RollbackMigration(ctx, storage.db))

	// Migrations can be re-applied after a full rollback
	require.NoError(t, ApplyMigrations(ctx, storage.db))
	version, err = CurrentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestParseSQLiteTime(t *testing.T) {
	assert.False(t, parseSQLiteTime("2025-01-02 03:04:05").IsZero())
	assert.False(t, parseSQLiteTime("2025-01-02 03:04:05.123456789+00:00").IsZero())
	assert.False(t, parseSQLiteTime("2025-01-02 03:04:05.123 +0000 UTC m=+0.001").IsZero())
	assert.True(t, parseSQLiteTime("yesterday").IsZero())
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, storage.db))

	var count int
	require.NoError(t, storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, 1, count)

	for _, table := range []string{"documents", "chunks", "chunks_fts", "embeddings"} {
		var name string
		err := storage.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}
