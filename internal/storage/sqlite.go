package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/assessment-recommender/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// IndexFileName is the database file inside an index directory
const IndexFileName = "index.db"

// IndexPath returns the database path for an index directory
func IndexPath(dir string) string {
	return filepath.Join(dir, IndexFileName)
}

// IndexExists reports whether an index database is present in dir
func IndexExists(dir string) bool {
	info, err := os.Stat(IndexPath(dir))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// OpenIndex opens (creating if needed) the index database in dir
func OpenIndex(dir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	return NewSQLiteStorage(IndexPath(dir))
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Document operations

func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, doc *Document) error {
	query := `
		INSERT INTO documents (path, content_hash, size_bytes, chunk_count, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			chunk_count = excluded.chunk_count,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		doc.Path, doc.ContentHash[:], doc.SizeBytes, doc.ChunkCount, now, now, now).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	doc.LastIndexedAt = now
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *Document) error {
	return s.upsertDocumentWithQuerier(ctx, s.querier(), doc)
}

const documentColumns = `id, path, content_hash, size_bytes, chunk_count, last_indexed_at, created_at, updated_at`

func scanDocument(scan func(dest ...interface{}) error) (*Document, error) {
	var doc Document
	var hash []byte
	var lastIndexedAt sql.NullTime
	err := scan(&doc.ID, &doc.Path, &hash, &doc.SizeBytes, &doc.ChunkCount,
		&lastIndexedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	copy(doc.ContentHash[:], hash)
	if lastIndexedAt.Valid {
		doc.LastIndexedAt = lastIndexedAt.Time
	}
	return &doc, nil
}

func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, path string) (*Document, error) {
	row := q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE path = ?`, path)
	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, path string) (*Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), path)
}

func (s *SQLiteStorage) listDocumentsWithQuerier(ctx context.Context, q querier) ([]*Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*Document, error) {
	return s.listDocumentsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) deleteDocumentWithQuerier(ctx context.Context, q querier, documentID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	return err
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, documentID int64) error {
	return s.deleteDocumentWithQuerier(ctx, s.querier(), documentID)
}

// Chunk operations

func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (document_id, ordinal, headings, heading_path, content, content_hash,
		                    token_count, start_line, end_line, chunk_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, ordinal) DO UPDATE SET
			headings = excluded.headings,
			heading_path = excluded.heading_path,
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			chunk_type = excluded.chunk_type,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.DocumentID, chunk.Ordinal, encodeHeadings(chunk.Headings),
		strings.Join(chunk.Headings, types.HeadingSeparator), chunk.Content,
		chunk.ContentHash[:], chunk.TokenCount, chunk.StartLine, chunk.EndLine,
		chunk.ChunkType, now, now).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	chunk.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.querier(), chunk)
}

const chunkColumns = `id, document_id, ordinal, headings, content, content_hash, token_count,
	start_line, end_line, chunk_type, created_at, updated_at`

func scanChunk(scan func(dest ...interface{}) error) (*Chunk, error) {
	var chunk Chunk
	var headings string
	var hash []byte
	var tokenCount sql.NullInt64
	err := scan(&chunk.ID, &chunk.DocumentID, &chunk.Ordinal, &headings, &chunk.Content,
		&hash, &tokenCount, &chunk.StartLine, &chunk.EndLine, &chunk.ChunkType,
		&chunk.CreatedAt, &chunk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	chunk.Headings = decodeHeadings(headings)
	copy(chunk.ContentHash[:], hash)
	chunk.TokenCount = int(tokenCount.Int64)
	return &chunk, nil
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID int64) (*Chunk, error) {
	row := q.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, chunkID)
	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

// getChunksByIDsWithQuerier loads chunks in one query and returns them in
// the order of chunkIDs. Unknown IDs are skipped.
func (s *SQLiteStorage) getChunksByIDsWithQuerier(ctx context.Context, q querier, chunkIDs []int64) ([]*Chunk, error) {
	if len(chunkIDs) == 0 {
		return []*Chunk{}, nil
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]*Chunk, len(chunkIDs))
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chunks := make([]*Chunk, 0, len(byID))
	for _, id := range chunkIDs {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func (s *SQLiteStorage) GetChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*Chunk, error) {
	return s.getChunksByIDsWithQuerier(ctx, s.querier(), chunkIDs)
}

func (s *SQLiteStorage) listChunksByDocumentWithQuerier(ctx context.Context, q querier, documentID int64) ([]*Chunk, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	return s.listChunksByDocumentWithQuerier(ctx, s.querier(), documentID)
}

func (s *SQLiteStorage) deleteChunksByDocumentWithQuerier(ctx context.Context, q querier, documentID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID)
	return err
}

func (s *SQLiteStorage) DeleteChunksByDocument(ctx context.Context, documentID int64) error {
	return s.deleteChunksByDocumentWithQuerier(ctx, s.querier(), documentID)
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	err := q.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector,
		&embedding.Dimension, &embedding.Provider, &embedding.Model,
		&embedding.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), chunkID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), queryVector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.querier(), query, limit, filters)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*IndexStatus, error) {
	status := &IndexStatus{}

	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&status.DocumentsCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&status.ChunksCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&status.EmbeddingsCount)
	if err != nil {
		return nil, err
	}

	if status.EmbeddingsCount > 0 {
		err = q.QueryRowContext(ctx, `
			SELECT provider, model, dimension FROM embeddings
			ORDER BY id DESC LIMIT 1
		`).Scan(&status.Provider, &status.Model, &status.Dimension)
		if err != nil {
			return nil, err
		}
	}

	var lastIndexedAt sql.NullString
	err = q.QueryRowContext(ctx, "SELECT MAX(last_indexed_at) FROM documents").Scan(&lastIndexedAt)
	if err == nil && lastIndexedAt.Valid {
		status.LastIndexedAt = parseSQLiteTime(lastIndexedAt.String)
	}

	var pageCount, pageSize int
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     true, // created with migrations
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// parseSQLiteTime accepts the timestamp layouts written by either driver
func parseSQLiteTime(raw string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	}
	// Drop a trailing monotonic clock reading if present
	if i := strings.Index(raw, " m="); i > 0 {
		raw = raw[:i]
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Transaction implementations route writes and reads through the tx querier

func (t *sqliteTx) UpsertDocument(ctx context.Context, doc *Document) error {
	return t.storage.upsertDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) GetDocument(ctx context.Context, path string) (*Document, error) {
	return t.storage.getDocumentWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]*Document, error) {
	return t.storage.listDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, documentID int64) error {
	return t.storage.deleteDocumentWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) GetChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*Chunk, error) {
	return t.storage.getChunksByIDsWithQuerier(ctx, t.querier(), chunkIDs)
}

func (t *sqliteTx) ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	return t.storage.listChunksByDocumentWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) DeleteChunksByDocument(ctx context.Context, documentID int64) error {
	return t.storage.deleteChunksByDocumentWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, t.querier(), query, limit, filters)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
