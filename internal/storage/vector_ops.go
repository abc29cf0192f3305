package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, queryVector, limit, filters)
	}
	return searchVectorFallback(ctx, q, queryVector, limit, filters)
}

// searchVectorOptimized computes cosine distance in SQL via sqlite-vec
func searchVectorOptimized(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	queryVectorBlob := serializeVector(queryVector)

	// vec_distance_cosine returns distance (lower is better)
	query := `
		SELECT
			c.id as chunk_id,
			1.0 - vec_distance_cosine(e.vector, ?) as similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE e.dimension = ?
	`
	args := []interface{}{queryVectorBlob, len(queryVector)}

	query, args = applyFilters(query, args, filters)

	if filters != nil && filters.MinRelevance > 0 {
		query += " AND (1.0 - vec_distance_cosine(e.vector, ?)) >= ?"
		args = append(args, queryVectorBlob, filters.MinRelevance)
	}

	query += " ORDER BY similarity DESC, c.id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ChunkID, &result.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// searchVectorFallback ranks candidates in Go for purego builds
func searchVectorFallback(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	query := `
		SELECT
			c.id as chunk_id,
			e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE 1 = 1
	`
	args := []interface{}{}

	query, args = applyFilters(query, args, filters)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, 256)
	for rows.Next() {
		var chunkID int64
		var vectorBlob []byte
		if err := rows.Scan(&chunkID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch
		}

		similarity := cosineSimilarity(queryVector, vector)
		if filters != nil && filters.MinRelevance > 0 && similarity < filters.MinRelevance {
			continue
		}

		candidates = append(candidates, candidate{chunkID: chunkID, score: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	if limit > len(candidates) {
		limit = len(candidates)
	}
	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			ChunkID:         candidates[i].chunkID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results, nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, q querier, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	match := buildFTSQuery(query)
	if match == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT
			c.id as chunk_id,
			bm25(chunks_fts) as score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.id
		WHERE chunks_fts MATCH ?
	`
	args := []interface{}{match}

	sqlQuery, args = applyFilters(sqlQuery, args, filters)

	// BM25 is negative; lower is better
	sqlQuery += " ORDER BY score, c.id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0)
	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.ChunkID, &result.BM25Score); err != nil {
			return nil, err
		}

		// Map BM25 (typically within [-50, 0]) onto (0, 1]
		result.BM25Score = 1.0 / (1.0 + math.Abs(result.BM25Score)/50.0)

		if filters != nil && filters.MinRelevance > 0 && result.BM25Score < filters.MinRelevance {
			continue
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// applyFilters adds WHERE clause filters shared by vector and text search
func applyFilters(query string, args []interface{}, filters *SearchFilters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}

	if len(filters.ChunkTypes) > 0 {
		placeholders := make([]string, len(filters.ChunkTypes))
		for i, typ := range filters.ChunkTypes {
			placeholders[i] = "?"
			args = append(args, typ)
		}
		query += " AND c.chunk_type IN (" + strings.Join(placeholders, ",") + ")"
	}

	if filters.HeadingPrefix != "" {
		query += " AND substr(c.heading_path, 1, ?) = ?"
		args = append(args, utf8.RuneCountInString(filters.HeadingPrefix), filters.HeadingPrefix)
	}

	return query, args
}

// buildFTSQuery turns free text into an FTS5 expression that matches any
// of its words. Each word is quoted so operators and punctuation in user
// input are never interpreted.
func buildFTSQuery(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunkID int64
	score   float64
}

// sortCandidates orders by score descending, then chunk ID for stable ties
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
}

// SerializeVector encodes a vector for the embeddings table
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes a vector read from the embeddings table
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
