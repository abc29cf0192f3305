// Package searcher retrieves catalog chunks from the SQLite index.
//
// Three modes are supported:
//   - Vector: cosine similarity against the query embedding
//   - Keyword: BM25 over the FTS5 index of heading paths and content
//   - Hybrid: both, merged with Reciprocal Rank Fusion (k = 60)
//
// Retrieve is the entry point used by the recommendation pipeline. It runs a
// vector search for the top k chunks and fails with types.ErrIndexNotLoaded
// when the index is empty.
//
//	s := searcher.NewSearcher(store, emb)
//	passages, err := s.Retrieve(ctx, "java developer, 40 minutes", 10)
//
// Responses are cached in an LRU keyed by query, mode, limit and filters.
// Entries expire after an hour; InvalidateCache drops them all after a
// rebuild.
package searcher
