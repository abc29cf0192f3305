package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/assessment-recommender/internal/embedder"
	"github.com/dshills/assessment-recommender/internal/storage"
	"github.com/dshills/assessment-recommender/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + BM25 with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

const (
	// DefaultLimit is used when a request does not set one
	DefaultLimit = 10
	// MaxLimit caps the number of results per request
	MaxLimit = 100

	defaultCacheSize = 1000
	defaultCacheTTL  = time.Hour
	defaultRRF       = 60
)

// ParseSearchMode maps a user supplied mode name onto a SearchMode.
// The empty string selects hybrid search.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SearchModeHybrid:
		return SearchModeHybrid, nil
	case SearchModeVector:
		return SearchModeVector, nil
	case SearchModeKeyword:
		return SearchModeKeyword, nil
	default:
		return "", fmt.Errorf("unsupported search mode: %s", s)
	}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	Filters     *storage.SearchFilters
	UseCache    bool // Whether to use query cache
	CacheTTL    time.Duration
	RRFConstant float64 // k value for Reciprocal Rank Fusion (default 60)
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher coordinates search operations across vector and text search
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(storage storage.Storage, embedder embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](defaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		storage:  storage,
		embedder: embedder,
		cache:    cache,
	}
}

// Retrieve returns the k chunks most similar to query. It fails with
// types.ErrIndexNotLoaded when the index holds no embedded chunks.
func (s *Searcher) Retrieve(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("read index status: %w", err)
	}
	if !status.Loaded() {
		return nil, types.ErrIndexNotLoaded
	}

	resp, err := s.Search(ctx, SearchRequest{
		Query:    query,
		Limit:    k,
		Mode:     SearchModeVector,
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached, ok := s.checkCache(req); ok {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *SearchResponse
	var err error

	switch req.Mode {
	case SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req)
	case SearchModeVector:
		response, err = s.vectorSearch(ctx, req)
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}

	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// searchResult holds results from concurrent search operations
type searchResult struct {
	vectorResults []storage.VectorResult
	textResults   []storage.TextResult
	err           error
}

// runVectorSearch executes vector search in a goroutine
func (s *Searcher) runVectorSearch(ctx context.Context, req SearchRequest, resultChan chan<- searchResult) {
	var res searchResult
	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		res.err = fmt.Errorf("failed to generate query embedding: %w", err)
	} else {
		res.vectorResults, res.err = s.storage.SearchVector(ctx, embedding.Vector, req.Limit*2, req.Filters)
	}
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// runTextSearch executes text search in a goroutine
func (s *Searcher) runTextSearch(ctx context.Context, req SearchRequest, resultChan chan<- searchResult) {
	var res searchResult
	res.textResults, res.err = s.storage.SearchText(ctx, req.Query, req.Limit*2, req.Filters)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// hybridSearch combines vector and BM25 search using Reciprocal Rank Fusion
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vectorChan := make(chan searchResult, 1)
	textChan := make(chan searchResult, 1)

	go s.runVectorSearch(ctx, req, vectorChan)
	go s.runTextSearch(ctx, req, textChan)

	var vectorRes, textRes searchResult
	var vectorDone, textDone bool
	for !vectorDone || !textDone {
		select {
		case vectorRes = <-vectorChan:
			vectorDone = true
		case textRes = <-textChan:
			textDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// One side may fail; a query made only of punctuation has no FTS terms
	if vectorRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%v", vectorRes.err, textRes.err)
	}

	rrf := s.applyRRF(vectorRes.vectorResults, textRes.textResults, req.RRFConstant)
	results, err := s.fetchResults(ctx, rrf, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRes.vectorResults),
		TextResults:   len(textRes.textResults),
	}, nil
}

// vectorSearch performs only vector similarity search
func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	vectorResults, err := s.storage.SearchVector(ctx, embedding.Vector, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	rankedResults := make([]rankedResult, len(vectorResults))
	for i, vr := range vectorResults {
		rankedResults[i] = rankedResult{
			chunkID: vr.ChunkID,
			score:   vr.SimilarityScore,
			rank:    i + 1,
		}
	}

	results, err := s.fetchResults(ctx, rankedResults, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorResults),
	}, nil
}

// keywordSearch performs only BM25 text search
func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	textResults, err := s.storage.SearchText(ctx, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	rankedResults := make([]rankedResult, len(textResults))
	for i, tr := range textResults {
		rankedResults[i] = rankedResult{
			chunkID: tr.ChunkID,
			score:   tr.BM25Score,
			rank:    i + 1,
		}
	}

	results, err := s.fetchResults(ctx, rankedResults, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(textResults),
	}, nil
}

// rankedResult represents a chunk with its relevance score and rank
type rankedResult struct {
	chunkID int64
	score   float64
	rank    int
}

// applyRRF applies Reciprocal Rank Fusion to combine vector and text results
// RRF formula: RRF(d) = Σ 1/(k + rank(d))
func (s *Searcher) applyRRF(vectorResults []storage.VectorResult, textResults []storage.TextResult, k float64) []rankedResult {
	if k == 0 {
		k = defaultRRF
	}

	scores := make(map[int64]float64)
	for rank, vr := range vectorResults {
		scores[vr.ChunkID] += 1.0 / (k + float64(rank+1))
	}
	for rank, tr := range textResults {
		scores[tr.ChunkID] += 1.0 / (k + float64(rank+1))
	}

	results := make([]rankedResult, 0, len(scores))
	for chunkID, score := range scores {
		results = append(results, rankedResult{
			chunkID: chunkID,
			score:   score,
		})
	}

	sortRankedResults(results)

	for i := range results {
		results[i].rank = i + 1
	}

	return results
}

// fetchResults loads chunk text for the top ranked results in one query.
// Chunks deleted since ranking are skipped and ranks are reassigned.
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) ([]types.SearchResult, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}
	if limit == 0 {
		return []types.SearchResult{}, nil
	}

	ids := make([]int64, limit)
	for i := 0; i < limit; i++ {
		ids[i] = ranked[i].chunkID
	}

	chunks, err := s.storage.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	byID := make(map[int64]*storage.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	sources, err := s.documentPaths(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, limit)
	for i := 0; i < limit; i++ {
		rr := ranked[i]
		chunk, ok := byID[rr.chunkID]
		if !ok {
			continue
		}

		results = append(results, types.SearchResult{
			ChunkID:        rr.chunkID,
			Rank:           len(results) + 1,
			RelevanceScore: rr.score,
			Headings:       append([]string(nil), chunk.Headings...),
			Content:        chunk.Content,
			Source:         sources[chunk.DocumentID],
		})
	}

	return results, nil
}

// documentPaths maps document IDs to their source paths
func (s *Searcher) documentPaths(ctx context.Context) (map[int64]string, error) {
	docs, err := s.storage.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	paths := make(map[int64]string, len(docs))
	for _, d := range docs {
		paths[d.ID] = d.Path
	}
	return paths, nil
}

// validateRequest ensures search request is valid and applies defaults
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}

	if req.RRFConstant == 0 {
		req.RRFConstant = defaultRRF
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = defaultCacheTTL
	}

	return nil
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(req SearchRequest) (*SearchResponse, bool) {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response, true
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, result := range src.Results {
		dst.Results[i] = result
		dst.Results[i].Headings = append([]string(nil), result.Headings...)
	}

	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	fmt.Fprintf(&data, "%d", req.Limit)

	if req.Filters != nil {
		data.WriteString("|filters:")
		data.WriteString(strings.Join(req.Filters.ChunkTypes, ","))
		data.WriteString("|")
		data.WriteString(req.Filters.HeadingPrefix)
		data.WriteString("|")
		fmt.Fprintf(&data, "%.2f", req.Filters.MinRelevance)
	}

	return sha256.Sum256([]byte(data.String()))
}

// sortRankedResults sorts by score descending, then chunk ID for stable ties
func sortRankedResults(results []rankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunkID < results[j].chunkID
	})
}

// InvalidateCache drops every cached query. It is called after a rebuild.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached queries
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// EvictLRU shrinks the cache to at most maxEntries.
// golang-lru cannot resize in place, so an oversized cache is replaced.
func (s *Searcher) EvictLRU(maxEntries int) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.cache.Len() <= maxEntries {
		return nil
	}

	newCache, err := lru.New[[32]byte, *cacheEntry](maxEntries)
	if err != nil {
		return fmt.Errorf("failed to create new cache: %w", err)
	}
	s.cache = newCache

	return nil
}
