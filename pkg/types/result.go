package types

// SearchResult represents a single retrieved catalog chunk with relevance information
type SearchResult struct {
	// Identification
	ChunkID int64
	Rank    int // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 // Vector similarity, BM25 or RRF score depending on mode

	// Content
	Headings []string
	Content  string
	Source   string // Source document path
}

// Passage returns the text handed to the language model for this result
func (sr *SearchResult) Passage() string {
	c := Chunk{Headings: sr.Headings, Content: sr.Content}
	return c.FullContent()
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
