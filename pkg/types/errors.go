package types

import "errors"

// Domain errors for type validation
var (
	// Search result errors
	ErrInvalidChunkID        = errors.New("invalid chunk ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrEmptyContent          = errors.New("content cannot be empty")

	// Chunk errors
	ErrInvalidLineRange  = errors.New("start line must be positive and not after end line")
	ErrInvalidChunkType  = errors.New("invalid chunk type")
	ErrMissingDocumentID = errors.New("document ID is required")
	ErrMissingHash       = errors.New("content hash must be computed")

	// ErrIndexNotLoaded is returned by retrievers whose index is missing or empty
	ErrIndexNotLoaded = errors.New("index not loaded")
)
