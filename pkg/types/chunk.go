package types

import (
	"crypto/sha256"
	"strings"
)

// ChunkType represents the kind of catalog section a chunk was cut from
type ChunkType string

const (
	// ChunkSection is text found under a level 1-3 heading
	ChunkSection ChunkType = "section"
	// ChunkPreamble is text that appears before the first heading
	ChunkPreamble ChunkType = "preamble"
)

// HeadingSeparator joins heading levels in a heading path
const HeadingSeparator = " > "

// Chunk represents a heading-delimited section of the markdown catalog
type Chunk struct {
	// Identification
	ID         int64
	DocumentID int64
	Ordinal    int // Position within the source document (0-based)

	// Content
	Headings    []string // Enclosing headings, outermost first
	Content     string   // Section body with heading lines removed
	ContentHash [32]byte // SHA-256 of FullContent
	TokenCount  int

	// Location
	StartLine int
	EndLine   int

	// Metadata
	ChunkType ChunkType
}

// HeadingPath returns the enclosing headings joined with HeadingSeparator
func (c *Chunk) HeadingPath() string {
	return strings.Join(c.Headings, HeadingSeparator)
}

// FullContent returns the heading path followed by the section body.
// This is the text that is embedded and shown to the model.
func (c *Chunk) FullContent() string {
	path := c.HeadingPath()
	if path == "" {
		return c.Content
	}
	return path + "\n\n" + c.Content
}

// ComputeTokenCount estimates the number of tokens in the chunk
// Uses a simple heuristic: characters / 4
func (c *Chunk) ComputeTokenCount() int {
	c.TokenCount = len(c.FullContent()) / 4
	return c.TokenCount
}

// ComputeContentHash computes the SHA-256 hash of the chunk's full content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.FullContent()))
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}
	if c.StartLine <= 0 || c.EndLine <= 0 || c.StartLine > c.EndLine {
		return ErrInvalidLineRange
	}
	return nil
}

// ValidateChunkType checks if the chunk type is valid
func (c *Chunk) ValidateChunkType() error {
	switch c.ChunkType {
	case ChunkSection, ChunkPreamble:
		return nil
	default:
		return ErrInvalidChunkType
	}
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}
	if err := c.ValidateChunkType(); err != nil {
		return err
	}
	if c.DocumentID == 0 {
		return ErrMissingDocumentID
	}

	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return ErrMissingHash
	}
	return nil
}
