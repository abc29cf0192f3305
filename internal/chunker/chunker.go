package chunker

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dshills/assessment-recommender/pkg/types"
)

// MaxHeadingLevel is the deepest heading level that starts a new chunk
const MaxHeadingLevel = 3

var (
	headingPattern = regexp.MustCompile(`^(#{1,6})[ \t]+(.*?)[ \t#]*$`)
	fencePattern   = regexp.MustCompile("^[ \t]*(```|~~~)")
)

// Chunker creates heading-delimited chunks from markdown documents
type Chunker struct{}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{}
}

// ChunkFile reads a markdown file and splits it into chunks
func (c *Chunker) ChunkFile(filePath string, documentID int64) ([]*types.Chunk, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return c.ChunkMarkdown(string(content), documentID), nil
}

// ChunkMarkdown splits markdown text on level 1-3 headings
func (c *Chunker) ChunkMarkdown(content string, documentID int64) []*types.Chunk {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	var (
		headings [MaxHeadingLevel]string
		body     []string
		start    int
		inFence  bool
		fence    string
	)
	chunks := make([]*types.Chunk, 0)

	flush := func() {
		defer func() { body = body[:0] }()

		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text == "" {
			return
		}

		chunk := c.createChunk(text, headings[:], documentID, len(chunks))
		chunk.StartLine, chunk.EndLine = trimmedRange(body, start)
		chunks = append(chunks, chunk)
	}

	for i, line := range lines {
		lineNo := i + 1

		if m := fencePattern.FindStringSubmatch(line); m != nil {
			switch {
			case !inFence:
				inFence, fence = true, m[1]
			case m[1] == fence:
				inFence = false
			}
		}

		if !inFence {
			if level, title, ok := parseHeading(line); ok && level <= MaxHeadingLevel {
				flush()
				headings[level-1] = title
				for j := level; j < MaxHeadingLevel; j++ {
					headings[j] = ""
				}
				continue
			}
		}

		if len(body) == 0 {
			start = lineNo
		}
		body = append(body, line)
	}
	flush()

	return chunks
}

// createChunk builds a chunk for a section body under the given heading levels
func (c *Chunker) createChunk(text string, levels []string, documentID int64, ordinal int) *types.Chunk {
	headings := make([]string, 0, len(levels))
	for _, h := range levels {
		if h != "" {
			headings = append(headings, h)
		}
	}

	chunkType := types.ChunkSection
	if len(headings) == 0 {
		chunkType = types.ChunkPreamble
	}

	chunk := &types.Chunk{
		DocumentID: documentID,
		Ordinal:    ordinal,
		Headings:   headings,
		Content:    text,
		ChunkType:  chunkType,
	}

	chunk.ComputeTokenCount()
	chunk.ComputeContentHash()

	return chunk
}

// parseHeading reports the level and title of an ATX heading line
func parseHeading(line string) (int, string, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	title := strings.TrimSpace(m[2])
	if title == "" {
		return 0, "", false
	}
	return len(m[1]), title, true
}

// trimmedRange returns the line range of body after dropping blank edge lines.
// first is the line number of body[0].
func trimmedRange(body []string, first int) (int, int) {
	lo, hi := 0, len(body)-1
	for lo < hi && strings.TrimSpace(body[lo]) == "" {
		lo++
	}
	for hi > lo && strings.TrimSpace(body[hi]) == "" {
		hi--
	}
	return first + lo, first + hi
}
