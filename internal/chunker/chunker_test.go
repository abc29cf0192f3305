package chunker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/assessment-recommender/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogFixture = `Catalog export.

# Individual Test Solutions

Pre-packaged and single tests.

## Java 8 (New)

Multi-choice test that measures the knowledge of Java class design.

#### Details
Remote Testing: Yes
Test Type: K

## Verify - Numerical Ability
### Overview

Measures numerical reasoning.

# Pre-packaged Job Solutions
## Empty Section
## Account Manager Solution

Sales focused bundle.
`

func TestNew(t *testing.T) {
	c := New()
	assert.NotNil(t, c)
}

func TestChunkMarkdown_SplitsOnHeadingLevels(t *testing.T) {
	c := New()
	chunks := c.ChunkMarkdown(catalogFixture, 7)

	require.Len(t, chunks, 5)

	assert.Equal(t, types.ChunkPreamble, chunks[0].ChunkType)
	assert.Empty(t, chunks[0].Headings)
	assert.Equal(t, "Catalog export.", chunks[0].Content)

	assert.Equal(t, []string{"Individual Test Solutions"}, chunks[1].Headings)
	assert.Equal(t, "Pre-packaged and single tests.", chunks[1].Content)

	java := chunks[2]
	assert.Equal(t, []string{"Individual Test Solutions", "Java 8 (New)"}, java.Headings)
	assert.Contains(t, java.Content, "Java class design")
	assert.Contains(t, java.Content, "#### Details", "level 4 headings stay in the body")
	assert.Contains(t, java.Content, "Test Type: K")

	verify := chunks[3]
	assert.Equal(t, []string{"Individual Test Solutions", "Verify - Numerical Ability", "Overview"}, verify.Headings)
	assert.Equal(t, "Measures numerical reasoning.", verify.Content)

	account := chunks[4]
	assert.Equal(t, []string{"Pre-packaged Job Solutions", "Account Manager Solution"}, account.Headings)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Ordinal)
		assert.Equal(t, int64(7), chunk.DocumentID)
		assert.NoError(t, chunk.Validate(), "chunk %d", i)
	}
}

func TestChunkMarkdown_DropsEmptySections(t *testing.T) {
	c := New()
	chunks := c.ChunkMarkdown("# A\n## B\n### C\n", 1)
	assert.Empty(t, chunks)
}

func TestChunkMarkdown_HeadingResetsDeeperLevels(t *testing.T) {
	c := New()
	chunks := c.ChunkMarkdown("# A\n## B\n### C\ntext c\n## D\ntext d\n", 1)

	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"A", "B", "C"}, chunks[0].Headings)
	assert.Equal(t, []string{"A", "D"}, chunks[1].Headings)
}

func TestChunkMarkdown_IgnoresHeadingsInFences(t *testing.T) {
	content := "# Setup\n\n```bash\n# not a heading\necho hi\n```\n\nafter\n"

	c := New()
	chunks := c.ChunkMarkdown(content, 1)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "# not a heading")
	assert.Contains(t, chunks[0].Content, "after")
}

func TestChunkMarkdown_LineNumbers(t *testing.T) {
	content := "# Title\n\nfirst\nsecond\n\n# Next\nthird\n"

	c := New()
	chunks := c.ChunkMarkdown(content, 1)

	require.Len(t, chunks, 2)
	assert.Equal(t, 3, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
	assert.Equal(t, 7, chunks[1].StartLine)
	assert.Equal(t, 7, chunks[1].EndLine)
}

func TestChunkMarkdown_HashesDifferByHeading(t *testing.T) {
	c := New()
	chunks := c.ChunkMarkdown("# A\nsame\n# B\nsame\n", 1)

	require.Len(t, chunks, 2)
	assert.NotEqual(t, chunks[0].ContentHash, chunks[1].ContentHash)
}

func TestChunkFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "catalog.md")
	require.NoError(t, os.WriteFile(path, []byte(catalogFixture), 0644))

	c := New()
	chunks, err := c.ChunkFile(path, 3)
	require.NoError(t, err)
	assert.Len(t, chunks, 5)

	_, err = c.ChunkFile(filepath.Join(tmpDir, "missing.md"), 3)
	assert.Error(t, err)
}

func TestChunkMarkdown_WindowsLineEndings(t *testing.T) {
	c := New()
	chunks := c.ChunkMarkdown("# A\r\nbody\r\n", 1)

	require.Len(t, chunks, 1)
	assert.Equal(t, "body", chunks[0].Content)
	assert.Equal(t, []string{"A"}, chunks[0].Headings)
}
