// Package chunker divides the markdown assessment catalog into heading-delimited
// chunks for embedding and retrieval.
//
// # Basic Usage
//
//	c := chunker.New()
//	chunks, err := c.ChunkFile("data/shl-docs.md", documentID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, chunk := range chunks {
//	    fmt.Printf("%s: %d tokens, lines %d-%d\n",
//	        chunk.HeadingPath(), chunk.TokenCount, chunk.StartLine, chunk.EndLine)
//	}
//
// # Chunking Strategy
//
// The document is split on ATX headings of levels 1 to 3 (#, ## and ###).
// Deeper headings stay inside their parent section. Heading lines are removed
// from the chunk body and recorded in Chunk.Headings, outermost first, so that
// a product page nested under a catalog section keeps both titles.
//
// Lines inside fenced code blocks are never treated as headings. Sections whose
// body is empty after trimming (a heading immediately followed by another
// heading) produce no chunk. Text before the first heading becomes a preamble
// chunk.
package chunker
