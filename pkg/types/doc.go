// Package types provides shared type definitions for the assessment recommender.
//
// This package defines the domain types used across the indexing, retrieval and
// recommendation components: catalog chunks, search results and the
// recommendation contract returned to callers.
//
// # Chunks
//
// Chunk represents one heading-delimited section of the markdown catalog:
//
//	chunk := &types.Chunk{
//	    Headings:  []string{"Individual Test Solutions", "Java 8 (New)"},
//	    Content:   "Multi-choice test that measures the knowledge of Java ...",
//	    ChunkType: types.ChunkSection,
//	}
//
// FullContent prefixes the heading path, which is the text that gets embedded and
// handed to the language model as context.
//
// # Recommendations
//
// RecommendationSet is the structured result of a query. Its
// RecommendedAssessments field is always a JSON array, never null:
//
//	set := types.NewRecommendationSet()
//	data, _ := json.Marshal(set) // {"recommended_assessments":[]}
//
// Entries are kept as raw JSON so that model output is passed through untouched.
// Records decodes them leniently when typed access is needed:
//
//	for _, rec := range set.Records() {
//	    fmt.Println(rec.Name, rec.URL, rec.Duration)
//	}
//
// Single-letter test type codes are expanded through TestTypeCodes:
//
//	types.ExpandTestType("K") // "Knowledge & Skills"
//	types.ExpandTestType("Z") // "Z" (unknown codes pass through)
//
// # Search Results
//
// SearchResult carries a retrieved chunk with its rank and relevance score.
// Relevance scores are normalized to the [0, 1] range, with higher values
// indicating better matches.
package types
