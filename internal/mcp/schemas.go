package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// recommendAssessmentsTool returns the tool definition for recommend_assessments
func recommendAssessmentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recommend_assessments",
		Description: "Recommend SHL assessments for a hiring need or job description. URLs in the query are fetched and their text is included.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Hiring requirements, a job description, or a job posting URL",
				},
			},
			Required: []string{"query"},
		},
	}
}

// searchCatalogTool returns the tool definition for search_catalog
func searchCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_catalog",
		Description: "Search the indexed assessment catalog without calling the language model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"heading_prefix": map[string]interface{}{
							"type":        "string",
							"description": "Only sections under this heading path, e.g. 'Individual Test Solutions'",
						},
						"min_relevance": map[string]interface{}{
							"type":        "number",
							"description": "Minimum relevance score threshold (0.0-1.0)",
							"minimum":     0.0,
							"maximum":     1.0,
						},
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// getIndexStatusTool returns the tool definition for get_index_status
func getIndexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_index_status",
		Description: "Report catalog index statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexCatalogTool returns the tool definition for index_catalog
func indexCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_catalog",
		Description: "Build or refresh the catalog index from a markdown export",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the markdown catalog (defaults to the configured source)",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rebuild even when the source is unchanged",
					"default":     false,
				},
			},
		},
	}
}
