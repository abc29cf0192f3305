// Package mcp implements the Model Context Protocol (MCP) server for the
// assessment recommender.
//
// The MCP server exposes four tools to AI assistants:
//   - recommend_assessments: Full pipeline, returns parsed recommendations
//   - search_catalog: Retrieval only, no model call
//   - get_index_status: Index statistics and health
//   - index_catalog: Build or refresh the catalog index
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started with:
//
//	recommender mcp
//
// # Tool: recommend_assessments
//
//	Request:
//	{
//	  "name": "recommend_assessments",
//	  "arguments": {"query": "Java developers who collaborate with business teams, 40 minutes"}
//	}
//
//	Response:
//	{
//	  "recommended_assessments": [{"name": "Java 8 (New)", "url": "...", ...}],
//	  "count": 1,
//	  "retrieved_passages": 10,
//	  "raw_response": "<analysis>...</analysis><result>...</result>"
//	}
//
// # Tool: search_catalog
//
//	Request:
//	{
//	  "name": "search_catalog",
//	  "arguments": {
//	    "query": "numerical reasoning",
//	    "limit": 5,
//	    "search_mode": "hybrid",
//	    "filters": {"heading_prefix": "Individual Test Solutions", "min_relevance": 0.2}
//	  }
//	}
//
// # Tool: index_catalog
//
// Rebuilds the SQLite index from a markdown catalog. An unchanged source is
// skipped unless force is set. Only one build runs at a time; a concurrent
// call fails with ErrorCodeIndexingInProgress. The search cache is purged
// after every build.
//
// # Error Handling
//
// Errors are returned as *MCPError with JSON-RPC compatible codes:
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  Catalog source cannot be read
//	-32002  Indexing already in progress
//	-32003  Knowledge base not loaded
//	-32004  Empty query
//	-32005  Retrieval or generation failed
package mcp
