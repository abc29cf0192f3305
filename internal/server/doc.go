// Package server exposes the recommender over HTTP.
//
// Routes:
//
//	POST /recommend   JSON {"query": "..."} -> {"recommended_assessments": [...]}
//	GET  /            UI page
//	POST /            UI form submit
//	GET  /healthz     liveness and index state
//	GET  /metrics     Prometheus exposition
//
// Errors use the envelope {"error": {"code", "message", "details"}}. An empty
// query is 400, a missing knowledge base 503 and a failed retrieval or model
// call 502.
package server
