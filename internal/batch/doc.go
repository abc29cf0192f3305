// Package batch runs a list of queries against a deployed recommendation
// endpoint and writes the recommended URLs to a CSV with the columns
// Query and Assessment_url.
//
// Requests run with bounded parallelism. Rows are appended and flushed as
// each query completes, so a partial file is usable if the run is
// interrupted. A query whose request fails or returns a non-200 status is
// reported and contributes no rows.
package batch
