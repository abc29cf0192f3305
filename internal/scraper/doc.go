// Package scraper fetches web pages linked from a query and reduces them to
// plain text that can be appended to the retrieval context.
package scraper
