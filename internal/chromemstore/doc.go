// Package chromemstore is the alternative vector index backend built on
// chromem-go. The collection is persisted as a directory of gob files and
// holds one document per catalog chunk, keyed by chunk ordinal.
//
// It offers vector retrieval only. Keyword and hybrid search require the
// SQLite backend.
package chromemstore
