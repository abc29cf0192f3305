// Package storage persists the catalog index in SQLite.
//
// An index directory holds a single database file, index.db, with these tables:
//   - documents: indexed markdown sources and their SHA-256 hashes
//   - chunks: heading-delimited sections with their heading path
//   - embeddings: one float32 vector per chunk (little-endian blob)
//   - chunks_fts: FTS5 index over heading path and content
//   - schema_version: applied semver migrations
//
// # Basic Usage
//
//	db, err := storage.OpenIndex("index")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	results, err := db.SearchVector(ctx, queryVector, 10, nil)
//
// # Transactions
//
// The indexer writes each embedding batch in its own transaction:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertChunk(ctx, chunk); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go) and ranks vectors in Go.
// Building with -tags sqlite_vec switches to github.com/mattn/go-sqlite3 and
// computes cosine distance in SQL with vec_distance_cosine.
package storage
