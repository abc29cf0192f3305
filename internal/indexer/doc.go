// Package indexer builds the catalog knowledge base.
//
// A build reads one markdown source, splits it into heading chunks, replaces
// the document's chunks in a single transaction, and then embeds the chunks
// in concurrent batches. Each batch is written in its own transaction.
//
//	idx := indexer.New(store, emb, logger)
//	stats, err := idx.IndexSource(ctx, "data/shl-docs.md", &indexer.Config{
//	    BatchSize: 50,
//	})
//
// Builds are incremental: when the source's SHA-256 matches the stored hash
// the build is skipped. The stored hash is written only after every chunk
// has an embedding, so a failed build is retried in full on the next run.
// Set Config.Force to rebuild regardless.
package indexer
