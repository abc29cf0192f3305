// Package embedder turns catalog passages and queries into vectors.
//
// Three providers implement the Embedder interface:
//
//   - huggingface: the hosted feature-extraction pipeline for a
//     sentence-transformers model (384 dimensions by default)
//   - gemini: the Gemini embedding API via google.golang.org/genai
//   - local: deterministic feature hashing, for offline builds and tests
//
// All providers share an LRU cache keyed by the SHA-256 of the input text,
// so only uncached texts are sent upstream.
//
//	emb, err := embedder.New(ctx, embedder.Config{
//	    Provider: embedder.ProviderHuggingFace,
//	    APIKey:   os.Getenv("HF_TOKEN"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{chunk.FullContent()},
//	})
//
// Batches are limited to MaxBatchSize texts. Provider failures wrap
// ErrProviderFailed and are not retried.
package embedder
