package embedder

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkComputeHash(b *testing.B) {
	texts := []string{
		"short",
		"Java 8 (New) multi-choice test",
		"Individual Test Solutions > Verify - Numerical Ability\n\nMeasures the ability to make correct decisions from numerical data.",
	}

	for _, text := range texts {
		b.Run(fmt.Sprintf("len=%d", len(text)), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ComputeHash(text)
			}
		})
	}
}

func BenchmarkCache(b *testing.B) {
	cache := NewCache(DefaultCacheSize)
	emb := &Embedding{
		Vector:    make([]float32, HuggingFaceDimension),
		Dimension: HuggingFaceDimension,
		Provider:  ProviderHuggingFace,
		Model:     DefaultHuggingFaceModel,
	}

	for i := 0; i < 1000; i++ {
		cache.Set(fmt.Sprintf("hash-%d", i), emb)
	}

	b.Run("get-hit", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cache.Get(fmt.Sprintf("hash-%d", i%1000))
		}
	})

	b.Run("get-miss", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cache.Get(fmt.Sprintf("nonexistent-%d", i))
		}
	})
}

func BenchmarkLocalProvider_Batch(b *testing.B) {
	ctx := context.Background()
	texts := make([]string, DefaultBatchSize)
	for i := range texts {
		texts[i] = fmt.Sprintf("assessment %d measures reasoning and personality traits", i)
	}

	for i := 0; i < b.N; i++ {
		// Fresh provider each iteration so the cache never short-circuits
		p, _ := NewLocalProvider(nil)
		if _, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts}); err != nil {
			b.Fatal(err)
		}
	}
}
