// Package mock provides test double implementations of AI service interfaces.
//
// The mocks are deterministic and safe for concurrent use, so they can back a
// reindex pass running on a worker pool.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.SetEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("embedding service down")
//	})
//
// # Default Behavior
//
//   - MockEmbedder: hashes each word into a bucket of a fixed-size vector and
//     normalizes it, so texts sharing words score higher than unrelated ones
//   - MockConceptExtractor: turns the first five words into concepts
//   - MockProvider: aggregates mock embedder and extractor
package mock
