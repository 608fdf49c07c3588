// Package mock provides test doubles for the ai package.
//
// MockEmbedder implements ai.Embedder without any external service. Vectors
// are derived from an FNV hash of the text, so identical text always yields
// the identical unit vector.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedderWithDimension(8)
//	vector, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	// Check call counts
//	requests := embedder.CallCount()
//	texts := embedder.TextCount()
package mock
