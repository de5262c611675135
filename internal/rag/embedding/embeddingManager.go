package embedding

import "context"

// Embedder turns text into vectors. BatchEmbedding returns one vector per input,
// in input order.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error)
}
