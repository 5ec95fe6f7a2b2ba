package embedding

import "context"

// Embedder maps text to vectors. Both methods must use the same model so query and
// chunk vectors are comparable; BatchEmbedding preserves input order.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error)
	ModelName() string
	Dimension() int
}
