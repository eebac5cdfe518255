package search

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/filter"
)

// Index is the vector index contract for search operations.
type Index interface {
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, vector []float32, f filter.Expr, k int) ([]domain.Hit, error)
}

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
