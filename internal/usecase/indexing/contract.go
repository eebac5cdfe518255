package indexing

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// Index is the vector index contract for indexing operations.
type Index interface {
	EnsureIndex(ctx context.Context) error
	DropIndex(ctx context.Context) error
	Upsert(ctx context.Context, rec domain.Record, vector []float32) error
	UpsertBatch(ctx context.Context, recs []domain.Record, vectors [][]float32) error
	Remove(ctx context.Context, id string) error
	Fetch(ctx context.Context, id string) (domain.StoredRecord, bool, error)
	Clear(ctx context.Context) (int, error)
}

// Embedder vectorizes document text, single and batched.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
