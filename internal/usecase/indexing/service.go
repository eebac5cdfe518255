package indexing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// rebuildChunkSize bounds both the embedding batch and the pipelined
// write per rebuild step. Matches the embedder's API batch size.
const rebuildChunkSize = 256

// Service keeps the vector index in step with the authoritative listing
// store: single-record sync on change notifications, wholesale rebuild
// on demand.
type Service struct {
	index    Index
	embedder Embedder
	dims     int
	logger   *zap.Logger
}

// New creates an indexing service. dims is the pinned model dimensionality.
func New(index Index, embedder Embedder, dims int, logger *zap.Logger) *Service {
	return &Service{index: index, embedder: embedder, dims: dims, logger: logger}
}

// Index writes one record, embedding its text. When the stored record
// already holds the same text with a vector of the right size, that
// vector is reused and only the metadata is rewritten. Re-indexing
// identical input is therefore observably idempotent and free.
func (s *Service) Index(ctx context.Context, rec domain.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	stored, found, err := s.index.Fetch(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("fetch stored record: %w", err)
	}
	if found && stored.Record.Text == rec.Text && len(stored.Vector) == s.dims {
		s.logger.Debug("Reusing stored vector", zap.String("id", rec.ID))
		if err := s.index.Upsert(ctx, rec, stored.Vector); err != nil {
			return fmt.Errorf("upsert record: %w", err)
		}
		return nil
	}

	result, err := s.embedder.Embed(ctx, rec.Text)
	if err != nil {
		return fmt.Errorf("vectorize record: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	if len(result.Embedding) != s.dims {
		return fmt.Errorf("%w: vector dimension %d, want %d",
			domain.ErrEmbeddingProviderError, len(result.Embedding), s.dims)
	}

	if err := s.index.Upsert(ctx, rec, result.Embedding); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Remove deletes one record. Absent ids are not an error.
func (s *Service) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", domain.ErrInvalidRequest)
	}
	if err := s.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// Rebuild replaces the whole index with the given records: drop, clear,
// recreate, then re-embed and write in chunks. A failing chunk is logged
// and skipped; the returned count covers successfully written records.
func (s *Service) Rebuild(ctx context.Context, recs []domain.Record) (int, error) {
	if err := s.index.DropIndex(ctx); err != nil {
		return 0, fmt.Errorf("drop index: %w", err)
	}
	cleared, err := s.index.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	if err := s.index.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("recreate index: %w", err)
	}

	s.logger.Info("Rebuild started",
		zap.Int("records", len(recs)),
		zap.Int("cleared", cleared),
	)

	valid := recs[:0:0]
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			s.logger.Warn("Skipping invalid record", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		valid = append(valid, rec)
	}

	var indexed, failedChunks int
	var lastErr error
	for offset := 0; offset < len(valid); offset += rebuildChunkSize {
		end := offset + rebuildChunkSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[offset:end]

		n, err := s.writeChunk(ctx, chunk)
		if err != nil {
			failedChunks++
			lastErr = err
			s.logger.Error("Rebuild chunk failed",
				zap.Int("offset", offset),
				zap.Int("size", len(chunk)),
				zap.Error(err),
			)
			continue
		}
		indexed += n
	}

	if failedChunks > 0 && indexed == 0 && len(valid) > 0 {
		return 0, fmt.Errorf("rebuild: all %d chunks failed: %w", failedChunks, lastErr)
	}

	s.logger.Info("Rebuild finished",
		zap.Int("indexed", indexed),
		zap.Int("failed_chunks", failedChunks),
	)
	return indexed, nil
}

func (s *Service) writeChunk(ctx context.Context, chunk []domain.Record) (int, error) {
	texts := make([]string, len(chunk))
	for i, rec := range chunk {
		texts[i] = rec.Text
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("batch vectorize: %w", err)
	}
	if len(res.Embeddings) != len(chunk) {
		return 0, fmt.Errorf("%w: %d embeddings for %d records",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(chunk))
	}

	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	for i, vec := range res.Embeddings {
		if len(vec) != s.dims {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				domain.ErrEmbeddingProviderError, i, len(vec), s.dims)
		}
	}

	if err := s.index.UpsertBatch(ctx, chunk, res.Embeddings); err != nil {
		return 0, fmt.Errorf("batch write: %w", err)
	}
	return len(chunk), nil
}
