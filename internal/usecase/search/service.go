package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/cutoff"
	"github.com/kailas-cloud/semdex/internal/domain/filter"
	"github.com/kailas-cloud/semdex/internal/metrics"
)

const (
	// DefaultLimit applies when the request carries no limit.
	DefaultLimit = 10
	// MaxLimit caps the neighbor count per query.
	MaxLimit = 100
)

// Request is one semantic search.
type Request struct {
	Query        string
	Filter       filter.Expr
	Limit        int
	BypassCutoff bool
	IncludeDebug bool
}

// Debug exposes the pre-cutoff picture for threshold tuning.
type Debug struct {
	BypassCutoff bool
	RawCount     int
	RawHits      []domain.Hit
	KeepCount    int
}

// Response holds the surviving hits plus optional debug data.
type Response struct {
	Hits  []domain.Hit
	Debug *Debug
}

// Service runs semantic search: embed the query, retrieve nearest
// neighbors, then cut the tail with the adaptive selector.
type Service struct {
	index      Index
	embed      Embedder
	thresholds cutoff.Thresholds
	logger     *zap.Logger
}

// New creates a search service.
func New(index Index, embed Embedder, thresholds cutoff.Thresholds, logger *zap.Logger) *Service {
	return &Service{index: index, embed: embed, thresholds: thresholds, logger: logger}
}

// Search executes one query end to end.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Response{}, fmt.Errorf("%w: empty query", domain.ErrInvalidRequest)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if !req.Filter.IsZero() {
		if err := req.Filter.Validate(domain.MetadataSchema()); err != nil {
			return Response{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
	}

	total, err := s.index.Count(ctx)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("count records: %w", err)
	}
	if total == 0 {
		// Nothing indexed: skip the embedding call entirely.
		return s.finish(req, nil), nil
	}

	embRes, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(embRes.TotalTokens)

	k := req.Limit
	if total < k {
		k = total
	}

	hits, err := s.index.Query(ctx, embRes.Embedding, req.Filter, k)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("query index: %w", err)
	}

	return s.finish(req, hits), nil
}

// finish applies the cutoff (unless bypassed), records outcome metrics,
// and assembles the response.
func (s *Service) finish(req Request, raw []domain.Hit) Response {
	kept := raw
	if req.BypassCutoff {
		metrics.SearchCutoffBypassedTotal.Inc()
	} else {
		keep := s.thresholds.Keep(distancesOf(raw))
		kept = raw[:keep]
		metrics.SearchKeepCount.Observe(float64(keep))
	}

	if len(kept) == 0 {
		metrics.SearchesTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.SearchesTotal.WithLabelValues("ok").Inc()
	}

	s.logger.Debug("Search completed",
		zap.Int("raw_count", len(raw)),
		zap.Int("keep_count", len(kept)),
		zap.Bool("bypass_cutoff", req.BypassCutoff),
	)

	resp := Response{Hits: kept}
	if req.IncludeDebug {
		resp.Debug = &Debug{
			BypassCutoff: req.BypassCutoff,
			RawCount:     len(raw),
			RawHits:      raw,
			KeepCount:    len(kept),
		}
	}
	return resp
}

func distancesOf(hits []domain.Hit) []float64 {
	ds := make([]float64, len(hits))
	for i, h := range hits {
		ds[i] = h.Distance
	}
	return ds
}
