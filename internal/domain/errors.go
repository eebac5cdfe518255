package domain

import "errors"

var (
	// ErrNotReady signals that the embedding model has not been verified yet.
	ErrNotReady = errors.New("service not ready")
	// ErrInvalidRequest signals a malformed or unvalidatable request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized signals a missing or invalid service token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
