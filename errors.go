package semdex

import (
	"errors"
	"fmt"
)

// Sentinel errors of the SDK. Use errors.Is to check.
var (
	// ErrGatewayUnavailable wraps dial failures and call timeouts. The
	// Reconciler treats it as "no semantic matches" and falls back to
	// keyword search.
	ErrGatewayUnavailable = errors.New("semdex: gateway unavailable")

	// ErrUnauthorized reports a missing or wrong service token.
	ErrUnauthorized = errors.New("semdex: unauthorized")

	// ErrGatewayNotReady reports that the gateway's model warmup has
	// not finished yet.
	ErrGatewayNotReady = errors.New("semdex: gateway not ready")
)

// Gateway error codes carried in error response bodies.
const (
	codeUnauthorized = "unauthorized"
	codeNotReady     = "not_ready"
)

// APIError is a structured gateway failure: HTTP status plus the
// gateway's machine-readable code and human-readable message.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("semdex: gateway returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps well-known gateway codes onto the sentinel errors so
// callers can use errors.Is without looking at codes.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case codeUnauthorized:
		return ErrUnauthorized
	case codeNotReady:
		return ErrGatewayNotReady
	}
	return nil
}
