package chi

import (
	"crypto/subtle"
	"net/http"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// TokenHeader carries the shared service credential.
const TokenHeader = "x-service-token"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// ServiceTokenMiddleware returns a middleware that validates the
// x-service-token header against the configured token. An empty configured
// token disables authentication (pass-through).
func ServiceTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Auth disabled, pass everything through
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exempt paths
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(TokenHeader)
			if got == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing "+TokenHeader+" header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, domain.ErrUnauthorized.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
