package api

import (
	"crypto/subtle"
	"net/http"
)

const internalKeyHeader = "X-Internal-API-Key"

// InternalAuthMiddleware checks the shared key the API gateway sends on every
// internal call. An empty requiredKey disables the check for local runs.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	expected := []byte(requiredKey)
	return func(next http.Handler) http.Handler {
		if len(expected) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(r.Header.Get(internalKeyHeader))
			if subtle.ConstantTimeCompare(provided, expected) != 1 {
				respondWithJSON(w, http.StatusUnauthorized, errorResponse{Code: codeUnauthorized, Message: "missing or invalid internal API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
