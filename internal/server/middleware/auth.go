// Package middleware holds the HTTP middleware for the registration API.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const bearerPrefix = "bearer "

// TokenVerifier validates an API client bearer token and returns its subject.
// *security.ClientVerifier implements it.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}

// RequireClient rejects requests without a valid API client bearer token and
// stores the client subject in the request context. A nil verifier lets every
// request through; config only allows that outside production.
func RequireClient(verifier TokenVerifier, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				log.Warn().Str("request_id", chimw.GetReqID(r.Context())).Msg("unauthorized: missing bearer token")
				writeUnauthorized(w)
				return
			}
			client, err := verifier.Verify(token)
			if err != nil {
				log.Warn().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("unauthorized: invalid client token")
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), client)))
		})
	}
}

// extractBearer returns the Bearer token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  http.StatusUnauthorized,
		"data":    []any{},
		"message": "Unauthorized",
	})
}
