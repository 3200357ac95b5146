// Package mcpauth authenticates MCP requests with RFC 6750 bearer challenges,
// so MCP clients know to start their OAuth flow.
package mcpauth

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
)

// Realm is advertised in every WWW-Authenticate challenge.
const Realm = "homebrew"

// Middleware wraps the MCP transport.
type Middleware struct {
	authService auth.AuthService
	logger      *zap.Logger
}

func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger.Named("mcp_auth"),
	}
}

// RequireAuth validates the bearer token and requires a subject claim, which
// becomes the user id every tool call is scoped to.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		switch {
		case errors.Is(err, auth.ErrMissingAuthorization):
			// No credentials at all: challenge without an error code (RFC 6750 3.1).
			challenge(w, http.StatusUnauthorized, "", "")
			return
		case err != nil:
			m.logger.Debug("MCP auth failed: invalid token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			challenge(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		if err := m.authService.RequireSubject(claims); err != nil {
			m.logger.Debug("MCP auth failed: missing subject",
				zap.String("path", r.URL.Path))
			challenge(w, http.StatusUnauthorized, "invalid_token", "The access token does not identify a user")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims, token)))
	})
}

// challenge writes an RFC 6750 WWW-Authenticate response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func challenge(w http.ResponseWriter, status int, errorCode, description string) {
	value := fmt.Sprintf(`Bearer realm=%q`, Realm)
	if errorCode != "" {
		value += fmt.Sprintf(`, error=%q, error_description=%q`, errorCode, description)
	}
	w.Header().Set("WWW-Authenticate", value)
	w.WriteHeader(status)
}
