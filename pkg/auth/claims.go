// Package auth provides JWT-based authentication for homebrew-engine.
// Tokens are issued by the HomeBrew identity provider and validated against
// its JWKS endpoints. The token subject is the HomeBrew user id every query
// is scoped to.
package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is the aud value every accepted token must carry.
const Audience = "homebrew"

// Claims represents the JWT claims issued to HomeBrew users.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UserID returns the subject, or "" for nil claims.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

func (c *Claims) hasAudience() bool {
	return slices.Contains(c.Audience, Audience)
}
