package auth

import (
	"errors"
	"net/http"
	"strings"
)

// CookieName is the cookie browser clients carry their JWT in.
const CookieName = "homebrew_jwt"

var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// TokenSource names where ExtractToken found the token, for logs.
type TokenSource string

const (
	SourceCookie TokenSource = "cookie"
	SourceHeader TokenSource = "header"
)

// ExtractToken returns the request's JWT. The cookie wins over the
// Authorization header so a browser session cannot be overridden by a
// script-supplied header.
func ExtractToken(r *http.Request) (string, TokenSource, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, SourceCookie, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "", ErrMissingAuthorization
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" || strings.ContainsRune(token, ' ') {
		return "", "", ErrInvalidAuthFormat
	}
	return token, SourceHeader, nil
}
