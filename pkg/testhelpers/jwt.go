// Package testhelpers provides fixtures for homebrew-engine tests.
package testhelpers

import (
	"encoding/base64"
	"encoding/json"
)

// DevToken returns an unsigned (alg none) JWT for userID carrying the
// homebrew audience. Only a JWKS client with verification disabled accepts it.
// An empty userID yields a token without a subject.
func DevToken(userID, email string) string {
	claims := map[string]any{"aud": "homebrew"}
	if userID != "" {
		claims["sub"] = userID
	}
	if email != "" {
		claims["email"] = email
	}
	payload, _ := json.Marshal(claims)

	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + enc.EncodeToString(payload) + "."
}

// BearerDevToken is DevToken formatted as an Authorization header value.
func BearerDevToken(userID, email string) string {
	return "Bearer " + DevToken(userID, email)
}
