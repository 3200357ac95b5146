package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrMissingSubject is returned for tokens that do not name a user.
var ErrMissingSubject = errors.New("missing subject in token")

// AuthService authenticates HTTP requests. Both the REST middleware and the
// MCP middleware sit on top of it.
type AuthService interface {
	// ValidateRequest extracts the JWT (see ExtractToken) and validates it.
	// It returns the claims and the raw token.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireSubject rejects claims that do not identify a user.
	RequireSubject(claims *Claims) error
}

type authService struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthService creates an AuthService that validates tokens with validator.
func NewAuthService(validator TokenValidator, logger *zap.Logger) AuthService {
	return &authService{
		validator: validator,
		logger:    logger.Named("auth"),
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	token, source, err := ExtractToken(r)
	if err != nil {
		s.logger.Debug("No usable JWT in request",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, "", err
	}

	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.String("path", r.URL.Path),
			zap.String("token_source", string(source)),
			zap.Error(err))
		return nil, "", err
	}
	return claims, token, nil
}

func (s *authService) RequireSubject(claims *Claims) error {
	if claims.UserID() == "" {
		return ErrMissingSubject
	}
	return nil
}

var _ AuthService = (*authService)(nil)
