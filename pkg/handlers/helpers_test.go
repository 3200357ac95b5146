package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/audit"
	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
	"github.com/homebrew-hq/homebrew-engine/pkg/models"
)

// stubAuthService authenticates every request carrying a bearer token as the
// token's text.
type stubAuthService struct{}

func (stubAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, "", errors.New("missing token")
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: token}}, token, nil
}

func (stubAuthService) RequireSubject(claims *auth.Claims) error {
	if claims.Subject == "" {
		return auth.ErrMissingSubject
	}
	return nil
}

func newTestAuthMiddleware() *auth.Middleware {
	return auth.NewMiddleware(stubAuthService{}, zap.NewNop())
}

func passthroughTenant(next http.HandlerFunc) http.HandlerFunc { return next }

type fakeDispatcher struct {
	rows    []models.Row
	err     error
	lastReq *models.QueryRequest
	lastUID string
	lastIP  string
	calls   int
}

func (f *fakeDispatcher) Execute(ctx context.Context, req *models.QueryRequest, userID string) ([]models.Row, error) {
	f.calls++
	f.lastReq = req
	f.lastUID = userID
	f.lastIP = audit.ClientIPFromContext(ctx)
	return f.rows, f.err
}

func (f *fakeDispatcher) Authorize(req *models.QueryRequest, userID string) (*models.AuthorizedQuery, error) {
	return nil, f.err
}
