package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserIDSetting is the session variable RLS policies compare row owners against.
const UserIDSetting = "app.current_user_id"

// resetTimeout bounds the RESET run when a scope is released.
const resetTimeout = 5 * time.Second

// ErrEmptyUserID is returned when a tenant scope is requested without a user.
var ErrEmptyUserID = errors.New("tenant scope requires a user id")

// TenantScope is a pooled connection pinned to one user through
// app.current_user_id.
type TenantScope struct {
	Conn   *pgxpool.Conn
	UserID string
}

// Close clears the user setting and returns the connection to the pool. A
// connection whose reset fails is destroyed rather than reused by another user.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()

	if _, err := s.Conn.Exec(ctx, "RESET "+UserIDSetting); err != nil {
		_ = s.Conn.Conn().Close(ctx)
	}
	s.Conn.Release()
	s.Conn = nil
}

// WithTenant acquires a connection scoped to userID. Callers must Close it.
func (db *DB) WithTenant(ctx context.Context, userID string) (*TenantScope, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", UserIDSetting, userID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("set %s: %w", UserIDSetting, err)
	}
	return &TenantScope{Conn: conn, UserID: userID}, nil
}

type scopeKey struct{}

// ContextWithScope stores scope for the repository to reuse.
func ContextWithScope(ctx context.Context, scope *TenantScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope stored by ContextWithScope.
func ScopeFromContext(ctx context.Context) (*TenantScope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*TenantScope)
	return scope, ok && scope != nil
}
