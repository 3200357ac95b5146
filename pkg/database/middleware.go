package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
)

// WithTenantContext pins one user-scoped connection to the request. It must
// run after auth middleware; the JWT subject is the user id.
func WithTenantContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	logger = logger.Named("tenant")
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserIDFromContext(r.Context())
			if userID == "" {
				logger.Error("Tenant middleware reached without authenticated user",
					zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing user context")
				return
			}

			scope, err := db.WithTenant(r.Context(), userID)
			if err != nil {
				logger.Error("Failed to acquire tenant connection",
					zap.String("user_id", userID),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(ContextWithScope(r.Context(), scope)))
		}
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
