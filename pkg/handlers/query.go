package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/audit"
	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
	"github.com/homebrew-hq/homebrew-engine/pkg/logging"
	"github.com/homebrew-hq/homebrew-engine/pkg/models"
	"github.com/homebrew-hq/homebrew-engine/pkg/services"
)

// maxQueryBodyBytes bounds a POST /api/query body.
const maxQueryBodyBytes = 64 << 10

// QueryHandler serves direct structured queries.
type QueryHandler struct {
	dispatcher services.QueryDispatcher
	logger     *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(dispatcher services.QueryDispatcher, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		dispatcher: dispatcher,
		logger:     logger.Named("query_handler"),
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/query", authMiddleware.RequireAuth(tenantMiddleware(h.Execute)))
}

// Execute handles POST /api/query.
// The user scope always comes from the token; any owner field in the body is ignored.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req models.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ctx := audit.WithClientIP(r.Context(), clientIP(r))
	rows, err := h.dispatcher.Execute(ctx, &req, userID)
	if err != nil {
		writeQueryError(w, h.logger, err)
		return
	}
	if rows == nil {
		rows = []models.Row{}
	}

	response := ApiResponse{
		Success: true,
		Data:    models.QueryResult{Rows: rows, RowCount: len(rows)},
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode query response", zap.Error(err))
	}
}

// writeQueryError maps dispatcher failures onto HTTP statuses: validation
// kinds are the caller's fault, infrastructure kinds are ours.
func writeQueryError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		status  int
		code    string
		message string
	)

	if qe, ok := apperrors.AsQueryError(err); ok {
		code = string(qe.Kind)
		if qe.IsValidation() {
			status, message = http.StatusBadRequest, qe.Message
		} else {
			status, message = http.StatusInternalServerError, "The query could not be completed"
			logger.Error("Query failed",
				zap.String("kind", code),
				zap.String("table", qe.Table),
				zap.String("error", logging.SanitizeError(err)))
		}
	} else if errors.Is(err, apperrors.ErrNoUserID) {
		status, code, message = http.StatusUnauthorized, "unauthorized", "Missing user context"
	} else {
		status, code, message = http.StatusInternalServerError, "internal_error", "The query could not be completed"
		logger.Error("Unexpected query failure", zap.String("error", logging.SanitizeError(err)))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
