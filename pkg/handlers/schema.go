package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
	"github.com/homebrew-hq/homebrew-engine/pkg/services"
)

// SchemaHandler exposes the read-only registry view.
type SchemaHandler struct {
	schemaService services.SchemaService
	logger        *zap.Logger
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(schemaService services.SchemaService, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{
		schemaService: schemaService,
		logger:        logger.Named("schema_handler"),
	}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/schema", authMiddleware.RequireAuth(h.GetSchema))
	mux.HandleFunc("GET /api/schema/{module}", authMiddleware.RequireAuth(h.GetModule))
}

// GetSchema handles GET /api/schema.
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	response := ApiResponse{Success: true, Data: h.schemaService.Describe()}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}

// GetModule handles GET /api/schema/{module}.
func (h *SchemaHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	module, err := h.schemaService.DescribeModule(r.PathValue("module"))
	if err != nil {
		status, code := http.StatusInternalServerError, "internal_error"
		if errors.Is(err, apperrors.ErrNotFound) {
			status, code = http.StatusNotFound, "not_found"
		}
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: module}); err != nil {
		h.logger.Error("Failed to encode module response", zap.Error(err))
	}
}
