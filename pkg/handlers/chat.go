package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/audit"
	"github.com/homebrew-hq/homebrew-engine/pkg/auth"
	"github.com/homebrew-hq/homebrew-engine/pkg/llm"
	"github.com/homebrew-hq/homebrew-engine/pkg/logging"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
)

const (
	maxChatBodyBytes = 256 << 10
	maxChatMessages  = 50
)

// ChatMessage is a prior conversation turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []ChatMessage `json:"messages"`
}

// ChatResponse is the data payload of a successful chat turn.
type ChatResponse struct {
	ConversationID string               `json:"conversation_id"`
	Model          string               `json:"model"`
	Reply          string               `json:"reply"`
	ToolCalls      []llm.ToolCallRecord `json:"tool_calls"`
}

// ChatHandler answers natural-language questions with the query tools bound
// to the caller's identity.
type ChatHandler struct {
	client   llm.ChatClient // nil when no provider is configured
	registry *schema.Registry
	runner   llm.QueryRunner
	tools    []llm.ToolDefinition
	logger   *zap.Logger
}

// NewChatHandler creates a new ChatHandler. client may be nil, in which case
// every chat request answers 503.
func NewChatHandler(client llm.ChatClient, registry *schema.Registry, runner llm.QueryRunner, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		client:   client,
		registry: registry,
		runner:   runner,
		tools:    llm.QueryTools(registry),
		logger:   logger.Named("chat_handler"),
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/chat", authMiddleware.RequireAuth(h.Chat))
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		h.writeError(w, http.StatusServiceUnavailable, "ai_not_configured", "No AI provider is configured")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Missing user context")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	messages, err := toLLMMessages(req.Messages)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	conversationID := req.ConversationID
	if _, err := uuid.Parse(conversationID); err != nil {
		conversationID = uuid.NewString()
	}

	ctx := audit.WithClientIP(r.Context(), clientIP(r))
	executor := llm.NewQueryToolExecutor(h.registry, h.runner, userID, h.logger)
	result, err := h.client.Chat(ctx, &llm.ChatRequest{
		SystemPrompt: llm.DefaultSystemPrompt,
		Messages:     messages,
		Tools:        h.tools,
	}, executor)
	if err != nil {
		h.writeChatError(w, conversationID, userID, err)
		return
	}

	h.logger.Info("Chat turn completed",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
		zap.Int("tool_calls", len(result.ToolCalls)))

	toolCalls := result.ToolCalls
	if toolCalls == nil {
		toolCalls = []llm.ToolCallRecord{}
	}
	response := ApiResponse{
		Success: true,
		Data: ChatResponse{
			ConversationID: conversationID,
			Model:          h.client.Model(),
			Reply:          result.Reply,
			ToolCalls:      toolCalls,
		},
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

// toLLMMessages accepts only user and assistant turns; system prompts and
// tool results are never taken from the client.
func toLLMMessages(in []ChatMessage) ([]llm.Message, error) {
	if len(in) == 0 {
		return nil, errors.New("messages must not be empty")
	}
	if len(in) > maxChatMessages {
		in = in[len(in)-maxChatMessages:]
	}

	out := make([]llm.Message, 0, len(in))
	for _, m := range in {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != llm.RoleUser && role != llm.RoleAssistant {
			return nil, errors.New("message role must be user or assistant")
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	if out[len(out)-1].Role != llm.RoleUser {
		return nil, errors.New("the last message must come from the user")
	}
	return out, nil
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, conversationID, userID string, err error) {
	h.logger.Error("Chat turn failed",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
		zap.String("error", logging.SanitizeError(err)))

	switch {
	case errors.Is(err, context.Canceled):
		h.writeError(w, http.StatusRequestTimeout, "cancelled", "The request was cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, "timeout", "The AI provider did not answer in time")
	default:
		switch llm.GetErrorType(err) {
		case llm.ErrorTypeCircuitOpen, llm.ErrorTypeRateLimited:
			h.writeError(w, http.StatusServiceUnavailable, string(llm.GetErrorType(err)), "The AI provider is temporarily unavailable")
		case llm.ErrorTypeToolLoop:
			h.writeError(w, http.StatusUnprocessableEntity, "tool_loop", "The assistant could not finish answering")
		default:
			h.writeError(w, http.StatusBadGateway, "ai_provider_error", "The AI provider request failed")
		}
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
