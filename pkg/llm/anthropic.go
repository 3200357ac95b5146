package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/retry"
)

const (
	defaultAnthropicEndpoint  = "https://api.anthropic.com/v1"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicChatClient talks to the Anthropic Messages API.
type AnthropicChatClient struct {
	client            *anthropic.Client
	model             string
	endpoint          string
	temperature       float32
	maxTokens         int
	maxToolIterations int
	pool              *WorkerPool
	retry             *retry.Config
	logger            *zap.Logger
}

func NewAnthropicChatClient(cfg *Config, logger *zap.Logger) (*AnthropicChatClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	endpoint := defaultAnthropicEndpoint
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		endpoint = strings.TrimSuffix(cfg.BaseURL, "/")
		opts = append(opts, anthropic.WithBaseURL(endpoint))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicChatClient{
		client:            anthropic.NewClient(cfg.APIKey, opts...),
		model:             cfg.Model,
		endpoint:          endpoint,
		temperature:       float32(cfg.Temperature),
		maxTokens:         maxTokens,
		maxToolIterations: cfg.maxToolIterations(),
		pool:              NewWorkerPool(WorkerPoolConfig{MaxConcurrent: cfg.MaxConcurrentTools}, logger),
		retry:             cfg.retryConfig(),
		logger:            logger.Named("llm.anthropic"),
	}, nil
}

var _ ChatClient = (*AnthropicChatClient)(nil)

func (c *AnthropicChatClient) Model() string {
	return c.model
}

func (c *AnthropicChatClient) Chat(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error) {
	system, messages := buildAnthropicMessages(req.Messages, req.SystemPrompt)
	tools := buildAnthropicTools(req.Tools)
	result := &ChatResult{ToolCalls: []ToolCallRecord{}}
	temperature := c.temperature

	for iteration := 0; iteration < c.maxToolIterations; iteration++ {
		c.logger.Debug("Chat iteration",
			zap.Int("iteration", iteration),
			zap.Int("message_count", len(messages)))

		resp, err := c.create(ctx, anthropic.MessagesRequest{
			Model:       anthropic.Model(c.model),
			System:      system,
			Messages:    messages,
			MaxTokens:   c.maxTokens,
			Tools:       tools,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, err
		}

		var text strings.Builder
		var calls []ToolCall
		for _, block := range resp.Content {
			switch {
			case block.Type == anthropic.MessagesContentTypeText && block.Text != nil:
				text.WriteString(*block.Text)
			case block.Type == anthropic.MessagesContentTypeToolUse && block.MessageContentToolUse != nil:
				use := block.MessageContentToolUse
				calls = append(calls, ToolCall{
					ID:   use.ID,
					Type: "function",
					Function: ToolCallFunc{
						Name:      use.Name,
						Arguments: string(use.Input),
					},
				})
			}
		}

		if len(calls) == 0 {
			result.Reply = text.String()
			return result, nil
		}

		c.logger.Debug("Model requested tools",
			zap.String("stop_reason", string(resp.StopReason)),
			zap.Int("tool_call_count", len(calls)))

		messages = append(messages, anthropic.Message{
			Role:    anthropic.RoleAssistant,
			Content: resp.Content,
		})

		outcomes := c.pool.RunToolCalls(ctx, executor, calls)
		result.record(calls, outcomes)

		var contents []anthropic.MessageContent
		for i, call := range calls {
			contents = append(contents, anthropic.NewToolResultsMessage(call.ID, outcomes[i].Result, outcomes[i].Failed).Content...)
		}
		messages = append(messages, anthropic.Message{
			Role:    anthropic.RoleUser,
			Content: contents,
		})
	}

	return nil, NewErrorWithContext(ErrorTypeToolLoop,
		fmt.Sprintf("exceeded maximum tool iterations (%d)", c.maxToolIterations), false, nil, c.model, c.endpoint, 0)
}

func (c *AnthropicChatClient) create(ctx context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error) {
	var resp anthropic.MessagesResponse
	err := retry.DoIfRetryable(ctx, c.retry, func() error {
		var err error
		resp, err = c.client.CreateMessages(ctx, req)
		if err != nil {
			llmErr := ClassifyError(err)
			llmErr.Model = c.model
			llmErr.Endpoint = c.endpoint
			c.logger.Debug("Messages request failed",
				zap.String("error_type", string(llmErr.Type)),
				zap.Bool("retryable", llmErr.Retryable))
			return llmErr
		}
		return nil
	})
	return resp, err
}

// buildAnthropicMessages moves system turns into the system prompt, which the
// Messages API takes separately.
func buildAnthropicMessages(messages []Message, systemPrompt string) (string, []anthropic.Message) {
	system := []string{}
	if systemPrompt != "" {
		system = append(system, systemPrompt)
	}

	var result []anthropic.Message
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			result = append(result, anthropic.NewAssistantTextMessage(msg.Content))
		default:
			result = append(result, anthropic.NewUserTextMessage(msg.Content))
		}
	}
	return strings.Join(system, "\n\n"), result
}

func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolDefinition, len(tools))
	for i, def := range tools {
		result[i] = anthropic.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		}
	}
	return result
}
