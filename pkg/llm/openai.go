package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/retry"
)

// OpenAIChatClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIChatClient struct {
	client            *openai.Client
	model             string
	endpoint          string
	temperature       float32
	maxToolIterations int
	pool              *WorkerPool
	retry             *retry.Config
	logger            *zap.Logger
}

// NewOpenAIChatClient creates a client for cfg. BaseURL is optional and
// defaults to the OpenAI API.
func NewOpenAIChatClient(cfg *Config, logger *zap.Logger) (*OpenAIChatClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	endpoint := clientConfig.BaseURL
	if cfg.BaseURL != "" {
		endpoint = strings.TrimSuffix(cfg.BaseURL, "/")
		clientConfig.BaseURL = endpoint
	}

	return &OpenAIChatClient{
		client:            openai.NewClientWithConfig(clientConfig),
		model:             cfg.Model,
		endpoint:          endpoint,
		temperature:       float32(cfg.Temperature),
		maxToolIterations: cfg.maxToolIterations(),
		pool:              NewWorkerPool(WorkerPoolConfig{MaxConcurrent: cfg.MaxConcurrentTools}, logger),
		retry:             cfg.retryConfig(),
		logger:            logger.Named("llm.openai"),
	}, nil
}

var _ ChatClient = (*OpenAIChatClient)(nil)

func (c *OpenAIChatClient) Model() string {
	return c.model
}

// Chat runs the tool loop: every round the model either answers or asks for
// tool calls, whose results are appended before the next round.
func (c *OpenAIChatClient) Chat(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error) {
	messages := buildOpenAIMessages(req.Messages, req.SystemPrompt)
	tools := buildOpenAITools(req.Tools)
	result := &ChatResult{ToolCalls: []ToolCallRecord{}}

	for iteration := 0; iteration < c.maxToolIterations; iteration++ {
		c.logger.Debug("Chat iteration",
			zap.Int("iteration", iteration),
			zap.Int("message_count", len(messages)))

		resp, err := c.complete(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Tools:       tools,
			Temperature: c.temperature,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, NewErrorWithContext(ErrorTypeUnknown, "no choices in response", false, nil, c.model, c.endpoint, 0)
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			result.Reply = msg.Content
			return result, nil
		}

		calls := make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			calls[i] = ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: ToolCallFunc{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})

		outcomes := c.pool.RunToolCalls(ctx, executor, calls)
		result.record(calls, outcomes)
		for i, call := range calls {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    outcomes[i].Result,
				ToolCallID: call.ID,
			})
		}
	}

	return nil, NewErrorWithContext(ErrorTypeToolLoop,
		fmt.Sprintf("exceeded maximum tool iterations (%d)", c.maxToolIterations), false, nil, c.model, c.endpoint, 0)
}

func (c *OpenAIChatClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	err := retry.DoIfRetryable(ctx, c.retry, func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			llmErr := ClassifyError(err)
			llmErr.Model = c.model
			llmErr.Endpoint = c.endpoint
			c.logger.Debug("Chat completion failed",
				zap.String("error_type", string(llmErr.Type)),
				zap.Bool("retryable", llmErr.Retryable))
			return llmErr
		}
		return nil
	})
	return resp, err
}

func buildOpenAIMessages(messages []Message, systemPrompt string) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage

	if systemPrompt != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		result = append(result, oaiMsg)
	}

	return result
}

func buildOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.Tool, len(tools))
	for i, def := range tools {
		paramsJSON, _ := json.Marshal(def.Parameters)
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(paramsJSON),
			},
		}
	}
	return result
}
