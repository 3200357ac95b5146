// Package llm runs AI chat turns against a language model provider and
// exposes HomeBrew's scoped query tools to it.
package llm

import (
	"context"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolCallFunc `json:"function"`
}

// ToolCallFunc holds the function name and its raw JSON arguments.
type ToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolExecutor runs a tool call and returns the text handed back to the model.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, arguments string) (string, error)
}

// ChatRequest is a single chat turn.
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
}

// ToolCallRecord is a tool call made while answering a chat turn.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	Failed    bool   `json:"failed,omitempty"`
}

// ChatResult is the model's final reply plus every tool call it made.
type ChatResult struct {
	Reply     string           `json:"reply"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
}

// ChatClient answers a chat turn, calling tools through executor until the
// model produces a reply or the tool iteration limit is reached.
type ChatClient interface {
	Chat(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error)
	Model() string
}

// DefaultSystemPrompt frames the model as HomeBrew's assistant.
const DefaultSystemPrompt = `You are the HomeBrew assistant. HomeBrew tracks the user's budget, workouts, nutrition, habits and todos.
Use the query tools to read the user's own records before answering questions about them.
Only the tables listed in each tool exist. Results are already limited to the signed-in user.
If a tool returns an error, correct the arguments and try again, or explain what went wrong.`
