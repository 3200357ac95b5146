package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/homebrew-hq/homebrew-engine/pkg/llm"
)

// ErrorResponse is the text body of a tool result with IsError set. Only
// rejections the caller can correct are reported this way; infrastructure
// failures surface as JSON-RPC errors.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResult creates a tool result carrying an ErrorResponse.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	body, _ := json.Marshal(ErrorResponse{Error: true, Code: code, Message: message})
	result := mcp.NewToolResultText(string(body))
	result.IsError = true
	return result
}

// fromExecutorOutput converts the chat executor's output into a tool result.
// A rejected query arrives as an llm.ToolErrorBody and becomes an error result.
func fromExecutorOutput(out string) *mcp.CallToolResult {
	var rejected llm.ToolErrorBody
	if json.Unmarshal([]byte(out), &rejected) == nil && rejected.Error != "" {
		return NewErrorResult(rejected.Error, rejected.Message)
	}
	return mcp.NewToolResultText(out)
}
