package llm

import (
	"fmt"
	"strings"

	"github.com/homebrew-hq/homebrew-engine/pkg/models"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
)

// ToolDefinition defines a tool that can be called by the LLM.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ParameterProperty defines a parameter property in JSON Schema format.
type ParameterProperty struct {
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Enum        []string       `json:"enum,omitempty"`
	Items       map[string]any `json:"items,omitempty"`
}

// NewToolDefinition creates a new tool definition with standard JSON Schema parameters.
func NewToolDefinition(name, description string, properties map[string]ParameterProperty, required []string) ToolDefinition {
	props := make(map[string]any)
	for k, v := range properties {
		prop := map[string]any{
			"type":        v.Type,
			"description": v.Description,
		}
		if len(v.Enum) > 0 {
			prop["enum"] = v.Enum
		}
		if v.Items != nil {
			prop["items"] = v.Items
		}
		props[k] = prop
	}
	if required == nil {
		required = []string{}
	}

	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

const queryToolPrefix = "query_"

// QueryToolName returns the function name for a module, e.g. "query_budget".
func QueryToolName(module string) string {
	return queryToolPrefix + strings.ToLower(module)
}

// QueryTools returns one query function per registry module, in registry order.
func QueryTools(registry *schema.Registry) []ToolDefinition {
	modules := registry.Modules()
	tools := make([]ToolDefinition, 0, len(modules))
	for _, m := range modules {
		tools = append(tools, queryTool(m))
	}
	return tools
}

func queryTool(m *schema.Module) ToolDefinition {
	tables := m.Tables()

	var desc strings.Builder
	fmt.Fprintf(&desc, "Read the signed-in user's %s records. Tables and columns:", m.Name())
	for _, table := range tables {
		desc.WriteString("\n- ")
		desc.WriteString(table)
		cols, ok := m.Columns(table)
		if !ok {
			continue
		}
		parts := make([]string, 0, len(cols))
		for _, name := range cols.Names() {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, cols[name].Type))
		}
		desc.WriteString(": ")
		desc.WriteString(strings.Join(parts, ", "))
	}

	operators := make([]string, len(models.SupportedOperators))
	for i, op := range models.SupportedOperators {
		operators[i] = string(op)
	}

	return NewToolDefinition(
		QueryToolName(m.Name()),
		desc.String(),
		map[string]ParameterProperty{
			"table": {
				Type:        "string",
				Description: "The table to read",
				Enum:        tables,
			},
			"select": {
				Type:        "string",
				Description: "Comma-separated column names, or * for every column",
			},
			"filters": {
				Type:        "array",
				Description: "Conditions that must all match",
				Items: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field":    map[string]any{"type": "string", "description": "Column to compare"},
						"operator": map[string]any{"type": "string", "enum": operators},
						"value":    map[string]any{"description": "Value to compare against (dates as YYYY-MM-DD)"},
					},
					"required": []string{"field", "operator", "value"},
				},
			},
		},
		[]string{"table"},
	)
}
