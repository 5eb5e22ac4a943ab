package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a tool to the model. Parameters is a JSON Schema
// object constraining the arguments the model may supply.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResult is the outcome of one tool execution. Content is the
// observation fed back to the model; Record carries the structured
// payload, when the tool produced one, for stream consumers.
type ToolResult struct {
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Content    string         `json:"content"`
	IsError    bool           `json:"is_error,omitempty"`
	Record     *WeatherRecord `json:"record,omitempty"`
}

// Tool is an executable capability exposed to the model.
type Tool interface {
	Schema() ToolSchema
	Execute(ctx context.Context, args json.RawMessage) (*ToolResult, error)
}

// ArgValidator is implemented by tools that can check arguments against
// their schema without executing. The reasoning loop validates before
// every invocation and treats a violation as a fatal model error.
type ArgValidator interface {
	ValidateArgs(args json.RawMessage) error
}

// ToolExecutor resolves and lists registered tools.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}
