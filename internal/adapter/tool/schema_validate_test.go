package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"nimbus-ai/internal/domain"
)

// stubTool is a minimal tool for testing the registry and validation.
type stubTool struct {
	name   string
	schema json.RawMessage
	result *domain.ToolResult
	err    error
	calls  int
}

func (s *stubTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        s.name,
		Description: "stub",
		Parameters:  s.schema,
	}
}

func (s *stubTool) Execute(_ context.Context, _ json.RawMessage) (*domain.ToolResult, error) {
	s.calls++
	return s.result, s.err
}

const stubSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"}
	},
	"required": ["name"],
	"additionalProperties": false
}`

func TestSchemaValidationValidArgs(t *testing.T) {
	inner := &stubTool{
		name:   "test",
		schema: json.RawMessage(stubSchema),
		result: &domain.ToolResult{Content: "ok"},
	}

	wrapped, err := WithSchemaValidation(inner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := wrapped.Execute(context.Background(), json.RawMessage(`{"name":"alice"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "ok" {
		t.Errorf("expected 'ok', got %q", result.Content)
	}
	if inner.calls != 1 {
		t.Errorf("inner tool called %d times, want 1", inner.calls)
	}
}

func TestSchemaValidationRejections(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{name: "missing required field", args: `{}`},
		{name: "wrong type", args: `{"name":42}`},
		{name: "unknown property", args: `{"name":"alice","extra":true}`},
		{name: "not json", args: `{"name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &stubTool{
				name:   "test",
				schema: json.RawMessage(stubSchema),
				result: &domain.ToolResult{Content: "ok"},
			}
			wrapped, err := WithSchemaValidation(inner)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			validator, ok := wrapped.(domain.ArgValidator)
			if !ok {
				t.Fatal("wrapped tool should implement ArgValidator")
			}
			if err := validator.ValidateArgs(json.RawMessage(tt.args)); !errors.Is(err, domain.ErrOracleParse) {
				t.Errorf("ValidateArgs: expected ErrOracleParse, got %v", err)
			}

			if _, err := wrapped.Execute(context.Background(), json.RawMessage(tt.args)); err == nil {
				t.Error("Execute should reject invalid args")
			}
			if inner.calls != 0 {
				t.Errorf("inner tool called %d times on invalid args, want 0", inner.calls)
			}
		})
	}
}

func TestSchemaValidationNoSchema(t *testing.T) {
	inner := &stubTool{name: "bare", result: &domain.ToolResult{Content: "ok"}}

	wrapped, err := WithSchemaValidation(inner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrapped != domain.Tool(inner) {
		t.Error("tool without schema should come back unwrapped")
	}
}

func TestSchemaValidationBadSchema(t *testing.T) {
	inner := &stubTool{
		name:   "broken",
		schema: json.RawMessage(`{"type": 42}`),
	}

	if _, err := WithSchemaValidation(inner); err == nil {
		t.Fatal("expected compile error for malformed schema")
	}
}
