package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"nimbus-ai/internal/domain"
)

// Compile-time interface assertions.
var (
	_ domain.Tool         = (*SchemaValidatingTool)(nil)
	_ domain.ArgValidator = (*SchemaValidatingTool)(nil)
)

// SchemaValidatingTool wraps a Tool with JSON Schema validation. The
// reasoning loop calls ValidateArgs before every invocation; a failure
// there means the model broke the tool contract and the run aborts.
type SchemaValidatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps a tool so that its arguments can be checked
// against the tool's JSON Schema before execution.
// Returns error if the schema fails to compile.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil // no schema to validate against
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Schema().Name, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Schema().Name, err)
	}

	return &SchemaValidatingTool{inner: t, schema: compiled}, nil
}

// Schema implements domain.Tool.
func (s *SchemaValidatingTool) Schema() domain.ToolSchema { return s.inner.Schema() }

// ValidateArgs implements domain.ArgValidator.
func (s *SchemaValidatingTool) ValidateArgs(args json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(args, &v); err != nil {
		return domain.NewDomainError("SchemaValidatingTool.ValidateArgs", domain.ErrOracleParse,
			fmt.Sprintf("arguments are not valid JSON: %v", err))
	}
	if err := s.schema.Validate(v); err != nil {
		return domain.NewDomainError("SchemaValidatingTool.ValidateArgs", domain.ErrOracleParse,
			fmt.Sprintf("arguments violate schema: %v", err))
	}
	return nil
}

// Execute validates args and delegates to the inner tool.
func (s *SchemaValidatingTool) Execute(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	if err := s.ValidateArgs(args); err != nil {
		return nil, err
	}
	return s.inner.Execute(ctx, args)
}
