// Tool and tool call types and functionality
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// ToolFunc is the single callable shape every registered tool is stored as
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// ToolOutcome is what an asynchronous tool delivers on its channel
type ToolOutcome struct {
	Result any
	Err    error
}

// AsyncToolFunc is a tool that completes in the background and reports on
// the returned channel
type AsyncToolFunc func(ctx context.Context, args map[string]any) <-chan ToolOutcome

// ToolDefinition describes a tool the model may call
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"input_schema"`
	Handler     ToolFunc       `json:"-"`
}

// ToolCall is one tool invocation requested by a model, together with its outcome
type ToolCall struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Arguments     map[string]any `json:"arguments,omitempty"`
	Result        any            `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time,omitempty"`
}

// Failed reports whether the call ended with an error
func (c ToolCall) Failed() bool {
	return c.Error != ""
}

// ResultString serializes the result for sending back to a vendor
func (c ToolCall) ResultString() string {
	switch r := c.Result.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(b)
	}
}

// ParseToolArguments decodes a JSON arguments string as sent by
// OpenAI-compatible vendors. An empty string yields an empty map; slightly
// malformed JSON is repaired before giving up.
func ParseToolArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	err := json.Unmarshal([]byte(raw), &args)
	if err == nil {
		return args, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr == nil {
		args = map[string]any{}
		if json.Unmarshal([]byte(repaired), &args) == nil {
			return args, nil
		}
	}
	return map[string]any{}, fmt.Errorf("invalid tool arguments: %w", err)
}

// NewTool builds a ToolDefinition from a typed function. The input schema is
// reflected from I and arguments are decoded into I before fn runs.
//
// Example:
//
//	type AddInput struct {
//	    A int `json:"a" required:"true"`
//	    B int `json:"b" required:"true"`
//	}
//	add, _ := NewTool("add", "Adds two integers", func(ctx context.Context, in AddInput) (int, error) {
//	    return in.A + in.B, nil
//	})
func NewTool[I any, O any](name, description string, fn func(ctx context.Context, input I) (O, error)) (ToolDefinition, error) {
	var zero I
	schema, err := SchemaFromStructAsMap(zero)
	if err != nil {
		return ToolDefinition{}, fmt.Errorf("failed to build schema for tool %s: %w", name, err)
	}

	handler := func(ctx context.Context, args map[string]any) (any, error) {
		var input I
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, fmt.Errorf("invalid arguments for tool %s: %w", name, err)
		}
		return fn(ctx, input)
	}

	return ToolDefinition{
		Name:        name,
		Description: description,
		Schema:      schema,
		Handler:     handler,
	}, nil
}

// awaitAsync adapts an AsyncToolFunc into a ToolFunc
func awaitAsync(fn AsyncToolFunc) ToolFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		select {
		case outcome, ok := <-fn(ctx, args):
			if !ok {
				return nil, fmt.Errorf("async tool closed without a result")
			}
			return outcome.Result, outcome.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
