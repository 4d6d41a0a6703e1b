// Client interfaces
package llm

import (
	"context"
)

// ToolRegistrar is the tool registration half of a client
type ToolRegistrar interface {
	// RegisterTool registers a synchronous tool; the last registration of a name wins
	RegisterTool(name, description string, schema map[string]any, fn ToolFunc)
	// RegisterAsyncTool registers a tool that reports on a channel
	RegisterAsyncTool(name, description string, schema map[string]any, fn AsyncToolFunc)
	// RegisterToolDefinition registers a prepared definition, such as one built with NewTool
	RegisterToolDefinition(def ToolDefinition)
}

// Client defines the surface every provider adapter implements. Callers
// should depend on this interface only, never on vendor payload shapes.
type Client interface {
	ToolRegistrar

	// Ask runs one turn, including any tool rounds the model requests
	Ask(ctx context.Context, req AskRequest) (*AIMessage, error)

	// AskStream streams the answer text. Tools are not executed mid-stream.
	AskStream(ctx context.Context, req AskRequest) *TextStream

	// BatchAsk answers several independent requests, natively batched where
	// the vendor supports it and sequentially otherwise
	BatchAsk(ctx context.Context, reqs []AskRequest) ([]*AIMessage, error)

	// GetModelInfo returns information about the default model
	GetModelInfo() ModelInfo

	// Close cleans up any resources used by the client
	Close() error
}
