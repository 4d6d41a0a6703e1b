package llm

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// BaseClient holds what every adapter shares: the tool registry, the memory
// handle and the helpers around them. Adapters embed it and implement Ask,
// AskStream and BatchAsk against their own vendor protocol.
type BaseClient struct {
	provider string
	logger   *slog.Logger
	memory   Memory

	mu    sync.RWMutex
	tools map[string]ToolDefinition
}

// NewBaseClient creates the shared part of an adapter
func NewBaseClient(provider string, config ClientConfig) *BaseClient {
	return &BaseClient{
		provider: provider,
		logger:   config.GetLogger(provider),
		memory:   config.Memory,
		tools:    make(map[string]ToolDefinition),
	}
}

// Provider returns the provider name
func (c *BaseClient) Provider() string {
	return c.provider
}

// Logger returns the provider-tagged logger
func (c *BaseClient) Logger() *slog.Logger {
	return c.logger
}

// Memory returns the conversation memory, which may be nil
func (c *BaseClient) Memory() Memory {
	return c.memory
}

// RegisterTool registers a synchronous tool
func (c *BaseClient) RegisterTool(name, description string, schema map[string]any, fn ToolFunc) {
	c.RegisterToolDefinition(ToolDefinition{Name: name, Description: description, Schema: schema, Handler: fn})
}

// RegisterAsyncTool registers a channel-based tool. It is adapted to a
// ToolFunc here so execution never has to tell the two kinds apart.
func (c *BaseClient) RegisterAsyncTool(name, description string, schema map[string]any, fn AsyncToolFunc) {
	c.RegisterToolDefinition(ToolDefinition{Name: name, Description: description, Schema: schema, Handler: awaitAsync(fn)})
}

// RegisterToolDefinition registers def, replacing any tool with the same name
func (c *BaseClient) RegisterToolDefinition(def ToolDefinition) {
	if def.Schema == nil {
		def.Schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[def.Name] = def
}

// Tools returns the registered tools sorted by name
func (c *BaseClient) Tools() []ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(c.tools))
	for _, def := range c.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// HasTools reports whether any tool is registered
func (c *BaseClient) HasTools() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools) > 0
}

// ExecuteTool runs the named tool. It returns an error matching
// ErrToolNotRegistered when the name is unknown.
func (c *BaseClient) ExecuteTool(ctx context.Context, name string, args map[string]any) (any, error) {
	c.mu.RLock()
	def, ok := c.tools[name]
	c.mu.RUnlock()
	if !ok {
		return nil, NewToolNotRegisteredError(name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return def.Handler(ctx, args)
}

// RunToolCall executes call and records its result or error and the time
// it took. Only an unregistered tool is returned as an error; failures of
// the tool itself are kept on the call.
func (c *BaseClient) RunToolCall(ctx context.Context, call *ToolCall) error {
	start := time.Now()
	result, err := c.ExecuteTool(ctx, call.Name, call.Arguments)
	call.ExecutionTime = time.Since(start)

	if errors.Is(err, ErrToolNotRegistered) {
		return err
	}
	if err != nil {
		c.logger.Warn("tool execution failed", "tool", call.Name, "tool_call_id", call.ID, "error", err)
		call.Error = err.Error()
		call.Result = nil
		return nil
	}
	call.Result = result
	call.Error = ""
	return nil
}

// RunToolCalls executes calls one after the other
func (c *BaseClient) RunToolCalls(ctx context.Context, calls []ToolCall) ([]ToolCall, error) {
	for i := range calls {
		if err := c.RunToolCall(ctx, &calls[i]); err != nil {
			return calls, err
		}
	}
	return calls, nil
}

// ConversationContext is the prepared input of one turn
type ConversationContext struct {
	// Messages is the stored history followed by the new user message
	Messages []Message
	// Session is nil when the request carries no user and session ids
	Session *ConversationSession
	// SystemPrompt is the explicit prompt, or the one stored with the session
	SystemPrompt string
}

// PrepareConversationContext loads the session named by req (creating it on
// the first turn) and appends the new user message.
func (c *BaseClient) PrepareConversationContext(ctx context.Context, req AskRequest) (*ConversationContext, error) {
	userMessage, err := NewUserMessage(req.Prompt, req.Files)
	if err != nil {
		return nil, err
	}

	conv := &ConversationContext{SystemPrompt: req.SystemPrompt}
	if c.memory != nil && req.UserID != "" && req.SessionID != "" {
		session, err := c.memory.GetSession(ctx, req.UserID, req.SessionID)
		if errors.Is(err, ErrSessionNotFound) {
			session, err = c.memory.CreateSession(ctx, req.UserID, req.SessionID, req.SystemPrompt)
		}
		if err != nil {
			return nil, err
		}
		conv.Session = session
		conv.Messages = append(conv.Messages, session.Messages...)
		if conv.SystemPrompt == "" {
			conv.SystemPrompt = session.SystemPrompt
		}
	}

	conv.Messages = append(conv.Messages, userMessage)
	return conv, nil
}

// NewUserMessage builds the user message of a turn from a prompt and attachments
func NewUserMessage(prompt string, files []Attachment) (Message, error) {
	msg := Message{Role: RoleUser}
	for _, file := range files {
		content, err := EncodeAttachment(file)
		if err != nil {
			return Message{}, err
		}
		msg.AddContent(content)
	}
	if prompt != "" {
		msg.AddContent(NewTextContent(prompt))
	}
	return msg, nil
}

// ParseStructuredOutput coerces text per config, falling back to text
func (c *BaseClient) ParseStructuredOutput(text string, config *StructuredOutputConfig) any {
	return ParseStructuredOutput(c.logger, text, config)
}

// StructuredValue parses text like ParseStructuredOutput for a translator's
// Meta.Output. It returns nil when the text could not be coerced, leaving the
// translator to fall back to the response text.
func (c *BaseClient) StructuredValue(text string, config *StructuredOutputConfig) any {
	if config == nil {
		return nil
	}
	value := c.ParseStructuredOutput(text, config)
	if s, ok := value.(string); ok && s == text {
		return nil
	}
	return value
}

// UpdateMemory stores the conversation followed by produced, replacing the
// stored session. It does nothing for requests without a session.
func (c *BaseClient) UpdateMemory(ctx context.Context, conv *ConversationContext, produced ...Message) error {
	if c.memory == nil || conv == nil || conv.Session == nil {
		return nil
	}

	session := conv.Session.DeepCopy()
	session.Messages = make([]Message, 0, len(conv.Messages)+len(produced))
	session.Messages = append(session.Messages, conv.Messages...)
	session.Messages = append(session.Messages, produced...)
	if session.SystemPrompt == "" {
		session.SystemPrompt = conv.SystemPrompt
	}
	session.UpdatedAt = time.Now().UTC()

	if err := c.memory.UpdateSession(ctx, session); err != nil {
		c.logger.Error("failed to update conversation memory",
			"user_id", session.UserID, "session_id", session.SessionID, "error", err)
		return err
	}
	return nil
}

// StreamCompletion returns the hook that appends the streamed answer to memory
func (c *BaseClient) StreamCompletion(conv *ConversationContext) StreamCompletion {
	return func(ctx context.Context, text string) error {
		return c.UpdateMemory(ctx, conv, NewTextMessage(RoleAssistant, text))
	}
}

// AskSequentially answers reqs one by one with ask, for vendors without a
// native batch API. The first failure aborts the batch.
func AskSequentially(ctx context.Context, reqs []AskRequest, ask func(context.Context, AskRequest) (*AIMessage, error)) ([]*AIMessage, error) {
	results := make([]*AIMessage, 0, len(reqs))
	for _, req := range reqs {
		msg, err := ask(ctx, req)
		if err != nil {
			return nil, err
		}
		results = append(results, msg)
	}
	return results, nil
}
