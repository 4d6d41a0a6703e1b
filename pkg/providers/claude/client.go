package claude

import (
	"context"
	"strings"
	"time"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

// Client implements the llm.Client interface for Claude
type Client struct {
	*llm.BaseClient

	transport transport
	model     string
	maxTokens int

	batchPollInterval time.Duration
	maxToolRounds     int
}

// Option configures a Client
type Option func(*Client)

// WithBatchPollInterval sets how often a submitted batch is polled
func WithBatchPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.batchPollInterval = d
		}
	}
}

// WithMaxToolRounds stops Ask with an error after n tool rounds. Zero, the
// default, means no limit.
func WithMaxToolRounds(n int) Option {
	return func(c *Client) {
		c.maxToolRounds = n
	}
}

// Ensure Client implements llm.Client at compile time.
var _ llm.Client = (*Client)(nil)

// NewClient creates a client for the Anthropic Messages API. The API key is
// taken from the config or from ANTHROPIC_API_KEY.
func NewClient(config llm.ClientConfig, opts ...Option) (*Client, error) {
	apiKey := config.ResolveAPIKey("ANTHROPIC_API_KEY", "CLAUDE_API_KEY")
	if apiKey == "" {
		return nil, llm.NewMissingAPIKeyError(aimessage.ProviderClaude)
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = config.Lookup("ANTHROPIC_BASE_URL")
	}

	t := newHTTPTransport(apiKey, baseURL, config.Timeout)
	return newClient(aimessage.ProviderClaude, t, config, string(DefaultModel), opts...), nil
}

// NewBedrockClient creates a client invoking Claude through AWS Bedrock.
// Credentials come from the default AWS chain; the region from
// Extra["region"], AWS_REGION or us-east-1.
func NewBedrockClient(config llm.ClientConfig, opts ...Option) (*Client, error) {
	t, err := newBedrockTransport(context.Background(), config)
	if err != nil {
		return nil, err
	}
	return newClient(ProviderBedrock, t, config, string(DefaultBedrockModel), opts...), nil
}

func newClient(provider string, t transport, config llm.ClientConfig, defaultModel string, opts ...Option) *Client {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	c := &Client{
		BaseClient:        llm.NewBaseClient(provider, config),
		transport:         t,
		model:             model,
		maxTokens:         maxTokens,
		batchPollInterval: defaultBatchPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) modelFor(req llm.AskRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}

// systemPrompt appends the structured output instructions, since the
// Messages API has no native response format
func systemPrompt(base string, so *llm.StructuredOutputConfig) string {
	if so == nil {
		return base
	}
	instructions := so.Instructions()
	if instructions == "" {
		return base
	}
	if base == "" {
		return instructions
	}
	return base + "\n\n" + instructions
}

func (c *Client) newRequest(req llm.AskRequest, system string, messages []llm.Message, withTools bool) *messagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	body := &messagesRequest{
		Model:       c.modelFor(req),
		MaxTokens:   maxTokens,
		System:      systemPrompt(system, req.StructuredOutput),
		Messages:    convertMessages(messages),
		Temperature: req.Temperature,
	}
	if withTools {
		body.Tools = convertTools(c.Tools())
	}
	return body
}

// Ask sends the prompt and runs the tools Claude asks for until it stops
// with anything other than tool_use
func (c *Client) Ask(ctx context.Context, req llm.AskRequest) (*llm.AIMessage, error) {
	conv, err := c.PrepareConversationContext(ctx, req)
	if err != nil {
		return nil, err
	}

	meta := aimessage.Meta{
		Input:     req.Prompt,
		Model:     c.modelFor(req),
		Provider:  c.Provider(),
		UserID:    req.UserID,
		SessionID: req.SessionID,
		TurnID:    llm.NewTurnID(),
	}

	messages := append([]llm.Message(nil), conv.Messages...)
	var produced []llm.Message
	var resp *aimessage.ClaudeResponse

	for round := 0; ; round++ {
		resp, err = c.transport.send(ctx, c.newRequest(req, conv.SystemPrompt, messages, true))
		if err != nil {
			return nil, err
		}

		uses := resp.ToolUses()
		if resp.StopReason != "tool_use" || len(uses) == 0 {
			break
		}
		if c.maxToolRounds > 0 && round >= c.maxToolRounds {
			return nil, &llm.Error{
				Code:     llm.ErrCodeInvalidRequest,
				Message:  "too many tool rounds",
				Type:     "tool_error",
				Provider: c.Provider(),
			}
		}

		calls := make([]llm.ToolCall, 0, len(uses))
		for _, use := range uses {
			calls = append(calls, llm.ToolCall{ID: use.ID, Name: use.Name, Arguments: use.Input})
		}
		if _, err := c.RunToolCalls(ctx, calls); err != nil {
			return nil, err
		}

		exchange := []llm.Message{
			llm.NewToolInvocationMessage(resp.Text(), calls),
			llm.NewToolResultMessage(calls),
		}
		messages = append(messages, exchange...)
		produced = append(produced, exchange...)
		meta.ToolCalls = append(meta.ToolCalls, calls...)
		meta.PriorUsage.Add(resp.CompletionUsage())
	}

	text := strings.TrimSpace(resp.Text())
	if req.StructuredOutput != nil {
		meta.Output = c.StructuredValue(text, req.StructuredOutput)
	}
	msg, _ := aimessage.FromClaude(resp, meta)

	produced = append(produced, llm.NewTextMessage(llm.RoleAssistant, text))
	if err := c.UpdateMemory(ctx, conv, produced...); err != nil {
		return nil, err
	}
	return msg, nil
}

// AskStream streams the answer text. Tools are not offered to the model.
func (c *Client) AskStream(ctx context.Context, req llm.AskRequest) *llm.TextStream {
	conv, err := c.PrepareConversationContext(ctx, req)
	if err != nil {
		return llm.NewFailedStream(err)
	}
	body := c.newRequest(req, conv.SystemPrompt, conv.Messages, false)

	source := func(ctx context.Context, yield func(string) bool) error {
		return c.transport.stream(ctx, body, yield)
	}
	return llm.NewTextStream(ctx, source, c.StreamCompletion(conv))
}

// ListModels returns the model ids the account can use
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return c.transport.listModels(ctx)
}

// GetModelInfo returns information about the default model
func (c *Client) GetModelInfo() llm.ModelInfo {
	_, batch := c.transport.(batchTransport)
	return llm.ModelInfo{
		Name:              c.model,
		Provider:          c.Provider(),
		MaxTokens:         contextWindow,
		SupportsTools:     true,
		SupportsVision:    supportsVision(c.model),
		SupportsStreaming: true,
		SupportsBatch:     batch,
	}
}

// Close cleans up any resources used by the client
func (c *Client) Close() error {
	return nil
}
