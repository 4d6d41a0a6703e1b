package openai

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

// StructuredMode selects how structured output is requested from the vendor
type StructuredMode int

const (
	// StructuredJSONSchema sends response_format json_schema with the reflected schema
	StructuredJSONSchema StructuredMode = iota
	// StructuredJSONObject sends response_format json_object and describes the schema in the system prompt
	StructuredJSONObject
	// StructuredPrompt only describes the expected format in the system prompt
	StructuredPrompt
)

// Translator turns a final Chat Completions response into the unified message
type Translator func(resp openai.ChatCompletionResponse, meta aimessage.Meta) (*llm.AIMessage, llm.CompletionUsage)

// Client implements the llm.Client interface for OpenAI-compatible vendors
type Client struct {
	*llm.BaseClient

	backend   Backend
	model     string
	maxTokens int

	structuredMode     StructuredMode
	structuredFollowUp bool
	translate          Translator
	maxToolRounds      int
}

// Option configures a Client
type Option func(*Client)

// WithStructuredMode sets how structured output is requested
func WithStructuredMode(mode StructuredMode) Option {
	return func(c *Client) {
		c.structuredMode = mode
	}
}

// WithStructuredFollowUp is for vendors that reject tools and a response
// format in the same request. When both are requested, the tool rounds run
// without a response format and one extra request obtains the structure.
func WithStructuredFollowUp() Option {
	return func(c *Client) {
		c.structuredFollowUp = true
	}
}

// WithTranslator replaces aimessage.FromOpenAI
func WithTranslator(fn Translator) Option {
	return func(c *Client) {
		if fn != nil {
			c.translate = fn
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

// NewClient creates a client for the OpenAI API, or for any endpoint
// speaking its protocol when a base URL is configured. The API key is taken
// from the config or from OPENAI_API_KEY.
func NewClient(config llm.ClientConfig, opts ...Option) (*Client, error) {
	apiKey := config.ResolveAPIKey("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, llm.NewMissingAPIKeyError(aimessage.ProviderOpenAI)
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = config.Lookup("OPENAI_BASE_URL")
	}

	backend := NewSDKBackend(aimessage.ProviderOpenAI, apiKey, baseURL, config.Timeout)
	return NewClientWithBackend(backend, config, string(DefaultModel), opts...), nil
}

// NewClientWithBackend creates a client over any OpenAI-compatible backend
func NewClientWithBackend(backend Backend, config llm.ClientConfig, defaultModel string, opts ...Option) *Client {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	c := &Client{
		BaseClient: llm.NewBaseClient(backend.Name(), config),
		backend:    backend,
		model:      model,
		maxTokens:  config.MaxTokens,
		translate:  aimessage.FromOpenAI,
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

// requestOptions controls the parts of a request that vary between rounds
type requestOptions struct {
	tools      bool
	structured *llm.StructuredOutputConfig
}

func (c *Client) newRequest(req llm.AskRequest, system string, messages []llm.Message, opts requestOptions) openai.ChatCompletionRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	so := opts.structured
	if so != nil {
		switch c.structuredMode {
		case StructuredJSONSchema:
			if ResponseFormat(so) == nil {
				system = appendInstructions(system, so)
			}
		default:
			system = appendInstructions(system, so)
		}
	}

	body := openai.ChatCompletionRequest{
		Model:    c.modelFor(req),
		Messages: append(SystemMessage(system), ConvertMessages(messages)...),
	}
	if isReasoningModel(body.Model) {
		body.MaxCompletionTokens = maxTokens
	} else {
		body.MaxTokens = maxTokens
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}
	if opts.tools {
		body.Tools = ConvertTools(c.Tools())
	}
	if so != nil {
		switch c.structuredMode {
		case StructuredJSONSchema:
			body.ResponseFormat = ResponseFormat(so)
		case StructuredJSONObject:
			if so.IsJSON() {
				body.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
			}
		}
	}
	return body
}

func appendInstructions(system string, so *llm.StructuredOutputConfig) string {
	instructions := so.Instructions()
	if instructions == "" {
		return system
	}
	if system == "" {
		return instructions
	}
	return system + "\n\n" + instructions
}

// runCalls runs the calls that decoded cleanly. Calls carrying an argument
// decoding error are returned to the model as failed.
func (c *Client) runCalls(ctx context.Context, calls []llm.ToolCall) error {
	for i := range calls {
		if calls[i].Failed() {
			continue
		}
		if err := c.RunToolCall(ctx, &calls[i]); err != nil {
			return err
		}
	}
	return nil
}

// Ask sends the prompt and runs the tools the model asks for until it
// answers without tool calls
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

	followUp := c.structuredFollowUp && req.StructuredOutput != nil && c.HasTools()
	opts := requestOptions{tools: true, structured: req.StructuredOutput}
	if followUp {
		opts.structured = nil
	}

	messages := append([]llm.Message(nil), conv.Messages...)
	var produced []llm.Message
	var resp openai.ChatCompletionResponse

	for round := 0; ; round++ {
		resp, err = c.backend.CreateChatCompletion(ctx, c.newRequest(req, conv.SystemPrompt, messages, opts))
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
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

		choice := resp.Choices[0]
		calls := ParseToolCalls(choice.Message)
		if err := c.runCalls(ctx, calls); err != nil {
			return nil, err
		}

		exchange := []llm.Message{
			llm.NewToolInvocationMessage(choice.Message.Content, calls),
			llm.NewToolResultMessage(calls),
		}
		messages = append(messages, exchange...)
		produced = append(produced, exchange...)
		meta.ToolCalls = append(meta.ToolCalls, calls...)
		meta.PriorUsage.Add(aimessage.OpenAIUsage(resp))
	}

	if followUp {
		resp, err = c.structuredRequest(ctx, req, conv.SystemPrompt, messages, resp, &meta)
		if err != nil {
			return nil, err
		}
	}

	if req.StructuredOutput != nil {
		// translators own the response text, so parse what they extract
		draft, _ := c.translate(resp, meta)
		meta.Output = c.StructuredValue(draft.Response, req.StructuredOutput)
	}
	msg, _ := c.translate(resp, meta)

	produced = append(produced, llm.NewTextMessage(llm.RoleAssistant, msg.Response))
	if err := c.UpdateMemory(ctx, conv, produced...); err != nil {
		return nil, err
	}
	return msg, nil
}

// structuredRequest asks once more, without tools, for the answer of the
// tool rounds in the requested format
func (c *Client) structuredRequest(ctx context.Context, req llm.AskRequest, system string, messages []llm.Message,
	answer openai.ChatCompletionResponse, meta *aimessage.Meta) (openai.ChatCompletionResponse, error) {
	c.Logger().Debug("requesting structured output after tool rounds", "tool_calls", len(meta.ToolCalls))

	var text string
	if len(answer.Choices) > 0 {
		text = answer.Choices[0].Message.Content
	}
	followUp := append(messages,
		llm.NewTextMessage(llm.RoleAssistant, text),
		llm.NewTextMessage(llm.RoleUser, "Restate your previous answer in the requested format."),
	)
	meta.PriorUsage.Add(aimessage.OpenAIUsage(answer))

	return c.backend.CreateChatCompletion(ctx, c.newRequest(req, system, followUp, requestOptions{structured: req.StructuredOutput}))
}

// AskStream streams the answer text. Tools are not offered to the model.
func (c *Client) AskStream(ctx context.Context, req llm.AskRequest) *llm.TextStream {
	conv, err := c.PrepareConversationContext(ctx, req)
	if err != nil {
		return llm.NewFailedStream(err)
	}
	body := c.newRequest(req, conv.SystemPrompt, conv.Messages, requestOptions{})

	source := func(ctx context.Context, yield func(string) bool) error {
		return c.backend.StreamChatCompletion(ctx, body, yield)
	}
	return llm.NewTextStream(ctx, source, c.StreamCompletion(conv))
}

// BatchAsk answers the requests one after the other. Chat Completions has
// no synchronous batch primitive.
func (c *Client) BatchAsk(ctx context.Context, reqs []llm.AskRequest) ([]*llm.AIMessage, error) {
	return llm.AskSequentially(ctx, reqs, c.Ask)
}

// ListModels returns the model ids served by the backend, when it can list them
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	lister, ok := c.backend.(interface {
		ListModels(ctx context.Context) ([]string, error)
	})
	if !ok {
		return []string{c.model}, nil
	}
	return lister.ListModels(ctx)
}

// GetModelInfo returns information about the default model
func (c *Client) GetModelInfo() llm.ModelInfo {
	return llm.ModelInfo{
		Name:              c.model,
		Provider:          c.Provider(),
		MaxTokens:         modelValue(c.model, contextLength),
		SupportsTools:     true,
		SupportsVision:    modelValue(c.model, visionSupport),
		SupportsStreaming: true,
	}
}

// Close cleans up any resources used by the client
func (c *Client) Close() error {
	return nil
}
