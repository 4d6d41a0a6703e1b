package gemini

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

// ProviderVertex names clients created for the Vertex AI backend
const ProviderVertex = "vertex"

// modelsAPI is the part of genai.Models the client uses
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	List(ctx context.Context, config *genai.ListModelsConfig) (genai.Page[genai.Model], error)
}

// operationsAPI polls long-running operations
type operationsAPI interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// filesAPI downloads generated media that is returned by reference
type filesAPI interface {
	Download(ctx context.Context, uri genai.DownloadURI, config *genai.DownloadFileConfig) ([]byte, error)
}

// Client implements the llm.Client interface for Gemini, on either the
// Gemini API or Vertex AI
type Client struct {
	*llm.BaseClient

	models     modelsAPI
	operations operationsAPI
	files      filesAPI

	model         string
	maxTokens     int
	search        bool
	maxToolRounds int

	videoPollInterval time.Duration
	videoTimeout      time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithGoogleSearch enables or disables offering the built-in Google Search
// tool to prompts that look like web searches. It is enabled by default.
func WithGoogleSearch(enabled bool) Option {
	return func(c *Client) {
		c.search = enabled
	}
}

// WithMaxToolRounds stops Ask with an error after n tool rounds. Zero, the
// default, means no limit.
func WithMaxToolRounds(n int) Option {
	return func(c *Client) {
		c.maxToolRounds = n
	}
}

// WithVideoPolling sets the first poll interval of a video operation and
// how long to wait for it overall
func WithVideoPolling(interval, timeout time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.videoPollInterval = interval
		}
		if timeout > 0 {
			c.videoTimeout = timeout
		}
	}
}

// Ensure Client implements llm.Client at compile time.
var _ llm.Client = (*Client)(nil)

// NewClient creates a client for the Gemini API. The API key is taken from
// the config or from GEMINI_API_KEY or GOOGLE_API_KEY.
func NewClient(config llm.ClientConfig, opts ...Option) (*Client, error) {
	apiKey := config.ResolveAPIKey("GEMINI_API_KEY", "GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, llm.NewMissingAPIKeyError(aimessage.ProviderGemini)
	}
	return newGenAIClient(config, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, opts...)
}

// NewVertexClient creates a client for Vertex AI using application default
// credentials. The project comes from Extra["project"] or
// GOOGLE_CLOUD_PROJECT, the location from Extra["location"] or
// GOOGLE_CLOUD_LOCATION, defaulting to us-central1. An explicit APIKey
// selects Vertex AI express mode instead.
func NewVertexClient(config llm.ClientConfig, opts ...Option) (*Client, error) {
	gc := &genai.ClientConfig{Backend: genai.BackendVertexAI}
	if config.APIKey != "" {
		gc.APIKey = config.APIKey
		return newGenAIClient(config, gc, opts...)
	}

	gc.Project = config.ExtraValue("project", config.Lookup("GOOGLE_CLOUD_PROJECT"))
	gc.Location = config.ExtraValue("location", config.Lookup("GOOGLE_CLOUD_LOCATION"))
	if gc.Location == "" {
		gc.Location = "us-central1"
	}
	if gc.Project == "" {
		return nil, &llm.Error{
			Code:     llm.ErrCodeInvalidRequest,
			Message:  "a Google Cloud project is required for Vertex AI",
			Type:     "validation_error",
			Provider: ProviderVertex,
		}
	}
	return newGenAIClient(config, gc, opts...)
}

func newGenAIClient(config llm.ClientConfig, gc *genai.ClientConfig, opts ...Option) (*Client, error) {
	if config.BaseURL != "" {
		gc.HTTPOptions.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		gc.HTTPOptions.Timeout = &config.Timeout
	}

	provider := providerName(gc.Backend)
	client, err := genai.NewClient(context.Background(), gc)
	if err != nil {
		return nil, &llm.Error{
			Code:     llm.ErrCodeInvalidRequest,
			Message:  "failed to create genai client: " + err.Error(),
			Type:     "internal_error",
			Provider: provider,
		}
	}
	return newClient(provider, client.Models, client.Operations, client.Files, config, opts...), nil
}

func newClient(provider string, models modelsAPI, operations operationsAPI, files filesAPI, config llm.ClientConfig, opts ...Option) *Client {
	model := config.Model
	if model == "" {
		model = string(DefaultModel)
	}
	c := &Client{
		BaseClient:        llm.NewBaseClient(provider, config),
		models:            models,
		operations:        operations,
		files:             files,
		model:             model,
		maxTokens:         config.MaxTokens,
		search:            true,
		videoPollInterval: 10 * time.Second,
		videoTimeout:      10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// safeIntToInt32 safely converts int to int32
func safeIntToInt32(val int) int32 {
	if val > 2147483647 {
		return 2147483647
	}
	if val < -2147483648 {
		return -2147483648
	}
	return int32(val)
}

func (c *Client) modelFor(req llm.AskRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}

// newConfig builds the generation config of a turn. Native structured
// output (response MIME type and schema) is used when no functions are
// offered; alongside functions the format is described in the system prompt.
func (c *Client) newConfig(req llm.AskRequest, system string, selection toolSelection) (*genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = safeIntToInt32(maxTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Temperature)
	}

	switch selection {
	case selectFunctions:
		tools, err := convertTools(c.Tools())
		if err != nil {
			return nil, &llm.Error{Code: llm.ErrCodeInvalidRequest, Message: err.Error(), Type: "validation_error", Provider: c.Provider()}
		}
		cfg.Tools = tools
	case selectSearch:
		cfg.Tools = searchTool()
	}

	if so := req.StructuredOutput; so != nil {
		if selection == selectFunctions || !so.IsJSON() {
			if instructions := so.Instructions(); instructions != "" {
				system = strings.TrimSpace(system + "\n\n" + instructions)
			}
		} else {
			cfg.ResponseMIMEType = "application/json"
			schema, err := so.Schema()
			if err != nil {
				c.Logger().Warn("failed to build response schema", "error", err)
			}
			if len(schema) > 0 {
				if cfg.ResponseSchema, err = convertSchema(schema); err != nil {
					return nil, &llm.Error{Code: llm.ErrCodeInvalidRequest, Message: err.Error(), Type: "validation_error", Provider: c.Provider()}
				}
			}
		}
	}

	cfg.SystemInstruction = systemInstruction(system)
	return cfg, nil
}

// Ask sends the prompt and runs the functions the model calls until it
// answers without calls. Calls returned together run concurrently and are
// answered in one follow-up request.
func (c *Client) Ask(ctx context.Context, req llm.AskRequest) (*llm.AIMessage, error) {
	conv, err := c.PrepareConversationContext(ctx, req)
	if err != nil {
		return nil, err
	}

	model := c.modelFor(req)
	meta := aimessage.Meta{
		Input:     req.Prompt,
		Model:     model,
		Provider:  c.Provider(),
		UserID:    req.UserID,
		SessionID: req.SessionID,
		TurnID:    llm.NewTurnID(),
	}

	selection := selectTools(req.Prompt, c.Tools(), req.StructuredOutput != nil, c.search)
	if selection == selectSearch {
		c.Logger().Debug("offering google search", "model", model)
	}
	cfg, err := c.newConfig(req, conv.SystemPrompt, selection)
	if err != nil {
		return nil, err
	}

	messages := append([]llm.Message(nil), conv.Messages...)
	var produced []llm.Message
	var resp *genai.GenerateContentResponse

	for round := 0; ; round++ {
		resp, err = c.models.GenerateContent(ctx, model, convertMessages(messages), cfg)
		if err != nil {
			return nil, convertError(c.Provider(), err)
		}
		calls, text := functionCalls(resp)
		if len(calls) == 0 {
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

		if err := c.runParallel(ctx, calls); err != nil {
			return nil, err
		}

		exchange := []llm.Message{
			llm.NewToolInvocationMessage(text, calls),
			llm.NewToolResultMessage(calls),
		}
		messages = append(messages, exchange...)
		produced = append(produced, exchange...)
		meta.ToolCalls = append(meta.ToolCalls, calls...)
		meta.PriorUsage.Add(aimessage.GeminiUsage(resp))
	}

	text := aimessage.GeminiText(resp)
	var fallback string
	if text == "" && hasImages(conv.Messages[len(conv.Messages)-1]) {
		fallback = visionFallback(resp)
		text = fallback
	}
	if req.StructuredOutput != nil {
		meta.Output = c.StructuredValue(text, req.StructuredOutput)
	}
	msg, _ := aimessage.FromGemini(resp, meta)
	if fallback != "" {
		msg.BackfillText(fallback)
	}

	produced = append(produced, llm.NewTextMessage(llm.RoleAssistant, msg.Response))
	if err := c.UpdateMemory(ctx, conv, produced...); err != nil {
		return nil, err
	}
	return msg, nil
}

func hasImages(msg llm.Message) bool {
	for _, content := range msg.Content {
		if f, ok := content.(*llm.FileContent); ok && f.IsImage() {
			return true
		}
	}
	return false
}

// visionFallback recovers some text for an image prompt the model answered
// without visible text: its thoughts if it only thought, or the reason it
// stopped
func visionFallback(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Thought {
				sb.WriteString(part.Text)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			return text
		}
	}
	if candidate.FinishReason != "" && candidate.FinishReason != genai.FinishReasonStop {
		return "No description available: generation stopped with " + string(candidate.FinishReason)
	}
	return ""
}

// AskStream streams the answer text. Functions are not offered to the model.
func (c *Client) AskStream(ctx context.Context, req llm.AskRequest) *llm.TextStream {
	conv, err := c.PrepareConversationContext(ctx, req)
	if err != nil {
		return llm.NewFailedStream(err)
	}
	cfg, err := c.newConfig(req, conv.SystemPrompt, selectNone)
	if err != nil {
		return llm.NewFailedStream(err)
	}
	model := c.modelFor(req)
	contents := convertMessages(conv.Messages)

	source := func(ctx context.Context, yield func(string) bool) error {
		for chunk, err := range c.models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				return convertError(c.Provider(), err)
			}
			text := aimessage.GeminiText(chunk)
			if text == "" {
				continue
			}
			if !yield(text) {
				return nil
			}
		}
		return nil
	}
	return llm.NewTextStream(ctx, source, c.StreamCompletion(conv))
}

// BatchAsk answers the requests one after the other. GenerateContent has
// no synchronous batch primitive.
func (c *Client) BatchAsk(ctx context.Context, reqs []llm.AskRequest) ([]*llm.AIMessage, error) {
	return llm.AskSequentially(ctx, reqs, c.Ask)
}

// ListModels returns the names of the models available to the client
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.models.List(ctx, nil)
	var names []string
	for err == nil {
		for _, m := range page.Items {
			if m != nil {
				names = append(names, strings.TrimPrefix(m.Name, "models/"))
			}
		}
		if page.NextPageToken == "" {
			return names, nil
		}
		page, err = page.Next(ctx)
	}
	if errors.Is(err, genai.ErrPageDone) {
		return names, nil
	}
	return nil, convertError(c.Provider(), err)
}

// GetModelInfo returns information about the default model
func (c *Client) GetModelInfo() llm.ModelInfo {
	caps := capabilitiesFor(c.model)
	return llm.ModelInfo{
		Name:              c.model,
		Provider:          c.Provider(),
		MaxTokens:         caps.maxTokens,
		SupportsTools:     caps.supportsTools,
		SupportsVision:    caps.supportsVision,
		SupportsStreaming: true,
	}
}

// Close cleans up any resources used by the client
func (c *Client) Close() error {
	return nil
}
