package openrouter

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/revrost/go-openrouter"
	"github.com/sashabaranov/go-openai"

	"github.com/inercia/go-llm-unify/pkg/llm"
	oai "github.com/inercia/go-llm-unify/pkg/providers/openai"
)

const (
	// ProviderName is stamped on messages and errors
	ProviderName = "openrouter"

	// DefaultModel is used when the config names none
	DefaultModel = "openai/gpt-4o-mini"
)

// Backend sends OpenAI-shaped requests through go-openrouter
type Backend struct {
	client *openrouter.Client
}

var _ oai.Backend = (*Backend)(nil)

// NewBackend creates the OpenRouter backend
func NewBackend(config llm.ClientConfig, apiKey string) *Backend {
	cfg := openrouter.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	if siteURL := config.ExtraValue("site_url", ""); siteURL != "" {
		cfg.HttpReferer = siteURL
	}
	if appName := config.ExtraValue("app_name", ""); appName != "" {
		cfg.XTitle = appName
	}
	if config.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	return &Backend{client: openrouter.NewClientWithConfig(*cfg)}
}

// NewClient creates an OpenAI-style client backed by OpenRouter. The API
// key is taken from the config or from OPENROUTER_API_KEY.
func NewClient(config llm.ClientConfig, opts ...oai.Option) (*oai.Client, error) {
	apiKey := config.ResolveAPIKey("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, llm.NewMissingAPIKeyError(ProviderName)
	}
	if config.BaseURL == "" {
		config.BaseURL = config.Lookup("OPENROUTER_BASE_URL")
	}
	opts = append([]oai.Option{oai.WithStructuredMode(oai.StructuredPrompt)}, opts...)
	return oai.NewClientWithBackend(NewBackend(config, apiKey), config, DefaultModel, opts...), nil
}

// Name returns the provider name
func (b *Backend) Name() string {
	return ProviderName
}

// CreateChatCompletion performs a chat completion request
func (b *Backend) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := b.client.CreateChatCompletion(ctx, convertRequest(req))
	if err != nil {
		return openai.ChatCompletionResponse{}, convertError(err)
	}
	return convertResponse(resp), nil
}

// StreamChatCompletion performs a streaming chat completion request
func (b *Backend) StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, yield func(string) bool) error {
	orReq := convertRequest(req)
	orReq.Tools = nil
	orReq.Stream = true

	stream, err := b.client.CreateChatCompletionStream(ctx, orReq)
	if err != nil {
		return convertError(err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return convertError(err)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if !yield(chunk.Choices[0].Delta.Content) {
			return nil
		}
	}
}

// ListModels returns the ids of the models OpenRouter can route to
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	models, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func convertRequest(req openai.ChatCompletionRequest) openrouter.ChatCompletionRequest {
	out := openrouter.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]openrouter.ChatCompletionMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.MaxCompletionTokens > 0 {
		out.MaxTokens = req.MaxCompletionTokens
	}
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, convertMessage(msg))
	}
	for _, tool := range req.Tools {
		if tool.Function == nil {
			continue
		}
		out.Tools = append(out.Tools, openrouter.Tool{
			Type: openrouter.ToolType(tool.Type),
			Function: &openrouter.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}
	return out
}

func convertMessage(msg openai.ChatCompletionMessage) openrouter.ChatCompletionMessage {
	out := openrouter.ChatCompletionMessage{
		Role:       msg.Role,
		Content:    openrouter.Content{Text: msg.Content},
		ToolCallID: msg.ToolCallID,
	}
	if len(msg.MultiContent) > 0 {
		parts := make([]openrouter.ChatMessagePart, 0, len(msg.MultiContent))
		for _, part := range msg.MultiContent {
			switch part.Type {
			case openai.ChatMessagePartTypeText:
				parts = append(parts, openrouter.ChatMessagePart{Type: openrouter.ChatMessagePartTypeText, Text: part.Text})
			case openai.ChatMessagePartTypeImageURL:
				if part.ImageURL != nil {
					parts = append(parts, openrouter.ChatMessagePart{
						Type:     openrouter.ChatMessagePartTypeImageURL,
						ImageURL: &openrouter.ChatMessageImageURL{URL: part.ImageURL.URL},
					})
				}
			}
		}
		out.Content = openrouter.Content{Multi: parts}
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openrouter.ToolCall{
			ID:   tc.ID,
			Type: openrouter.ToolType(tc.Type),
			Function: openrouter.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

func convertResponse(resp openrouter.ChatCompletionResponse) openai.ChatCompletionResponse {
	out := openai.ChatCompletionResponse{ID: resp.ID, Model: resp.Model}
	if resp.Usage != nil {
		out.Usage = openai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, choice := range resp.Choices {
		msg := openai.ChatCompletionMessage{
			Role:    choice.Message.Role,
			Content: choice.Message.Content.Text,
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out.Choices = append(out.Choices, openai.ChatCompletionChoice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: openai.FinishReason(choice.FinishReason),
		})
	}
	return out
}

// convertError maps go-openrouter errors onto *llm.Error
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openrouter.APIError
	if errors.As(err, &apiErr) {
		llmErr := llm.NewAPIError(ProviderName, apiErr.HTTPStatusCode, apiErr.Message)
		if code, ok := apiErr.Code.(string); ok && code != "" {
			llmErr.Code = code
		}
		llmErr.Type = errorType(apiErr.HTTPStatusCode)
		return llmErr
	}

	var reqErr *openrouter.RequestError
	if errors.As(err, &reqErr) {
		llmErr := llm.NewAPIError(ProviderName, reqErr.HTTPStatusCode, reqErr.Error())
		llmErr.Type = errorType(reqErr.HTTPStatusCode)
		return llmErr
	}

	return err
}

func errorType(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "authentication_error"
	case status == http.StatusPaymentRequired:
		return "billing_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status == http.StatusNotFound:
		return "model_error"
	case status >= 400 && status < 500:
		return "validation_error"
	default:
		return "api_error"
	}
}
