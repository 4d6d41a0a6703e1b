package deepseek

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cohesion-org/deepseek-go"
	"github.com/sashabaranov/go-openai"

	"github.com/inercia/go-llm-unify/pkg/llm"
	oai "github.com/inercia/go-llm-unify/pkg/providers/openai"
)

const (
	// ProviderName is stamped on messages and errors
	ProviderName = "deepseek"

	// DefaultModel is used when the config names none
	DefaultModel = "deepseek-chat"
)

// Backend sends OpenAI-shaped requests through deepseek-go
type Backend struct {
	client *deepseek.Client
}

var _ oai.Backend = (*Backend)(nil)

// NewBackend creates the DeepSeek backend
func NewBackend(config llm.ClientConfig, apiKey string) (*Backend, error) {
	var opts []deepseek.Option
	if config.BaseURL != "" {
		opts = append(opts, deepseek.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, deepseek.WithTimeout(config.Timeout))
	}

	if len(opts) == 0 {
		return &Backend{client: deepseek.NewClient(apiKey)}, nil
	}
	client, err := deepseek.NewClientWithOptions(apiKey, opts...)
	if err != nil {
		return nil, &llm.Error{
			Code:     llm.ErrCodeInvalidRequest,
			Message:  "failed to create DeepSeek client: " + err.Error(),
			Type:     "configuration_error",
			Provider: ProviderName,
		}
	}
	return &Backend{client: client}, nil
}

// NewClient creates an OpenAI-style client backed by DeepSeek. The API key
// is taken from the config or from DEEPSEEK_API_KEY.
func NewClient(config llm.ClientConfig, opts ...oai.Option) (*oai.Client, error) {
	apiKey := config.ResolveAPIKey("DEEPSEEK_API_KEY")
	if apiKey == "" {
		return nil, llm.NewMissingAPIKeyError(ProviderName)
	}
	backend, err := NewBackend(config, apiKey)
	if err != nil {
		return nil, err
	}
	opts = append([]oai.Option{oai.WithStructuredMode(oai.StructuredPrompt)}, opts...)
	return oai.NewClientWithBackend(backend, config, DefaultModel, opts...), nil
}

// Name returns the provider name
func (b *Backend) Name() string {
	return ProviderName
}

// CreateChatCompletion performs a chat completion request
func (b *Backend) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := b.client.CreateChatCompletion(ctx, &deepseek.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    convertMessages(req.Messages),
		Tools:       convertTools(req.Tools),
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req),
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, convertError(err)
	}
	return convertResponse(resp), nil
}

// StreamChatCompletion performs a streaming chat completion request
func (b *Backend) StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, yield func(string) bool) error {
	stream, err := b.client.CreateChatCompletionStream(ctx, &deepseek.StreamChatCompletionRequest{
		Model:       req.Model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req),
		Stream:      true,
	})
	if err != nil {
		return convertError(err)
	}
	defer func() { _ = stream.Close() }()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return convertError(err)
		}
		if chunk == nil || len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if !yield(chunk.Choices[0].Delta.Content) {
			return nil
		}
	}
}

func maxTokens(req openai.ChatCompletionRequest) int {
	if req.MaxCompletionTokens > 0 {
		return req.MaxCompletionTokens
	}
	return req.MaxTokens
}

// convertMessages flattens multi-part content to text, DeepSeek chat models
// only read strings
func convertMessages(messages []openai.ChatCompletionMessage) []deepseek.ChatCompletionMessage {
	out := make([]deepseek.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		dsMsg := deepseek.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if len(msg.MultiContent) > 0 {
			dsMsg.Content = flattenParts(msg.MultiContent)
		}
		for i, tc := range msg.ToolCalls {
			dsMsg.ToolCalls = append(dsMsg.ToolCalls, deepseek.ToolCall{
				Index: i,
				ID:    tc.ID,
				Type:  string(tc.Type),
				Function: deepseek.ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, dsMsg)
	}
	return out
}

func flattenParts(parts []openai.ChatMessagePart) string {
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case openai.ChatMessagePartTypeText:
			texts = append(texts, part.Text)
		case openai.ChatMessagePartTypeImageURL:
			texts = append(texts, "[image omitted: this model does not accept images]")
		}
	}
	return strings.Join(texts, "\n\n")
}

func convertTools(tools []openai.Tool) []deepseek.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]deepseek.Tool, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		out = append(out, deepseek.Tool{
			Type: string(tool.Type),
			Function: deepseek.Function{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  convertParameters(tool.Function.Parameters),
			},
		})
	}
	return out
}

// convertParameters maps a JSON Schema object onto deepseek.FunctionParameters
func convertParameters(params any) *deepseek.FunctionParameters {
	schema, ok := params.(map[string]any)
	if !ok {
		return &deepseek.FunctionParameters{Type: "object"}
	}

	result := &deepseek.FunctionParameters{Type: "object"}
	if t, ok := schema["type"].(string); ok && t != "" {
		result.Type = t
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = props
	}
	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []any:
		for _, item := range required {
			if s, ok := item.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	return result
}

func convertResponse(resp *deepseek.ChatCompletionResponse) openai.ChatCompletionResponse {
	out := openai.ChatCompletionResponse{}
	if resp == nil {
		return out
	}
	out.ID = resp.ID
	out.Model = resp.Model
	out.Usage = openai.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	for _, choice := range resp.Choices {
		msg := openai.ChatCompletionMessage{
			Role:    choice.Message.Role,
			Content: choice.Message.Content,
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

// convertError classifies deepseek-go errors, which only carry a message
func convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	llmErr := llm.NewAPIError(ProviderName, 0, msg)
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key"):
		llmErr.Type = "authentication_error"
		llmErr.StatusCode = http.StatusUnauthorized
	case strings.Contains(lower, "402") || strings.Contains(lower, "insufficient balance"):
		llmErr.Type = "billing_error"
		llmErr.StatusCode = http.StatusPaymentRequired
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		llmErr.Type = "rate_limit_error"
		llmErr.StatusCode = http.StatusTooManyRequests
	case strings.Contains(lower, "503") || strings.Contains(lower, "server overloaded"):
		llmErr.Type = "overloaded_error"
		llmErr.StatusCode = http.StatusServiceUnavailable
	}
	return llmErr
}
