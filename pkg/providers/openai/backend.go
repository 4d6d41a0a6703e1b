package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Backend is an OpenAI-compatible Chat Completions endpoint. Requests and
// responses use the go-openai types; backends for other SDKs translate.
type Backend interface {
	// Name is the provider name stamped on messages and errors
	Name() string

	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

	// StreamChatCompletion calls yield with each text delta until the stream
	// ends or yield returns false
	StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, yield func(string) bool) error
}

// SDKBackend is the go-openai backend, usable with any endpoint that speaks
// the OpenAI protocol
type SDKBackend struct {
	client *openai.Client
	name   string
}

// NewSDKBackend creates a go-openai backend. An empty baseURL uses the OpenAI API.
func NewSDKBackend(name, apiKey, baseURL string, timeout time.Duration) *SDKBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &SDKBackend{client: openai.NewClientWithConfig(cfg), name: name}
}

// Name returns the provider name
func (b *SDKBackend) Name() string {
	return b.name
}

// CreateChatCompletion performs a chat completion request
func (b *SDKBackend) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, ConvertError(b.name, err)
	}
	return resp, nil
}

// StreamChatCompletion performs a streaming chat completion request
func (b *SDKBackend) StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, yield func(string) bool) error {
	req.Stream = true
	stream, err := b.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return ConvertError(b.name, err)
	}
	defer func() { _ = stream.Close() }()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return ConvertError(b.name, err)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if !yield(chunk.Choices[0].Delta.Content) {
			return nil
		}
	}
}

// ListModels returns the model ids served by the endpoint
func (b *SDKBackend) ListModels(ctx context.Context) ([]string, error) {
	list, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, ConvertError(b.name, err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
