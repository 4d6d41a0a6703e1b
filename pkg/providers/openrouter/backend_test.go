package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/revrost/go-openrouter"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := NewClient(llm.ClientConfig{})
	assert.ErrorIs(t, err, &llm.Error{Code: llm.ErrCodeMissingAPIKey})
}

func TestAsk_ThroughOpenRouter(t *testing.T) {
	t.Parallel()
	var got map[string]any
	var referer, title string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"gen-1","model":"openai/gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Bonjour"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(llm.ClientConfig{
		APIKey:  "or-test",
		BaseURL: srv.URL + "/api/v1",
		Extra:   map[string]string{"site_url": "https://example.com", "app_name": "unify"},
	})
	require.NoError(t, err)

	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "Say hello in French", SystemPrompt: "Be brief"})
	require.NoError(t, err)

	assert.Equal(t, "Bonjour", msg.Output)
	assert.Equal(t, ProviderName, msg.Provider)
	assert.Equal(t, 6, msg.Usage.TotalTokens)
	assert.Equal(t, DefaultModel, got["model"])
	assert.Equal(t, "https://example.com", referer)
	assert.Equal(t, "unify", title)

	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestConvertRequest(t *testing.T) {
	t.Parallel()

	req := convertRequest(openai.ChatCompletionRequest{
		Model:       "anthropic/claude-sonnet-4.5",
		Temperature: 0.2,
		MaxTokens:   100,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: "what is this?"},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: "data:image/png;base64,AA=="}},
			}},
			{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{{
				ID: "c1", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "look", Arguments: "{}"},
			}}},
			{Role: openai.ChatMessageRoleTool, ToolCallID: "c1", Content: "a cat"},
		},
		Tools: []openai.Tool{{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{Name: "look"}}},
	})

	assert.Equal(t, "anthropic/claude-sonnet-4.5", req.Model)
	assert.Equal(t, 100, req.MaxTokens)
	require.Len(t, req.Messages, 3)
	require.Len(t, req.Messages[0].Content.Multi, 2)
	assert.Equal(t, openrouter.ChatMessagePartTypeImageURL, req.Messages[0].Content.Multi[1].Type)
	require.Len(t, req.Messages[1].ToolCalls, 1)
	assert.Equal(t, "look", req.Messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "c1", req.Messages[2].ToolCallID)
	assert.Equal(t, "a cat", req.Messages[2].Content.Text)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "look", req.Tools[0].Function.Name)
}

func TestConvertError(t *testing.T) {
	t.Parallel()

	err := convertError(&openrouter.APIError{Code: "insufficient_credits", Message: "no credits", HTTPStatusCode: http.StatusPaymentRequired})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, "insufficient_credits", llmErr.Code)
	assert.Equal(t, "billing_error", llmErr.Type)
	assert.Equal(t, ProviderName, llmErr.Provider)

	assert.Equal(t, "rate_limit_error", errorType(http.StatusTooManyRequests))
	assert.Equal(t, "api_error", errorType(http.StatusBadGateway))
}

func TestOpenRouterIntegration(t *testing.T) {
	if os.Getenv("OPENROUTER_API_KEY") == "" {
		t.Skip("OPENROUTER_API_KEY not set, skipping real integration test")
	}

	client, err := NewClient(llm.ClientConfig{MaxTokens: 50})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "Hello! Please respond with a short greeting."})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Response)
	assert.Greater(t, msg.Usage.TotalTokens, 0)
}
