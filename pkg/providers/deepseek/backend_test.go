package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cohesion-org/deepseek-go"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// fakeDeepSeek replays chat completion bodies and records decoded requests
type fakeDeepSeek struct {
	t         *testing.T
	mu        sync.Mutex
	responses []string
	requests  []map[string]any
}

func (f *fakeDeepSeek) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.True(f.t, strings.HasSuffix(r.URL.Path, "chat/completions"), r.URL.Path)

	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	assert.NoError(f.t, json.Unmarshal(body, &req))
	f.requests = append(f.requests, req)

	if len(f.responses) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, next)
}

func newFakeClient(t *testing.T, responses ...string) (*fakeDeepSeek, llm.ClientConfig) {
	t.Helper()
	fake := &fakeDeepSeek{t: t, responses: responses}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, llm.ClientConfig{APIKey: "ds-test", BaseURL: srv.URL + "/"}
}

func completion(content, finish, toolCalls string) string {
	if toolCalls == "" {
		toolCalls = "[]"
	}
	return fmt.Sprintf(`{"id":"ds-1","object":"chat.completion","created":1,"model":"deepseek-chat",
		"choices":[{"index":0,"message":{"role":"assistant","content":%q,"tool_calls":%s},"finish_reason":%q}],
		"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`, content, toolCalls, finish)
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := NewClient(llm.ClientConfig{})
	assert.ErrorIs(t, err, &llm.Error{Code: llm.ErrCodeMissingAPIKey})
}

func TestAsk_Text(t *testing.T) {
	t.Parallel()
	fake, config := newFakeClient(t, completion("4", "stop", ""))
	client, err := NewClient(config)
	require.NoError(t, err)

	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "What is 2+2?"})
	require.NoError(t, err)

	assert.Equal(t, "4", msg.Output)
	assert.Equal(t, ProviderName, msg.Provider)
	assert.Equal(t, 9, msg.Usage.TotalTokens)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, DefaultModel, fake.requests[0]["model"])
}

func TestAsk_ToolRound(t *testing.T) {
	t.Parallel()
	fake, config := newFakeClient(t,
		completion("", "tool_calls", `[{"index":0,"id":"call_1","type":"function","function":{"name":"add","arguments":"{\"a\":5,\"b\":3}"}}]`),
		completion("8", "stop", ""),
	)
	client, err := NewClient(config)
	require.NoError(t, err)

	type addInput struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	add, err := llm.NewTool("add", "Adds two integers", func(_ context.Context, in addInput) (int, error) {
		return in.A + in.B, nil
	})
	require.NoError(t, err)
	client.RegisterToolDefinition(add)

	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "add 5 and 3"})
	require.NoError(t, err)

	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, 8, msg.ToolCalls[0].Result)
	require.Len(t, fake.requests, 2)

	tools, ok := fake.requests[0]["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)

	messages, ok := fake.requests[1]["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)
	result := messages[2].(map[string]any)
	assert.Equal(t, "tool", result["role"])
	assert.Equal(t, "call_1", result["tool_call_id"])
	assert.Equal(t, "8", result["content"])
}

func TestAsk_StructuredOutputInSystemPrompt(t *testing.T) {
	t.Parallel()
	fake, config := newFakeClient(t, completion(`{"total": 8}`, "stop", ""))
	client, err := NewClient(config)
	require.NoError(t, err)

	type sum struct {
		Total int `json:"total"`
	}
	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "5+3", StructuredOutput: llm.NewStructuredOutput(sum{})})
	require.NoError(t, err)
	assert.Equal(t, sum{Total: 8}, msg.Output)

	messages := fake.requests[0]["messages"].([]any)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "JSON Schema")
	assert.Nil(t, fake.requests[0]["response_format"])
}

func TestConvertMessages_FlattensParts(t *testing.T) {
	t.Parallel()

	out := convertMessages([]openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: "look"},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: "data:image/png;base64,AA=="}},
		},
	}})
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Content, "look")
	assert.Contains(t, out[0].Content, "image omitted")
}

func TestConvertParameters(t *testing.T) {
	t.Parallel()

	params := convertParameters(map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "integer"}},
		"required":   []any{"a"},
	})
	assert.Equal(t, &deepseek.FunctionParameters{
		Type:       "object",
		Properties: map[string]any{"a": map[string]any{"type": "integer"}},
		Required:   []string{"a"},
	}, params)

	assert.Equal(t, "object", convertParameters(nil).Type)
}

func TestConvertResponse(t *testing.T) {
	t.Parallel()

	resp := convertResponse(&deepseek.ChatCompletionResponse{
		ID:    "ds-9",
		Model: "deepseek-reasoner",
		Choices: []deepseek.Choice{{
			Index:        0,
			Message:      deepseek.Message{Role: "assistant", Content: "hi"},
			FinishReason: "stop",
		}},
	})
	assert.Equal(t, "ds-9", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, openai.FinishReasonStop, resp.Choices[0].FinishReason)

	assert.Empty(t, convertResponse(nil).Choices)
}

func TestConvertError(t *testing.T) {
	t.Parallel()

	err := convertError(fmt.Errorf("request failed with status 429: rate limit reached"))
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, http.StatusTooManyRequests, llmErr.StatusCode)
	assert.Equal(t, "rate_limit_error", llmErr.Type)
	assert.Equal(t, ProviderName, llmErr.Provider)

	assert.ErrorIs(t, convertError(context.Canceled), context.Canceled)
}
