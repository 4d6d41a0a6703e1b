package openai

import (
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

func TestConvertMessages_EmptyContent(t *testing.T) {
	t.Parallel()

	t.Run("empty text becomes a space", func(t *testing.T) {
		out := ConvertMessages([]llm.Message{{Role: llm.RoleUser, Content: []llm.MessageContent{llm.NewTextContent("")}}})
		require.Len(t, out, 1)
		assert.Equal(t, " ", out[0].Content)
		assert.Nil(t, out[0].MultiContent)
	})

	t.Run("whitespace only", func(t *testing.T) {
		out := ConvertMessages([]llm.Message{llm.NewTextMessage(llm.RoleUser, "  \t\n ")})
		require.Len(t, out, 1)
		assert.Equal(t, " ", out[0].Content)
	})

	t.Run("no content at all", func(t *testing.T) {
		out := ConvertMessages([]llm.Message{{Role: llm.RoleAssistant}})
		require.Len(t, out, 1)
		assert.Equal(t, " ", out[0].Content)
	})
}

func TestConvertMessages_Files(t *testing.T) {
	t.Parallel()

	msg := llm.Message{Role: llm.RoleUser}
	msg.AddContent(llm.NewTextContent("Describe this:"))
	msg.AddContent(llm.NewFileContentFromBytes([]byte{0x89, 'P', 'N', 'G'}, "pic.png", "image/png"))
	msg.AddContent(llm.NewFileContentFromBytes([]byte("a,b\n1,2"), "data.csv", "text/csv"))

	out := ConvertMessages([]llm.Message{msg})
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Content)
	parts := out[0].MultiContent
	require.Len(t, parts, 3)

	assert.Equal(t, openai.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	require.NotNil(t, parts[1].ImageURL)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/png;base64,")
	assert.Equal(t, openai.ChatMessagePartTypeText, parts[2].Type)
	assert.Contains(t, parts[2].Text, "a,b\n1,2")
}

func TestConvertMessages_ToolExchange(t *testing.T) {
	t.Parallel()

	calls := []llm.ToolCall{
		{ID: "c1", Name: "add", Arguments: map[string]any{"a": 5.0, "b": 3.0}, Result: 8},
		{ID: "c2", Name: "div", Arguments: map[string]any{"a": 1.0, "b": 0.0}, Error: "division by zero"},
	}
	out := ConvertMessages([]llm.Message{
		llm.NewToolInvocationMessage("working on it", calls),
		llm.NewToolResultMessage(calls),
	})

	require.Len(t, out, 3)
	assert.Equal(t, openai.ChatMessageRoleAssistant, out[0].Role)
	assert.Equal(t, "working on it", out[0].Content)
	require.Len(t, out[0].ToolCalls, 2)
	assert.Equal(t, openai.ToolTypeFunction, out[0].ToolCalls[0].Type)
	assert.JSONEq(t, `{"a":5,"b":3}`, out[0].ToolCalls[0].Function.Arguments)

	assert.Equal(t, openai.ChatMessageRoleTool, out[1].Role)
	assert.Equal(t, "c1", out[1].ToolCallID)
	assert.Equal(t, "8", out[1].Content)
	assert.Equal(t, "c2", out[2].ToolCallID)
	assert.Equal(t, "Error: division by zero", out[2].Content)
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ConvertTools(nil))

	tools := ConvertTools([]llm.ToolDefinition{
		{Name: "now", Description: "Current time"},
		{Name: "add", Description: "Adds", Schema: map[string]any{"type": "object", "required": []string{"a"}}},
	})
	require.Len(t, tools, 2)
	assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, tools[0].Function.Parameters)
	assert.Equal(t, "add", tools[1].Function.Name)
}

func TestParseToolCalls(t *testing.T) {
	t.Parallel()

	calls := ParseToolCalls(openai.ChatCompletionMessage{ToolCalls: []openai.ToolCall{
		{ID: "ok", Function: openai.FunctionCall{Name: "add", Arguments: `{"a":1,"b":2}`}},
		{ID: "truncated", Function: openai.FunctionCall{Name: "add", Arguments: `{"a":1,"b":2`}},
		{ID: "empty", Function: openai.FunctionCall{Name: "now", Arguments: ""}},
		{ID: "array", Function: openai.FunctionCall{Name: "add", Arguments: `[1,2]`}},
	}})

	require.Len(t, calls, 4)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, calls[0].Arguments)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, calls[1].Arguments)
	assert.False(t, calls[1].Failed())
	assert.Empty(t, calls[2].Arguments)
	assert.False(t, calls[2].Failed())
	assert.True(t, calls[3].Failed())
}

func TestResponseFormat(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ResponseFormat(nil))
	assert.Nil(t, ResponseFormat(&llm.StructuredOutputConfig{Format: llm.OutputFormatYAML}))

	untyped := ResponseFormat(&llm.StructuredOutputConfig{Format: llm.OutputFormatJSON})
	require.NotNil(t, untyped)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, untyped.Type)

	rf := ResponseFormat(&llm.StructuredOutputConfig{OutputType: weather{}, Name: "forecast"})
	require.NotNil(t, rf)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, rf.Type)
	assert.Equal(t, "forecast", rf.JSONSchema.Name)
}

func TestConvertError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ConvertError("openai", nil))

	err := ConvertError("openai", &openai.APIError{Code: "invalid_api_key", Message: "bad key", Type: "invalid_request_error", HTTPStatusCode: http.StatusUnauthorized})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, "invalid_api_key", llmErr.Code)
	assert.Equal(t, http.StatusUnauthorized, llmErr.StatusCode)

	err = ConvertError("openai", &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")})
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrCodeAPI, llmErr.Code)
	assert.Equal(t, http.StatusBadGateway, llmErr.StatusCode)

	plain := errors.New("connection reset")
	err = ConvertError("openai", plain)
	assert.ErrorIs(t, err, plain)
}
