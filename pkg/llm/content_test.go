package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_JSONDiscriminator(t *testing.T) {
	t.Parallel()
	calls := []ToolCall{{ID: "c1", Name: "weather", Arguments: map[string]any{"city": "Oslo"}, Error: "timeout"}}
	original := []Message{
		{Role: RoleUser, Content: []MessageContent{
			NewFileContentFromBytes([]byte{1, 2, 3}, "a.bin", "application/octet-stream"),
			NewTextContent("what is this?"),
		}},
		NewToolInvocationMessage("checking", calls),
		NewToolResultMessage(calls),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"tool_invocation"`)
	assert.Contains(t, string(data), `"is_error":true`)

	var decoded []Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)

	var bad Message
	err = json.Unmarshal([]byte(`{"role":"user","content":[{"type":"video"}]}`), &bad)
	assert.ErrorContains(t, err, "unsupported content type")
}

func TestMessage_Accessors(t *testing.T) {
	t.Parallel()
	calls := []ToolCall{
		{ID: "c1", Name: "add", Result: 3},
		{ID: "c2", Name: "mul", Error: "overflow"},
	}

	invocation := NewToolInvocationMessage("", calls)
	assert.Equal(t, RoleAssistant, invocation.Role)
	assert.Len(t, invocation.ToolInvocations(), 2)
	assert.False(t, invocation.HasContentType(MessageTypeText))
	assert.Empty(t, invocation.GetText())

	results := NewToolResultMessage(calls)
	require.Len(t, results.ToolResults(), 2)
	assert.Equal(t, &ToolResultContent{ToolCallID: "c1", Name: "add", Content: "3"}, results.ToolResults()[0])
	assert.Equal(t, &ToolResultContent{ToolCallID: "c2", Name: "mul", Content: "overflow", IsError: true}, results.ToolResults()[1])
	assert.Len(t, results.GetContentByType(MessageTypeToolResult), 2)
	assert.NoError(t, results.Validate())

	empty := Message{Role: RoleUser, Content: []MessageContent{NewTextContent("  ")}}
	assert.ErrorContains(t, empty.Validate(), "content item 0")

	assert.True(t, IsValidMessageType(MessageTypeFile))
	assert.False(t, IsValidMessageType("image"))
}

func TestMessage_DeepCopy(t *testing.T) {
	t.Parallel()
	original := Message{Role: RoleAssistant, Content: []MessageContent{
		NewTextContent("hi"),
		NewFileContentFromBytes([]byte("data"), "f", "text/plain"),
		&ToolInvocationContent{ToolCallID: "c1", Name: "t", Arguments: map[string]any{"k": "v"}},
	}}

	cp := original.DeepCopy()
	require.Equal(t, original, cp)

	cp.Content[0].(*TextContent).Text = "changed"
	cp.Content[1].(*FileContent).Data[0] = 'X'
	cp.Content[2].(*ToolInvocationContent).Arguments["k"] = "changed"

	assert.Equal(t, "hi", original.GetText())
	assert.Equal(t, "data", string(original.Content[1].(*FileContent).Data))
	assert.Equal(t, "v", original.Content[2].(*ToolInvocationContent).Arguments["k"])
}

func TestConversationSession_DeepCopy(t *testing.T) {
	t.Parallel()
	session := NewConversationSession("u", "s", "Be brief")
	session.Messages = append(session.Messages, NewTextMessage(RoleUser, "hello"))

	cp := session.DeepCopy()
	cp.Messages[0].Content[0].(*TextContent).Text = "changed"
	cp.Messages = append(cp.Messages, NewTextMessage(RoleAssistant, "hi"))

	assert.Len(t, session.Messages, 1)
	assert.Equal(t, "hello", session.Messages[0].GetText())
	assert.Nil(t, (*ConversationSession)(nil).DeepCopy())

	assert.Equal(t, "conversation:u:s", SessionKey("u", "s"))
	assert.Equal(t, "conversation:u:", SessionKeyPrefix("u"))
	assert.Equal(t, "conversation:a%3Ab:c%25d%3Ae", SessionKey("a:b", "c%d:e"))
}

func TestSessionIDFromKey(t *testing.T) {
	t.Parallel()

	id, ok := SessionIDFromKey("a:b", SessionKey("a:b", "c%d:e"))
	require.True(t, ok)
	assert.Equal(t, "c%d:e", id)

	_, ok = SessionIDFromKey("a", SessionKey("a:b", "s"))
	assert.False(t, ok)
	_, ok = SessionIDFromKey("a", "conversation:a:b:s")
	assert.False(t, ok)
	_, ok = SessionIDFromKey("a", "other:a:s")
	assert.False(t, ok)
}
