// Message types and functionality
package llm

import (
	"encoding/json"
	"fmt"
)

// Message is the canonical chat message every adapter maps to and from its
// vendor shape.
type Message struct {
	Role    MessageRole      `json:"role"`
	Content []MessageContent `json:"content"`
}

// MessageRole defines the role of a message sender
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// NewTextMessage creates a new Message with a single TextContent
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role:    role,
		Content: []MessageContent{NewTextContent(text)},
	}
}

// GetText concatenates all text parts of the message
func (m Message) GetText() string {
	var text string
	for _, content := range m.Content {
		if tc, ok := content.(*TextContent); ok {
			text += tc.Text
		}
	}
	return text
}

// GetContentByType returns all content items of the specified type
func (m Message) GetContentByType(messageType MessageType) []MessageContent {
	var result []MessageContent
	for _, content := range m.Content {
		if content.Type() == messageType {
			result = append(result, content)
		}
	}
	return result
}

// HasContentType checks if the message contains any content of the specified type
func (m Message) HasContentType(messageType MessageType) bool {
	for _, content := range m.Content {
		if content.Type() == messageType {
			return true
		}
	}
	return false
}

// AddContent adds a MessageContent item to the message
func (m *Message) AddContent(content MessageContent) {
	m.Content = append(m.Content, content)
}

// Validate validates all content items in the message
func (m Message) Validate() error {
	for i, content := range m.Content {
		if err := content.Validate(); err != nil {
			return fmt.Errorf("content item %d validation failed: %w", i, err)
		}
	}
	return nil
}

// ToolInvocations returns the tool invocation parts of the message
func (m Message) ToolInvocations() []*ToolInvocationContent {
	var calls []*ToolInvocationContent
	for _, content := range m.Content {
		if c, ok := content.(*ToolInvocationContent); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// ToolResults returns the tool result parts of the message
func (m Message) ToolResults() []*ToolResultContent {
	var results []*ToolResultContent
	for _, content := range m.Content {
		if c, ok := content.(*ToolResultContent); ok {
			results = append(results, c)
		}
	}
	return results
}

// NewToolInvocationMessage builds the assistant message that requested calls,
// optionally preceded by the text the model emitted alongside them.
func NewToolInvocationMessage(text string, calls []ToolCall) Message {
	msg := Message{Role: RoleAssistant}
	if text != "" {
		msg.AddContent(NewTextContent(text))
	}
	for _, call := range calls {
		msg.AddContent(&ToolInvocationContent{ToolCallID: call.ID, Name: call.Name, Arguments: call.Arguments})
	}
	return msg
}

// NewToolResultMessage builds the tool message answering the given calls
func NewToolResultMessage(calls []ToolCall) Message {
	msg := Message{Role: RoleTool}
	for _, call := range calls {
		msg.AddContent(NewToolResultContent(call))
	}
	return msg
}

// DeepCopy returns a copy of the message that shares no mutable state
func (m Message) DeepCopy() Message {
	cp := Message{Role: m.Role}
	if m.Content != nil {
		cp.Content = make([]MessageContent, 0, len(m.Content))
		for _, content := range m.Content {
			cp.Content = append(cp.Content, deepCopyMessageContent(content))
		}
	}
	return cp
}

func deepCopyMessageContent(content MessageContent) MessageContent {
	switch c := content.(type) {
	case *TextContent:
		return &TextContent{Text: c.Text}
	case *FileContent:
		data := make([]byte, len(c.Data))
		copy(data, c.Data)
		return &FileContent{Data: data, MimeType: c.MimeType, Filename: c.Filename}
	case *ToolInvocationContent:
		args := make(map[string]any, len(c.Arguments))
		for k, v := range c.Arguments {
			args[k] = v
		}
		return &ToolInvocationContent{ToolCallID: c.ToolCallID, Name: c.Name, Arguments: args}
	case *ToolResultContent:
		cp := *c
		return &cp
	default:
		return content
	}
}

// UnmarshalJSON implements custom JSON unmarshaling for Message, dispatching
// each content item on its "type" field.
func (m *Message) UnmarshalJSON(data []byte) error {
	var temp struct {
		Role    MessageRole       `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	m.Role = temp.Role
	m.Content = nil
	for i, contentBytes := range temp.Content {
		var typeChecker struct {
			Type MessageType `json:"type"`
		}
		if err := json.Unmarshal(contentBytes, &typeChecker); err != nil {
			return fmt.Errorf("failed to determine type for content item %d: %w", i, err)
		}

		content := newContentForType(typeChecker.Type)
		if content == nil {
			return fmt.Errorf("unsupported content type: %s", typeChecker.Type)
		}
		if err := json.Unmarshal(contentBytes, content); err != nil {
			return fmt.Errorf("failed to unmarshal content item %d of type %s: %w", i, typeChecker.Type, err)
		}
		m.Content = append(m.Content, content)
	}
	return nil
}
