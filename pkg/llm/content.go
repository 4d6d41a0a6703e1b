package llm

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// TextContent represents text-based message content
type TextContent struct {
	Text string `json:"text"`
}

// NewTextContent creates a new TextContent instance with the given text
func NewTextContent(text string) *TextContent {
	return &TextContent{Text: text}
}

// Type returns the message type for text content
func (t *TextContent) Type() MessageType {
	return MessageTypeText
}

// Validate checks if the text content is valid
func (t *TextContent) Validate() error {
	if t == nil {
		return errors.New("text content cannot be nil")
	}
	if strings.TrimSpace(t.Text) == "" {
		return errors.New("text content cannot be empty")
	}
	return nil
}

// Size returns the byte size of the text content
func (t *TextContent) Size() int64 {
	if t == nil {
		return 0
	}
	return int64(len(t.Text))
}

// MarshalJSON implements custom JSON marshaling for TextContent
func (t *TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		Text string      `json:"text"`
	}{Type: MessageTypeText, Text: t.Text})
}

// FileContent is an attachment carried inline as bytes. Images are files
// whose MIME type starts with "image/".
type FileContent struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
}

// NewFileContentFromBytes creates a new FileContent instance from binary data
func NewFileContentFromBytes(data []byte, filename, mimeType string) *FileContent {
	return &FileContent{
		Data:     data,
		Filename: filename,
		MimeType: mimeType,
	}
}

// Type returns the message type for file content
func (f *FileContent) Type() MessageType {
	return MessageTypeFile
}

// Validate checks if the file content is valid
func (f *FileContent) Validate() error {
	if f == nil {
		return errors.New("file content cannot be nil")
	}
	if len(f.Data) == 0 {
		return errors.New("file content must have data")
	}
	if strings.TrimSpace(f.MimeType) == "" {
		return errors.New("file content must have a MIME type")
	}
	return nil
}

// Size returns the size of the raw data
func (f *FileContent) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// IsImage reports whether the file is an image
func (f *FileContent) IsImage() bool {
	return f != nil && strings.HasPrefix(f.MimeType, "image/")
}

// Base64 returns the data encoded as standard base64
func (f *FileContent) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// DataURL returns the data as a data: URL
func (f *FileContent) DataURL() string {
	return "data:" + f.MimeType + ";base64," + f.Base64()
}

// MarshalJSON implements custom JSON marshaling for FileContent
func (f *FileContent) MarshalJSON() ([]byte, error) {
	type alias FileContent
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		*alias
	}{Type: MessageTypeFile, alias: (*alias)(f)})
}

// ToolInvocationContent records that the assistant asked for a tool to run
type ToolInvocationContent struct {
	ToolCallID string         `json:"tool_call_id"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// Type returns the message type for tool invocations
func (c *ToolInvocationContent) Type() MessageType {
	return MessageTypeToolInvocation
}

// Validate checks the invocation names a tool
func (c *ToolInvocationContent) Validate() error {
	if c == nil || c.Name == "" {
		return errors.New("tool invocation must have a name")
	}
	return nil
}

// Size returns the size of the encoded arguments
func (c *ToolInvocationContent) Size() int64 {
	if c == nil {
		return 0
	}
	b, _ := json.Marshal(c.Arguments)
	return int64(len(b))
}

// MarshalJSON implements custom JSON marshaling for ToolInvocationContent
func (c *ToolInvocationContent) MarshalJSON() ([]byte, error) {
	type alias ToolInvocationContent
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		*alias
	}{Type: MessageTypeToolInvocation, alias: (*alias)(c)})
}

// ToolResultContent carries the output of a tool back to the model.
// Content is the serialized result, or the error message when IsError is set.
type ToolResultContent struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// NewToolResultContent builds the result part for a finished ToolCall
func NewToolResultContent(call ToolCall) *ToolResultContent {
	if call.Error != "" {
		return &ToolResultContent{ToolCallID: call.ID, Name: call.Name, Content: call.Error, IsError: true}
	}
	return &ToolResultContent{ToolCallID: call.ID, Name: call.Name, Content: call.ResultString()}
}

// Type returns the message type for tool results
func (c *ToolResultContent) Type() MessageType {
	return MessageTypeToolResult
}

// Validate checks the result references a tool call
func (c *ToolResultContent) Validate() error {
	if c == nil || c.ToolCallID == "" {
		return errors.New("tool result must reference a tool call")
	}
	return nil
}

// Size returns the byte size of the result
func (c *ToolResultContent) Size() int64 {
	if c == nil {
		return 0
	}
	return int64(len(c.Content))
}

// MarshalJSON implements custom JSON marshaling for ToolResultContent
func (c *ToolResultContent) MarshalJSON() ([]byte, error) {
	type alias ToolResultContent
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		*alias
	}{Type: MessageTypeToolResult, alias: (*alias)(c)})
}
