// Message content types and interface
package llm

// MessageContent defines the interface for the parts a Message is made of:
// text, files, tool invocations and tool results.
type MessageContent interface {
	// Type returns the content type identifier
	Type() MessageType
	// Validate checks if the content is valid and meets requirements
	Validate() error
	// Size returns the content size in bytes
	Size() int64
}

// MessageType represents the type of message content
type MessageType string

// Supported message content types
const (
	MessageTypeText           MessageType = "text"
	MessageTypeFile           MessageType = "file"
	MessageTypeToolInvocation MessageType = "tool_invocation"
	MessageTypeToolResult     MessageType = "tool_result"
)

// IsValidMessageType checks if the given message type is supported
func IsValidMessageType(msgType MessageType) bool {
	switch msgType {
	case MessageTypeText, MessageTypeFile, MessageTypeToolInvocation, MessageTypeToolResult:
		return true
	default:
		return false
	}
}

// newContentForType returns an empty content value to unmarshal into
func newContentForType(msgType MessageType) MessageContent {
	switch msgType {
	case MessageTypeText:
		return &TextContent{}
	case MessageTypeFile:
		return &FileContent{}
	case MessageTypeToolInvocation:
		return &ToolInvocationContent{}
	case MessageTypeToolResult:
		return &ToolResultContent{}
	default:
		return nil
	}
}
