package claude

import (
	"strings"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// messagesRequest is the body of POST /v1/messages. On Bedrock the model
// travels in the URL and anthropic_version in the body.
type messagesRequest struct {
	Model            string        `json:"model,omitempty"`
	AnthropicVersion string        `json:"anthropic_version,omitempty"`
	MaxTokens        int           `json:"max_tokens"`
	System           string        `json:"system,omitempty"`
	Messages         []wireMessage `json:"messages"`
	Tools            []wireTool    `json:"tools,omitempty"`
	Temperature      *float32      `json:"temperature,omitempty"`
	Stream           bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireBlock struct {
	Type string `json:"type"`

	Text   string      `json:"text,omitempty"`
	Source *wireSource `json:"source,omitempty"`

	// tool_use
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

func convertTools(defs []llm.ToolDefinition) []wireTool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]wireTool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, wireTool{Name: def.Name, Description: def.Description, InputSchema: def.Schema})
	}
	return tools
}

func convertContent(content llm.MessageContent) (wireBlock, bool) {
	switch c := content.(type) {
	case *llm.TextContent:
		if strings.TrimSpace(c.Text) == "" {
			return wireBlock{}, false
		}
		return wireBlock{Type: "text", Text: c.Text}, true
	case *llm.FileContent:
		switch {
		case c.IsImage():
			return wireBlock{Type: "image", Source: &wireSource{Type: "base64", MediaType: c.MimeType, Data: c.Base64()}}, true
		case strings.HasPrefix(c.MimeType, "text/"):
			return wireBlock{Type: "text", Text: string(c.Data)}, true
		default:
			return wireBlock{Type: "document", Source: &wireSource{Type: "base64", MediaType: c.MimeType, Data: c.Base64()}}, true
		}
	case *llm.ToolInvocationContent:
		input := c.Arguments
		if input == nil {
			input = map[string]any{}
		}
		return wireBlock{Type: "tool_use", ID: c.ToolCallID, Name: c.Name, Input: input}, true
	case *llm.ToolResultContent:
		return wireBlock{Type: "tool_result", ToolUseID: c.ToolCallID, Content: c.Content, IsError: c.IsError}, true
	}
	return wireBlock{}, false
}

// convertMessages maps canonical messages to the Messages API shape. Tool
// results travel in user messages, and consecutive messages with the same
// role are merged since the API requires alternating roles.
func convertMessages(messages []llm.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "assistant"
		}

		var blocks []wireBlock
		for _, content := range msg.Content {
			if block, ok := convertContent(content); ok {
				blocks = append(blocks, block)
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, wireMessage{Role: role, Content: blocks})
	}
	return out
}
