package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// SystemMessage returns the system message carrying prompt, or nil when the
// prompt is empty
func SystemMessage(prompt string) []openai.ChatCompletionMessage {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: prompt}}
}

// ConvertMessages converts canonical messages to Chat Completions messages.
// A tool result message expands into one "tool" message per result.
func ConvertMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage

	for _, msg := range messages {
		switch {
		case msg.Role == llm.RoleTool || msg.HasContentType(llm.MessageTypeToolResult):
			for _, result := range msg.ToolResults() {
				content := result.Content
				if result.IsError {
					content = "Error: " + content
				}
				if content == "" {
					content = " "
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: result.ToolCallID,
					Name:       result.Name,
				})
			}

		case msg.HasContentType(llm.MessageTypeToolInvocation):
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.GetText(),
			}
			for _, inv := range msg.ToolInvocations() {
				args, _ := json.Marshal(inv.Arguments)
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   inv.ToolCallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      inv.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, oaiMsg)

		default:
			out = append(out, convertContentMessage(msg))
		}
	}

	return out
}

// convertContentMessage converts a message made of text and file parts.
// Content is never left empty, the API rejects undefined content.
func convertContentMessage(msg llm.Message) openai.ChatCompletionMessage {
	oaiMsg := openai.ChatCompletionMessage{Role: string(msg.Role)}

	if !msg.HasContentType(llm.MessageTypeFile) {
		text := msg.GetText()
		if strings.TrimSpace(text) == "" {
			text = " "
		}
		oaiMsg.Content = text
		return oaiMsg
	}

	var parts []openai.ChatMessagePart
	for _, content := range msg.Content {
		switch c := content.(type) {
		case *llm.TextContent:
			if strings.TrimSpace(c.Text) != "" {
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: c.Text})
			}
		case *llm.FileContent:
			parts = append(parts, convertFile(c))
		}
	}

	if len(parts) == 0 {
		oaiMsg.Content = " "
		return oaiMsg
	}
	oaiMsg.MultiContent = parts
	return oaiMsg
}

// convertFile sends images as data URLs and inlines text documents.
// Other binaries are announced by name and base64 encoded.
func convertFile(file *llm.FileContent) openai.ChatMessagePart {
	if file.IsImage() {
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    file.DataURL(),
				Detail: openai.ImageURLDetailAuto,
			},
		}
	}

	name := file.Filename
	if name == "" {
		name = "attachment"
	}
	if strings.HasPrefix(file.MimeType, "text/") || file.MimeType == "application/json" {
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("File %s:\n%s", name, file.Data),
		}
	}
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: fmt.Sprintf("File %s (%s, base64):\n%s", name, file.MimeType, file.Base64()),
	}
}

// ConvertTools wraps tool definitions in the {type: function} envelope
func ConvertTools(tools []llm.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		params := tool.Schema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// ParseToolCalls extracts the tool calls of an assistant message. Calls
// whose arguments cannot be decoded carry the decoding error and are not run.
func ParseToolCalls(msg openai.ChatCompletionMessage) []llm.ToolCall {
	calls := make([]llm.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args, err := llm.ParseToolArguments(tc.Function.Arguments)
		call := llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}
		if err != nil {
			call.Error = err.Error()
		}
		calls = append(calls, call)
	}
	return calls
}

// ResponseFormat returns the native json_schema response format for a
// structured output config, or nil when the config cannot be served natively
func ResponseFormat(so *llm.StructuredOutputConfig) *openai.ChatCompletionResponseFormat {
	if so == nil || !so.IsJSON() {
		return nil
	}
	schema, err := so.SchemaJSON()
	if err != nil || schema == nil {
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        so.SchemaName(),
			Description: so.Description,
			Schema:      schema,
		},
	}
}

// ConvertError converts go-openai errors to *llm.Error
func ConvertError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := llm.ErrCodeAPI
		if s, ok := apiErr.Code.(string); ok && s != "" {
			code = s
		}
		errType := apiErr.Type
		if errType == "" {
			errType = "api_error"
		}
		return &llm.Error{
			Code:       code,
			Message:    apiErr.Message,
			Type:       errType,
			StatusCode: apiErr.HTTPStatusCode,
			Provider:   provider,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewAPIError(provider, reqErr.HTTPStatusCode, reqErr.Error())
	}

	return fmt.Errorf("%s: %w", provider, err)
}
