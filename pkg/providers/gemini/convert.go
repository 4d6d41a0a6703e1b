package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"google.golang.org/genai"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

// convertMessages converts conversation messages to genai contents. Tool
// invocations become model turns carrying function calls, tool results
// become user turns carrying function responses.
func convertMessages(messages []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for _, content := range msg.Content {
			switch c := content.(type) {
			case *llm.TextContent:
				if c.Text != "" {
					parts = append(parts, genai.NewPartFromText(c.Text))
				}
			case *llm.FileContent:
				if len(c.Data) > 0 {
					parts = append(parts, genai.NewPartFromBytes(c.Data, c.MimeType))
				}
			case *llm.ToolInvocationContent:
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   c.ToolCallID,
					Name: c.Name,
					Args: c.Arguments,
				}})
			case *llm.ToolResultContent:
				parts = append(parts, &genai.Part{FunctionResponse: functionResponse(c)})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// functionResponse reports a call outcome under "output", or under "error"
// for a failed call
func functionResponse(result *llm.ToolResultContent) *genai.FunctionResponse {
	response := map[string]any{"output": result.Content}
	if result.IsError {
		response = map[string]any{"error": result.Content}
	}
	return &genai.FunctionResponse{ID: result.ToolCallID, Name: result.Name, Response: response}
}

// systemInstruction wraps the system prompt, nil when it is blank
func systemInstruction(prompt string) *genai.Content {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	return &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(prompt)}}
}

// UpperCaseTypes returns a copy of a JSON schema with every "type" tag
// upper-cased, as genai expects ("object" becomes "OBJECT"). Union types
// such as ["string", "null"] collapse to the first non-null type and mark
// the schema nullable.
func UpperCaseTypes(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for key, value := range schema {
		switch key {
		case "type":
			t, nullable := upperCaseType(value)
			out[key] = t
			if nullable {
				out["nullable"] = true
			}
		case "nullable":
			if _, ok := out[key]; !ok {
				out[key] = value
			}
		case "properties", "$defs", "definitions":
			props, ok := value.(map[string]any)
			if !ok {
				out[key] = value
				continue
			}
			converted := make(map[string]any, len(props))
			for name, prop := range props {
				converted[name] = upperCaseValue(prop)
			}
			out[key] = converted
		default:
			out[key] = upperCaseValue(value)
		}
	}
	return out
}

// upperCaseType also reports whether a union type admitted null
func upperCaseType(value any) (any, bool) {
	switch t := value.(type) {
	case string:
		return strings.ToUpper(t), false
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return upperCaseType(items)
	case []any:
		var first string
		nullable := false
		for _, item := range t {
			s, _ := item.(string)
			if s == "null" {
				nullable = true
				continue
			}
			if first == "" {
				first = s
			}
		}
		return strings.ToUpper(first), nullable
	}
	return value, false
}

func upperCaseValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return UpperCaseTypes(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = upperCaseValue(item)
		}
		return items
	}
	return value
}

// convertSchema converts a JSON schema into a genai.Schema. Keywords genai
// does not model, like "$schema" or "additionalProperties", are dropped.
func convertSchema(schema map[string]any) (*genai.Schema, error) {
	if len(schema) == 0 {
		return &genai.Schema{Type: genai.TypeObject}, nil
	}
	raw, err := json.Marshal(UpperCaseTypes(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var out genai.Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to convert schema: %w", err)
	}
	return &out, nil
}

// convertTools declares the registered tools as genai functions
func convertTools(defs []llm.ToolDefinition) ([]*genai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		params, err := convertSchema(def.Schema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  params,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// functionCalls extracts the calls of the first candidate. Calls the
// vendor sent without an id get a short random one, keeping ids unique
// within a turn.
func functionCalls(resp *genai.GenerateContentResponse) ([]llm.ToolCall, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, ""
	}
	var calls []llm.ToolCall
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall == nil {
			if !part.Thought {
				text.WriteString(part.Text)
			}
			continue
		}
		id := part.FunctionCall.ID
		if id == "" {
			id = "call_" + shortuuid.New()
		}
		args := part.FunctionCall.Args
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, llm.ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: args})
	}
	return calls, text.String()
}

// convertError maps genai errors onto *llm.Error
func convertError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return fmt.Errorf("%s: %w", provider, err)
	}

	out := llm.NewAPIError(provider, apiErr.Code, apiErr.Message)
	if apiErr.Status != "" {
		out.Code = strings.ToLower(apiErr.Status)
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		out.Type = "authentication_error"
	case http.StatusTooManyRequests:
		out.Type = "rate_limit_error"
	case http.StatusNotFound:
		out.Type = "model_error"
	case http.StatusBadRequest:
		out.Type = "validation_error"
	}
	return out
}

// providerName returns the name stamped on messages for a backend
func providerName(backend genai.Backend) string {
	if backend == genai.BackendVertexAI {
		return ProviderVertex
	}
	return aimessage.ProviderGemini
}
