package aimessage

import (
	"strings"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// ClaudeResponse is the body of a Messages API response
type ClaudeResponse struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Role         string               `json:"role"`
	Model        string               `json:"model"`
	Content      []ClaudeContentBlock `json:"content"`
	StopReason   string               `json:"stop_reason"`
	StopSequence string               `json:"stop_sequence,omitempty"`
	Usage        ClaudeUsage          `json:"usage"`
}

// ClaudeContentBlock is one block of a response's content
type ClaudeContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// ClaudeUsage is the token accounting of a Messages API response
type ClaudeUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Text concatenates the text blocks of the response
func (r *ClaudeResponse) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks of the response
func (r *ClaudeResponse) ToolUses() []ClaudeContentBlock {
	if r == nil {
		return nil
	}
	var uses []ClaudeContentBlock
	for _, block := range r.Content {
		if block.Type == "tool_use" {
			uses = append(uses, block)
		}
	}
	return uses
}

// CompletionUsage returns the token accounting of the response
func (r *ClaudeResponse) CompletionUsage() llm.CompletionUsage {
	if r == nil {
		return llm.CompletionUsage{}
	}
	usage := llm.CompletionUsage{
		PromptTokens:     r.Usage.InputTokens,
		CompletionTokens: r.Usage.OutputTokens,
		TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
	}
	if r.Usage.CacheCreationInputTokens > 0 || r.Usage.CacheReadInputTokens > 0 {
		usage.Extra = map[string]any{
			"cache_creation_input_tokens": r.Usage.CacheCreationInputTokens,
			"cache_read_input_tokens":     r.Usage.CacheReadInputTokens,
		}
	}
	return usage
}

// FromClaude translates a Messages API response
func FromClaude(resp *ClaudeResponse, meta Meta) (*llm.AIMessage, llm.CompletionUsage) {
	if resp == nil {
		resp = &ClaudeResponse{}
	}
	return build(meta, ProviderClaude, resp.Model, resp.Text(), resp.StopReason, resp.CompletionUsage(), resp)
}
