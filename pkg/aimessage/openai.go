package aimessage

import (
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// OpenAIUsage returns the token accounting of a Chat Completions response
func OpenAIUsage(resp openai.ChatCompletionResponse) llm.CompletionUsage {
	usage := llm.CompletionUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	extra := map[string]any{}
	if resp.SystemFingerprint != "" {
		extra["system_fingerprint"] = resp.SystemFingerprint
	}
	if d := resp.Usage.PromptTokensDetails; d != nil && d.CachedTokens > 0 {
		extra["cached_tokens"] = d.CachedTokens
	}
	if d := resp.Usage.CompletionTokensDetails; d != nil && d.ReasoningTokens > 0 {
		extra["reasoning_tokens"] = d.ReasoningTokens
	}
	if len(extra) > 0 {
		usage.Extra = extra
	}
	return usage
}

func firstChoice(resp openai.ChatCompletionResponse) (string, string) {
	if len(resp.Choices) == 0 {
		return "", ""
	}
	choice := resp.Choices[0]
	return choice.Message.Content, string(choice.FinishReason)
}

// FromOpenAI translates a Chat Completions response
func FromOpenAI(resp openai.ChatCompletionResponse, meta Meta) (*llm.AIMessage, llm.CompletionUsage) {
	text, stopReason := firstChoice(resp)
	return build(meta, ProviderOpenAI, resp.Model, text, stopReason, OpenAIUsage(resp), resp)
}

// FromGroq translates a Groq Chat Completions response. Reasoning models on
// Groq inline their chain of thought in <think> blocks, which are dropped.
func FromGroq(resp openai.ChatCompletionResponse, meta Meta) (*llm.AIMessage, llm.CompletionUsage) {
	text, stopReason := firstChoice(resp)
	text = strings.TrimSpace(llm.RemoveBlocks(text, "think"))

	usage := OpenAIUsage(resp)
	if resp.ID != "" {
		if usage.Extra == nil {
			usage.Extra = map[string]any{}
		}
		usage.Extra["request_id"] = resp.ID
	}
	return build(meta, ProviderGroq, resp.Model, text, stopReason, usage, resp)
}
