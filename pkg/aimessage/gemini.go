package aimessage

import (
	"strings"

	"google.golang.org/genai"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// GeminiText concatenates the non-thought text parts of the first candidate
func GeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// GeminiUsage returns the token accounting of a GenerateContent response
func GeminiUsage(resp *genai.GenerateContentResponse) llm.CompletionUsage {
	var usage llm.CompletionUsage
	if resp == nil || resp.UsageMetadata == nil {
		return usage
	}
	md := resp.UsageMetadata
	usage.PromptTokens = int(md.PromptTokenCount)
	usage.CompletionTokens = int(md.CandidatesTokenCount)
	usage.TotalTokens = int(md.TotalTokenCount)
	if md.ThoughtsTokenCount > 0 {
		usage.Extra = map[string]any{"thoughts_tokens": int(md.ThoughtsTokenCount)}
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// FromGemini translates a GenerateContent response
func FromGemini(resp *genai.GenerateContentResponse, meta Meta) (*llm.AIMessage, llm.CompletionUsage) {
	var stopReason, model string
	if resp != nil {
		model = resp.ModelVersion
		if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
			stopReason = string(resp.Candidates[0].FinishReason)
		}
	}
	return build(meta, ProviderGemini, model, GeminiText(resp), stopReason, GeminiUsage(resp), resp)
}
