package aimessage

import (
	"time"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// Provider names stamped on translated messages
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// Meta is the call metadata a translator combines with the vendor response
type Meta struct {
	Input     string
	Model     string // requested model, used when the response does not name one
	Provider  string // overrides the translator's default provider name
	UserID    string
	SessionID string
	TurnID    string
	ToolCalls []llm.ToolCall
	// PriorUsage is the usage of earlier tool rounds of the same call
	PriorUsage llm.CompletionUsage
	// Output is the parsed structured value; nil means the output is the response text
	Output    any
	CreatedAt time.Time
}

func build(meta Meta, provider, model, text, stopReason string, usage llm.CompletionUsage, raw any) (*llm.AIMessage, llm.CompletionUsage) {
	if meta.Provider != "" {
		provider = meta.Provider
	}
	if model == "" {
		model = meta.Model
	}
	total := meta.PriorUsage
	total.Extra = nil
	for k, v := range meta.PriorUsage.Extra {
		if total.Extra == nil {
			total.Extra = map[string]any{}
		}
		total.Extra[k] = v
	}
	total.Add(usage)

	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var output any = text
	if meta.Output != nil {
		output = meta.Output
	}

	var toolCalls []llm.ToolCall
	if len(meta.ToolCalls) > 0 {
		toolCalls = make([]llm.ToolCall, len(meta.ToolCalls))
		copy(toolCalls, meta.ToolCalls)
	}

	return &llm.AIMessage{
		Input:       meta.Input,
		Output:      output,
		Response:    text,
		Model:       model,
		Provider:    provider,
		Usage:       total,
		StopReason:  stopReason,
		ToolCalls:   toolCalls,
		UserID:      meta.UserID,
		SessionID:   meta.SessionID,
		TurnID:      meta.TurnID,
		CreatedAt:   createdAt,
		RawResponse: raw,
	}, total
}
