// Core request and response types
package llm

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AskRequest carries the parameters of one Ask, AskStream or BatchAsk entry
type AskRequest struct {
	Prompt           string                  `json:"prompt"`
	Model            string                  `json:"model,omitempty"`
	MaxTokens        int                     `json:"max_tokens,omitempty"`
	Temperature      *float32                `json:"temperature,omitempty"`
	Files            []Attachment            `json:"-"`
	SystemPrompt     string                  `json:"system_prompt,omitempty"`
	StructuredOutput *StructuredOutputConfig `json:"-"`
	UserID           string                  `json:"user_id,omitempty"`
	SessionID        string                  `json:"session_id,omitempty"`
}

// CompletionUsage is the token accounting of one call
type CompletionUsage struct {
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	PromptTime       time.Duration  `json:"prompt_time,omitempty"`
	CompletionTime   time.Duration  `json:"completion_time,omitempty"`
	TotalTime        time.Duration  `json:"total_time,omitempty"`
	Cost             *float64       `json:"cost,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Add accumulates another usage into u, used across tool rounds
func (u *CompletionUsage) Add(other CompletionUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.PromptTime += other.PromptTime
	u.CompletionTime += other.CompletionTime
	u.TotalTime += other.TotalTime
	if other.Cost != nil {
		cost := *other.Cost
		if u.Cost != nil {
			cost += *u.Cost
		}
		u.Cost = &cost
	}
	for k, v := range other.Extra {
		if u.Extra == nil {
			u.Extra = map[string]any{}
		}
		u.Extra[k] = v
	}
}

// AIMessage is the unified response of every adapter
type AIMessage struct {
	Input       string          `json:"input"`
	Output      any             `json:"output"`
	Response    string          `json:"response"`
	Model       string          `json:"model"`
	Provider    string          `json:"provider"`
	Usage       CompletionUsage `json:"usage"`
	StopReason  string          `json:"stop_reason"`
	ToolCalls   []ToolCall      `json:"tool_calls,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	TurnID      string          `json:"turn_id"`
	CreatedAt   time.Time       `json:"created_at"`
	RawResponse any             `json:"-"`

	backfilled bool
}

// IsStructured reports whether Output holds a parsed value rather than plain text
func (m *AIMessage) IsStructured() bool {
	if m.Output == nil {
		return false
	}
	_, isText := m.Output.(string)
	return !isText
}

// HasTools reports whether any tool ran during the call
func (m *AIMessage) HasTools() bool {
	return len(m.ToolCalls) > 0
}

// Text returns the output as text: the plain response, or the JSON encoding
// of a structured output.
func (m *AIMessage) Text() string {
	if s, ok := m.Output.(string); ok {
		return s
	}
	if m.Output == nil {
		return m.Response
	}
	b, err := json.Marshal(m.Output)
	if err != nil {
		return m.Response
	}
	return string(b)
}

// BackfillText sets the response text of a message that came back without
// one. It only has an effect once, and only while the response is empty.
func (m *AIMessage) BackfillText(text string) bool {
	if m.backfilled || m.Response != "" {
		return false
	}
	m.backfilled = true
	m.Response = text
	if m.Output == nil || m.Output == "" {
		m.Output = text
	}
	return true
}

// NewTurnID returns a fresh identifier for one Ask/AskStream call
func NewTurnID() string {
	return uuid.NewString()
}
