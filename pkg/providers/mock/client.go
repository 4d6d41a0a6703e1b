package mock

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// ProviderName is stamped on messages and errors
const ProviderName = "mock"

// secureRandomFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureRandomFloat64() (float64, error) {
	var bytes [8]byte
	_, err := rand.Read(bytes[:])
	if err != nil {
		return 0, err
	}
	return float64(binary.BigEndian.Uint64(bytes[:])) / float64(^uint64(0)), nil
}

// Turn is one scripted model reply: text, tool calls to request, or an error
type Turn struct {
	Text      string
	ToolCalls []llm.ToolCall
	Err       error
	Usage     llm.CompletionUsage
}

// Request records what one round trip sent to the mock vendor
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []llm.Message
	Tools        []string
	Stream       bool
}

// Client implements the llm.Client interface for testing. It replays
// scripted turns through the same tool loop as the real adapters, and falls
// back to canned replies once the script runs out.
type Client struct {
	*llm.BaseClient

	mu        sync.Mutex
	modelInfo llm.ModelInfo
	turns     []Turn
	callLog   []Request
	callSeq   int

	latencySimulation time.Duration
	failureRate       float64
}

// Ensure Client implements llm.Client at compile time.
var _ llm.Client = (*Client)(nil)

// NewClient creates a new mock LLM client for testing
func NewClient(config llm.ClientConfig) (*Client, error) {
	model := config.Model
	if model == "" {
		model = "mock-model"
	}
	provider := config.Provider
	if provider == "" {
		provider = ProviderName
	}
	return &Client{
		BaseClient: llm.NewBaseClient(provider, config),
		modelInfo: llm.ModelInfo{
			Name:              model,
			Provider:          provider,
			MaxTokens:         4096,
			SupportsTools:     true,
			SupportsStreaming: true,
		},
	}, nil
}

// roundTrip records a request and returns the next scripted turn
func (m *Client) roundTrip(ctx context.Context, req Request) (Turn, error) {
	m.mu.Lock()
	m.callLog = append(m.callLog, req)
	latency := m.latencySimulation
	failureRate := m.failureRate
	var turn Turn
	scripted := len(m.turns) > 0
	if scripted {
		turn = m.turns[0]
		m.turns = m.turns[1:]
	}
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return Turn{}, ctx.Err()
		}
	}

	if failureRate > 0 {
		randomValue, err := secureRandomFloat64()
		if err != nil {
			randomValue = 1
		}
		if randomValue < failureRate {
			return Turn{}, &llm.Error{
				Code:     "mock_random_failure",
				Message:  "Simulated random failure",
				Type:     "simulation_error",
				Provider: m.Provider(),
			}
		}
	}

	if !scripted {
		turn = Turn{Text: cannedReply(req.Messages)}
	}
	if turn.Err != nil {
		return Turn{}, turn.Err
	}
	if turn.Usage.TotalTokens == 0 {
		turn.Usage = estimateUsage(req.Messages, turn.Text)
	}
	return turn, nil
}

// cannedReply answers the last message when nothing is scripted
func cannedReply(messages []llm.Message) string {
	if len(messages) == 0 {
		return "Hello! How can I help you today?"
	}
	last := messages[len(messages)-1]
	if results := last.ToolResults(); len(results) > 0 {
		parts := make([]string, 0, len(results))
		for _, r := range results {
			parts = append(parts, r.Content)
		}
		return fmt.Sprintf("Based on the tool result: %s", strings.Join(parts, ", "))
	}

	text := last.GetText()
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hello") || strings.HasPrefix(lower, "hi"):
		return "Hello! How can I help you today?"
	case strings.Contains(lower, "help"):
		return "I'm here to help! I can assist with various tasks."
	default:
		return fmt.Sprintf("Mock response to: %s", text)
	}
}

func estimateUsage(messages []llm.Message, reply string) llm.CompletionUsage {
	prompt := 0
	for _, msg := range messages {
		prompt += len(strings.Fields(msg.GetText()))
	}
	completion := len(strings.Fields(reply))
	return llm.CompletionUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

func (m *Client) modelFor(req llm.AskRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return m.modelInfo.Name
}

func (m *Client) toolNames() []string {
	defs := m.Tools()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return names
}

// nextCallID numbers scripted calls that came without an id
func (m *Client) nextCallID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callSeq++
	return fmt.Sprintf("mock_call_%d", m.callSeq)
}

// Ask replays turns until one requests no tool calls, running the
// requested tools in between
func (m *Client) Ask(ctx context.Context, req llm.AskRequest) (*llm.AIMessage, error) {
	conv, err := m.PrepareConversationContext(ctx, req)
	if err != nil {
		return nil, err
	}

	system := conv.SystemPrompt
	if so := req.StructuredOutput; so != nil {
		if instructions := so.Instructions(); instructions != "" {
			system = strings.TrimSpace(system + "\n\n" + instructions)
		}
	}

	model := m.modelFor(req)
	messages := append([]llm.Message(nil), conv.Messages...)
	var produced []llm.Message
	var toolCalls []llm.ToolCall
	var usage llm.CompletionUsage
	var turn Turn

	for {
		turn, err = m.roundTrip(ctx, Request{
			Model:        model,
			SystemPrompt: system,
			Messages:     append([]llm.Message(nil), messages...),
			Tools:        m.toolNames(),
		})
		if err != nil {
			return nil, err
		}
		usage.Add(turn.Usage)
		if len(turn.ToolCalls) == 0 {
			break
		}

		calls := make([]llm.ToolCall, len(turn.ToolCalls))
		copy(calls, turn.ToolCalls)
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = m.nextCallID()
			}
		}
		if calls, err = m.RunToolCalls(ctx, calls); err != nil {
			return nil, err
		}

		exchange := []llm.Message{
			llm.NewToolInvocationMessage(turn.Text, calls),
			llm.NewToolResultMessage(calls),
		}
		messages = append(messages, exchange...)
		produced = append(produced, exchange...)
		toolCalls = append(toolCalls, calls...)
	}

	var output any = turn.Text
	if req.StructuredOutput != nil {
		output = m.ParseStructuredOutput(turn.Text, req.StructuredOutput)
	}
	msg := &llm.AIMessage{
		Input:       req.Prompt,
		Output:      output,
		Response:    turn.Text,
		Model:       model,
		Provider:    m.Provider(),
		Usage:       usage,
		StopReason:  "stop",
		ToolCalls:   toolCalls,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		TurnID:      llm.NewTurnID(),
		CreatedAt:   time.Now().UTC(),
		RawResponse: turn,
	}

	produced = append(produced, llm.NewTextMessage(llm.RoleAssistant, turn.Text))
	if err := m.UpdateMemory(ctx, conv, produced...); err != nil {
		return nil, err
	}
	return msg, nil
}

// AskStream replays one turn word by word. A turn requesting tool calls
// fails the stream, since tools are not run mid-stream.
func (m *Client) AskStream(ctx context.Context, req llm.AskRequest) *llm.TextStream {
	conv, err := m.PrepareConversationContext(ctx, req)
	if err != nil {
		return llm.NewFailedStream(err)
	}
	request := Request{
		Model:        m.modelFor(req),
		SystemPrompt: conv.SystemPrompt,
		Messages:     conv.Messages,
		Stream:       true,
	}

	source := func(ctx context.Context, yield func(string) bool) error {
		turn, err := m.roundTrip(ctx, request)
		if err != nil {
			return err
		}
		if len(turn.ToolCalls) > 0 {
			return &llm.Error{
				Code:     llm.ErrCodeInvalidRequest,
				Message:  "tool calls are not supported while streaming",
				Type:     "stream_error",
				Provider: m.Provider(),
			}
		}
		for _, word := range wordChunks(turn.Text) {
			if !yield(word) {
				return nil
			}
		}
		return nil
	}
	return llm.NewTextStream(ctx, source, m.StreamCompletion(conv))
}

// wordChunks splits text into words keeping the separating spaces, so the
// chunks concatenate back to the text
func wordChunks(text string) []string {
	var chunks []string
	for text != "" {
		i := strings.IndexByte(text, ' ')
		if i < 0 {
			chunks = append(chunks, text)
			break
		}
		chunks = append(chunks, text[:i+1])
		text = text[i+1:]
	}
	return chunks
}

// BatchAsk answers the requests one after the other
func (m *Client) BatchAsk(ctx context.Context, reqs []llm.AskRequest) ([]*llm.AIMessage, error) {
	return llm.AskSequentially(ctx, reqs, m.Ask)
}

// GetModelInfo returns information about the mock model
func (m *Client) GetModelInfo() llm.ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelInfo
}

// Close cleans up any resources used by the client
func (m *Client) Close() error {
	return nil
}

// Script configuration

// WithTurns appends scripted turns
func (m *Client) WithTurns(turns ...Turn) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
	return m
}

// WithSimpleResponse appends a plain text turn
func (m *Client) WithSimpleResponse(content string) *Client {
	return m.WithTurns(Turn{Text: content})
}

// WithToolCall appends a turn requesting one tool call
func (m *Client) WithToolCall(toolName string, args map[string]any) *Client {
	return m.WithTurns(Turn{ToolCalls: []llm.ToolCall{{Name: toolName, Arguments: args}}})
}

// WithParallelToolCalls appends a turn requesting several calls at once
func (m *Client) WithParallelToolCalls(calls ...llm.ToolCall) *Client {
	return m.WithTurns(Turn{ToolCalls: calls})
}

// WithError appends a turn failing with an *llm.Error
func (m *Client) WithError(code, message, errorType string) *Client {
	return m.WithTurns(Turn{Err: &llm.Error{Code: code, Message: message, Type: errorType, Provider: m.Provider()}})
}

// WithConversation appends the turns of a multi-step exchange
func (m *Client) WithConversation(exchanges []ConversationExchange) *Client {
	for _, exchange := range exchanges {
		if exchange.ToolCall != nil {
			m.WithToolCall(exchange.ToolCall.Name, exchange.ToolCall.Arguments)
		}
		if exchange.Response != "" {
			m.WithSimpleResponse(exchange.Response)
		}
	}
	return m
}

// ConversationExchange represents a turn in a conversation
type ConversationExchange struct {
	Response string
	ToolCall *MockToolCall
}

// MockToolCall represents a tool call for testing
type MockToolCall struct {
	Name      string
	Arguments map[string]any
}

// WithLatency configures simulated latency for each round trip
func (m *Client) WithLatency(duration time.Duration) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySimulation = duration
	return m
}

// WithFailureRate configures random failure simulation (0.0 to 1.0)
func (m *Client) WithFailureRate(rate float64) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureRate = rate
	return m
}

// WithModelCapabilities configures the model's capabilities
func (m *Client) WithModelCapabilities(maxTokens int, supportsTools, supportsVision, supportsStreaming bool) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelInfo.MaxTokens = maxTokens
	m.modelInfo.SupportsTools = supportsTools
	m.modelInfo.SupportsVision = supportsVision
	m.modelInfo.SupportsStreaming = supportsStreaming
	return m
}

// Inspection

// RoundTrips returns how many requests reached the mock vendor
func (m *Client) RoundTrips() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callLog)
}

// GetCallLog returns a copy of the recorded requests
func (m *Client) GetCallLog() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.callLog...)
}

// GetLastCall returns the most recent request, or nil
func (m *Client) GetLastCall() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.callLog) == 0 {
		return nil
	}
	last := m.callLog[len(m.callLog)-1]
	return &last
}

// PendingTurns returns how many scripted turns have not been replayed
func (m *Client) PendingTurns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Reset drops the script and the call log
func (m *Client) Reset() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.callLog = nil
	m.callSeq = 0
	return m
}

// AssertCallCount reports whether exactly expected round trips happened
func (m *Client) AssertCallCount(expected int) bool {
	return m.RoundTrips() == expected
}

// AssertLastMessageContains reports whether the last message of the last
// request contains text
func (m *Client) AssertLastMessageContains(text string) bool {
	last := m.GetLastCall()
	if last == nil || len(last.Messages) == 0 {
		return false
	}
	return strings.Contains(last.Messages[len(last.Messages)-1].GetText(), text)
}
