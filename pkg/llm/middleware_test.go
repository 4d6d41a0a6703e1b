package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient answers from a list of outcomes and records the requests
type scriptedClient struct {
	*BaseClient
	mu       sync.Mutex
	errs     []error
	requests []AskRequest
}

func newScriptedClient(errs ...error) *scriptedClient {
	return &scriptedClient{BaseClient: NewBaseClient("scripted", ClientConfig{}), errs: errs}
}

func (c *scriptedClient) Ask(_ context.Context, req AskRequest) (*AIMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &AIMessage{Input: req.Prompt, Output: "echo: " + req.Prompt, Response: "echo: " + req.Prompt, Provider: "scripted"}, nil
}

func (c *scriptedClient) AskStream(ctx context.Context, req AskRequest) *TextStream {
	return NewTextStream(ctx, fragments("echo: ", req.Prompt), nil)
}

func (c *scriptedClient) BatchAsk(ctx context.Context, reqs []AskRequest) ([]*AIMessage, error) {
	return AskSequentially(ctx, reqs, c.Ask)
}

func (c *scriptedClient) GetModelInfo() ModelInfo {
	return ModelInfo{Name: "scripted", Provider: "scripted"}
}

func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// tagMiddleware prefixes prompts and suffixes responses with its name
type tagMiddleware struct {
	name    string
	failReq bool
	order   *[]string
}

func (m *tagMiddleware) Name() string { return m.name }

func (m *tagMiddleware) ProcessRequest(_ context.Context, req *AskRequest) (*AskRequest, error) {
	if m.order != nil {
		*m.order = append(*m.order, "req:"+m.name)
	}
	if m.failReq {
		return nil, errors.New("rejected")
	}
	out := *req
	out.Prompt = m.name + ">" + req.Prompt
	return &out, nil
}

func (m *tagMiddleware) ProcessResponse(_ context.Context, _ *AskRequest, msg *AIMessage, err error) (*AIMessage, error) {
	if m.order != nil {
		*m.order = append(*m.order, "resp:"+m.name)
	}
	if msg != nil {
		msg.Response += "<" + m.name
	}
	return msg, err
}

func TestMiddlewareChain_Management(t *testing.T) {
	t.Parallel()
	chain := NewMiddlewareChain([]Middleware{&tagMiddleware{name: "a"}, &tagMiddleware{name: "b"}})
	chain.AddMiddleware(&tagMiddleware{name: "c"})
	assert.Equal(t, []string{"a", "b", "c"}, chain.GetMiddlewareNames())

	assert.True(t, chain.RemoveMiddleware("b"))
	assert.False(t, chain.RemoveMiddleware("b"))
	assert.Equal(t, []string{"a", "c"}, chain.GetMiddlewareNames())
}

func TestMiddlewareChain_Order(t *testing.T) {
	t.Parallel()
	var order []string
	chain := NewMiddlewareChain([]Middleware{
		&tagMiddleware{name: "outer", order: &order},
		&tagMiddleware{name: "inner", order: &order},
	})

	req, err := chain.ProcessRequest(context.Background(), &AskRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "inner>outer>hi", req.Prompt)

	msg, err := chain.ProcessResponse(context.Background(), req, &AIMessage{Response: "r"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "r<inner<outer", msg.Response)
	assert.Equal(t, []string{"req:outer", "req:inner", "resp:inner", "resp:outer"}, order)
}

func TestEnhancedClient(t *testing.T) {
	t.Parallel()
	inner := newScriptedClient()
	client := ClientWithMiddleware(inner, []Middleware{&tagMiddleware{name: "m"}})

	msg, err := client.Ask(context.Background(), AskRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo: m>hello<m", msg.Response)

	text, err := client.AskStream(context.Background(), AskRequest{Prompt: "hello"}).Collect()
	require.NoError(t, err)
	assert.Equal(t, "echo: m>hello", text)

	msgs, err := client.BatchAsk(context.Background(), []AskRequest{{Prompt: "1"}, {Prompt: "2"}})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "echo: m>2<m", msgs[1].Response)

	// tool registration reaches the wrapped client
	client.RegisterTool("noop", "", nil, func(context.Context, map[string]any) (any, error) { return nil, nil })
	assert.True(t, inner.HasTools())

	assert.Same(t, inner, client.(*EnhancedClient).Unwrap())
	assert.Same(t, inner, ClientWithMiddleware(inner, nil))
}

func TestEnhancedClient_RejectedRequest(t *testing.T) {
	t.Parallel()
	inner := newScriptedClient()
	client := NewEnhancedClient(inner, []Middleware{&tagMiddleware{name: "guard", failReq: true}})

	_, err := client.Ask(context.Background(), AskRequest{Prompt: "hello"})
	assert.ErrorContains(t, err, "middleware guard failed")
	assert.Zero(t, inner.calls())

	_, err = client.AskStream(context.Background(), AskRequest{Prompt: "hello"}).Collect()
	assert.Error(t, err)
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()
	logger, logs := bufferLogger()
	client := NewEnhancedClient(newScriptedClient(nil, NewAPIError("scripted", 500, "down")),
		[]Middleware{NewLoggingMiddleware(logger)})

	_, err := client.Ask(context.Background(), AskRequest{Prompt: "one", UserID: "u1"})
	require.NoError(t, err)
	_, err = client.Ask(context.Background(), AskRequest{Prompt: "two"})
	require.Error(t, err)

	out := logs.String()
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "ask completed")
	assert.True(t, strings.Contains(out, "ask failed") && strings.Contains(out, "down"))
}
