package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Middleware intercepts the requests and responses of a client
type Middleware interface {
	// Name returns the middleware name for identification
	Name() string

	// ProcessRequest processes the request before it reaches the client
	ProcessRequest(ctx context.Context, req *AskRequest) (*AskRequest, error)

	// ProcessResponse processes the answer (or the error) of the client
	ProcessResponse(ctx context.Context, req *AskRequest, msg *AIMessage, err error) (*AIMessage, error)
}

// MiddlewareChain manages a chain of middleware
type MiddlewareChain struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares []Middleware) *MiddlewareChain {
	chain := &MiddlewareChain{}
	for _, middleware := range middlewares {
		chain.AddMiddleware(middleware)
	}
	return chain
}

// AddMiddleware adds a middleware to the end of the chain
func (c *MiddlewareChain) AddMiddleware(middleware Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, middleware)
}

// RemoveMiddleware removes a middleware by name
func (c *MiddlewareChain) RemoveMiddleware(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, middleware := range c.middlewares {
		if middleware.Name() == name {
			c.middlewares = append(c.middlewares[:i], c.middlewares[i+1:]...)
			return true
		}
	}
	return false
}

func (c *MiddlewareChain) snapshot() []Middleware {
	c.mu.RLock()
	defer c.mu.RUnlock()
	middlewares := make([]Middleware, len(c.middlewares))
	copy(middlewares, c.middlewares)
	return middlewares
}

// ProcessRequest runs req through the chain in order. The first failing
// middleware aborts the request.
func (c *MiddlewareChain) ProcessRequest(ctx context.Context, req *AskRequest) (*AskRequest, error) {
	currentReq := req
	var err error

	for _, middleware := range c.snapshot() {
		currentReq, err = middleware.ProcessRequest(ctx, currentReq)
		if err != nil {
			return nil, fmt.Errorf("middleware %s failed: %w", middleware.Name(), err)
		}
	}
	return currentReq, nil
}

// ProcessResponse runs the answer through the chain in reverse order. Each
// middleware sees the error left by the previous one and may replace it.
func (c *MiddlewareChain) ProcessResponse(ctx context.Context, req *AskRequest, msg *AIMessage, err error) (*AIMessage, error) {
	middlewares := c.snapshot()
	for i := len(middlewares) - 1; i >= 0; i-- {
		msg, err = middlewares[i].ProcessResponse(ctx, req, msg, err)
	}
	return msg, err
}

// GetMiddlewareNames returns the names of all middleware in the chain
func (c *MiddlewareChain) GetMiddlewareNames() []string {
	middlewares := c.snapshot()
	names := make([]string, len(middlewares))
	for i, middleware := range middlewares {
		names[i] = middleware.Name()
	}
	return names
}

// LoggingMiddleware logs every call with its duration, usage and outcome
type LoggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware creates a LoggingMiddleware. A nil logger means slog.Default().
func NewLoggingMiddleware(logger *slog.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware{logger: logger}
}

type startKey struct{}

func (m *LoggingMiddleware) Name() string { return "logging" }

func (m *LoggingMiddleware) ProcessRequest(ctx context.Context, req *AskRequest) (*AskRequest, error) {
	m.logger.DebugContext(ctx, "ask", "model", req.Model, "user_id", req.UserID, "session_id", req.SessionID,
		"files", len(req.Files), "structured", req.StructuredOutput != nil)
	return req, nil
}

func (m *LoggingMiddleware) ProcessResponse(ctx context.Context, req *AskRequest, msg *AIMessage, err error) (*AIMessage, error) {
	if err != nil {
		m.logger.WarnContext(ctx, "ask failed", "model", req.Model, "error", err)
		return msg, err
	}
	attrs := []any{"model", msg.Model, "provider", msg.Provider, "turn_id", msg.TurnID,
		"total_tokens", msg.Usage.TotalTokens, "tool_calls", len(msg.ToolCalls)}
	if !msg.CreatedAt.IsZero() {
		attrs = append(attrs, "elapsed", time.Since(msg.CreatedAt))
	}
	m.logger.InfoContext(ctx, "ask completed", attrs...)
	return msg, nil
}
