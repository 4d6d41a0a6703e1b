package llm

import (
	"context"
)

// EnhancedClient wraps a Client with a middleware chain. Tool registration
// and Close go straight to the wrapped client.
type EnhancedClient struct {
	Client
	chain *MiddlewareChain
}

// NewEnhancedClient creates a client running every call through chain
func NewEnhancedClient(client Client, chain []Middleware) *EnhancedClient {
	return &EnhancedClient{
		Client: client,
		chain:  NewMiddlewareChain(chain),
	}
}

// Unwrap returns the wrapped client
func (e *EnhancedClient) Unwrap() Client {
	return e.Client
}

// Ask runs the request through the chain and the wrapped client
func (e *EnhancedClient) Ask(ctx context.Context, req AskRequest) (*AIMessage, error) {
	processed, err := e.chain.ProcessRequest(ctx, &req)
	if err != nil {
		return e.chain.ProcessResponse(ctx, &req, nil, err)
	}
	msg, err := e.Client.Ask(ctx, *processed)
	return e.chain.ProcessResponse(ctx, processed, msg, err)
}

// AskStream only runs the request half of the chain, as a stream has no
// AIMessage to hand to ProcessResponse
func (e *EnhancedClient) AskStream(ctx context.Context, req AskRequest) *TextStream {
	processed, err := e.chain.ProcessRequest(ctx, &req)
	if err != nil {
		return NewFailedStream(err)
	}
	return e.Client.AskStream(ctx, *processed)
}

// BatchAsk processes every request, sends the batch to the wrapped client
// and processes every answer
func (e *EnhancedClient) BatchAsk(ctx context.Context, reqs []AskRequest) ([]*AIMessage, error) {
	processed := make([]AskRequest, 0, len(reqs))
	for i := range reqs {
		req, err := e.chain.ProcessRequest(ctx, &reqs[i])
		if err != nil {
			return nil, err
		}
		processed = append(processed, *req)
	}

	msgs, err := e.Client.BatchAsk(ctx, processed)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i], err = e.chain.ProcessResponse(ctx, &processed[i], msgs[i], nil); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// AddMiddleware adds a middleware to the end of the chain
func (e *EnhancedClient) AddMiddleware(middleware Middleware) {
	e.chain.AddMiddleware(middleware)
}

// RemoveMiddleware removes a middleware by name
func (e *EnhancedClient) RemoveMiddleware(name string) bool {
	return e.chain.RemoveMiddleware(name)
}

// GetMiddlewareNames returns the names of the middleware in the chain
func (e *EnhancedClient) GetMiddlewareNames() []string {
	return e.chain.GetMiddlewareNames()
}

// ClientWithMiddleware returns client wrapped with chain, or client itself
// when the chain is empty
func ClientWithMiddleware(client Client, chain []Middleware) Client {
	if len(chain) == 0 {
		return client
	}
	return NewEnhancedClient(client, chain)
}
