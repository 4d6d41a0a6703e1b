package factory

import (
	"fmt"
	"strings"

	"github.com/inercia/go-llm-unify/pkg/llm"
	"github.com/inercia/go-llm-unify/pkg/memory/inmemory"
)

const DefaultProvider = "openai"

// Factory creates LLM clients based on configuration
type Factory struct {
	memory      llm.Memory
	keys        llm.KeyProvider
	middlewares []llm.Middleware
}

// Option configures a Factory
type Option func(*Factory)

// WithMemory makes every client created by the factory use memory
func WithMemory(memory llm.Memory) Option {
	return func(f *Factory) {
		if memory != nil {
			f.memory = memory
		}
	}
}

// WithKeys sets where clients look up API keys and settings missing from
// their config
func WithKeys(keys llm.KeyProvider) Option {
	return func(f *Factory) {
		f.keys = keys
	}
}

// WithMiddleware wraps every client created by the factory with middlewares
func WithMiddleware(middlewares ...llm.Middleware) Option {
	return func(f *Factory) {
		f.middlewares = append(f.middlewares, middlewares...)
	}
}

// New creates a new client factory
func New(opts ...Option) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	if f.memory == nil {
		f.memory = inmemory.New()
	}
	return f
}

// Memory returns the memory shared by the clients of the factory
func (f *Factory) Memory() llm.Memory {
	return f.memory
}

// CreateClient creates an LLM client based on the configuration. A config
// without memory or key provider gets the factory's. With MaxRetries set the
// client is wrapped in an llm.RetryClient, and the factory middleware runs
// outside the retries.
func (f *Factory) CreateClient(config llm.ClientConfig) (llm.Client, error) {
	provider := config.Provider
	if provider == "" {
		provider = DefaultProvider
	}
	provider = strings.ToLower(provider)
	config.Provider = provider

	// Validate required fields
	if config.Model == "" {
		return nil, &llm.Error{
			Code:     llm.ErrCodeMissingModel,
			Message:  "model is required",
			Type:     "validation_error",
			Provider: provider,
		}
	}
	constructor, exists := GetProvider(provider)
	if !exists {
		return nil, &llm.Error{
			Code:    llm.ErrCodeUnsupportedProvider,
			Message: fmt.Sprintf("unsupported provider: %s", provider),
			Type:    "validation_error",
		}
	}

	if config.Memory == nil {
		config.Memory = f.memory
	}
	if config.Keys == nil {
		config.Keys = f.keys
	}
	client, err := constructor(config)
	if err != nil {
		return nil, err
	}
	if config.MaxRetries > 0 {
		client = llm.NewRetryClient(client, llm.RetryConfig{MaxRetries: config.MaxRetries}).
			WithLogger(config.GetLogger(provider))
	}
	return llm.ClientWithMiddleware(client, f.middlewares), nil
}
