// Package llm provides retry functionality for clients with exponential backoff.
//
// Examples:
//
// Basic usage with default configuration (3 retries, 1s base delay, 2x backoff):
//
//	client, _ := claude.NewClient(config)
//	retryClient := llm.NewRetryClient(client)
//	msg, err := retryClient.Ask(ctx, llm.AskRequest{Prompt: "Hello"})
//
// Only retry rate limits:
//
//	retryClient := llm.NewRetryClient(client, llm.RetryConfig{
//		MaxRetries:         5,
//		BaseDelay:          2 * time.Second,
//		RetryOnStatusCodes: []int{429},
//	})
package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig defines configuration options for the retry mechanism.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	// Total requests = MaxRetries + 1 (original attempt).
	MaxRetries int

	// BaseDelay is the initial delay between retries (default: 1 second).
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries (default: 60 seconds).
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay after each retry (default: 2.0).
	BackoffFactor float64

	// Jitter randomizes each delay by ±50% to avoid retry storms.
	Jitter bool

	// RetryOnStatusCodes lists the HTTP status codes to retry on. Empty
	// means 429 and 5xx.
	RetryOnStatusCodes []int

	// RetryOnErrorTypes lists error types (such as "rate_limit_error") that
	// are retried whatever their status code.
	RetryOnErrorTypes []string
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffFactor:     2.0,
		Jitter:            true,
		RetryOnErrorTypes: []string{"rate_limit_error"},
	}
}

// withDefaults fills zero values from DefaultRetryConfig
func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = def.BackoffFactor
	}
	return c
}

// IsRetryable reports whether err is worth another attempt. Only *Error
// values are retried; context errors never are.
func (c RetryConfig) IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		return false
	}
	if slices.Contains(c.RetryOnErrorTypes, llmErr.Type) {
		return true
	}
	if len(c.RetryOnStatusCodes) > 0 {
		return slices.Contains(c.RetryOnStatusCodes, llmErr.StatusCode)
	}
	return llmErr.StatusCode == http.StatusTooManyRequests ||
		(llmErr.StatusCode >= 500 && llmErr.StatusCode < 600)
}

// newBackOff returns the retry schedule
func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.BackoffFactor
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	if c.Jitter {
		b.RandomizationFactor = 0.5
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.MaxRetries)), ctx)
}

// Retry runs op until it succeeds, fails with a non-retryable error or the
// retries are exhausted. The last error is returned.
func Retry[T any](ctx context.Context, config RetryConfig, logger *slog.Logger, op func() (T, error)) (T, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	attempt := func() (T, error) {
		res, err := op()
		if err != nil && !config.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, delay time.Duration) {
		logger.Warn("retrying after error", "error", err, "delay", delay)
	}
	return backoff.RetryNotifyWithData(attempt, config.newBackOff(ctx), notify)
}

// RetryClient wraps a Client so that Ask and BatchAsk are retried on
// throttling and temporary server errors. Streams are not retried.
//
// A retried Ask starts the turn over, including any tool rounds: tools with
// side effects may run more than once.
type RetryClient struct {
	Client
	config RetryConfig
	logger *slog.Logger
}

// NewRetryClient creates a retrying wrapper around client
func NewRetryClient(client Client, config ...RetryConfig) *RetryClient {
	cfg := DefaultRetryConfig()
	if len(config) > 0 {
		cfg = config[0].withDefaults()
	}
	return &RetryClient{Client: client, config: cfg, logger: slog.Default()}
}

// WithLogger sets the logger reporting retries
func (r *RetryClient) WithLogger(logger *slog.Logger) *RetryClient {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Unwrap returns the wrapped client
func (r *RetryClient) Unwrap() Client {
	return r.Client
}

// Ask executes the request with retry logic
func (r *RetryClient) Ask(ctx context.Context, req AskRequest) (*AIMessage, error) {
	return Retry(ctx, r.config, r.logger, func() (*AIMessage, error) {
		return r.Client.Ask(ctx, req)
	})
}

// BatchAsk executes the batch with retry logic
func (r *RetryClient) BatchAsk(ctx context.Context, reqs []AskRequest) ([]*AIMessage, error) {
	return Retry(ctx, r.config, r.logger, func() ([]*AIMessage, error) {
		return r.Client.BatchAsk(ctx, reqs)
	})
}

var _ Client = (*RetryClient)(nil)
