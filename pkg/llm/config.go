// Configuration types
package llm

import (
	"log/slog"
	"os"
	"time"
)

// KeyProvider looks up credentials and settings by name, such as "ANTHROPIC_API_KEY"
type KeyProvider interface {
	Lookup(name string) (string, bool)
}

// envKeys is the fallback KeyProvider reading the process environment
type envKeys struct{}

func (envKeys) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// ClientConfig holds configuration for creating LLM clients
type ClientConfig struct {
	Provider   string            `json:"provider" mapstructure:"provider"` // claude, openai, gemini, vertex, groq, etc.
	Model      string            `json:"model" mapstructure:"model"`
	APIKey     string            `json:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string            `json:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    time.Duration     `json:"timeout,omitempty" mapstructure:"timeout"`
	MaxRetries int               `json:"max_retries,omitempty" mapstructure:"max_retries"`
	MaxTokens  int               `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Extra      map[string]string `json:"extra,omitempty" mapstructure:"extra"` // Provider-specific configs

	Memory Memory       `json:"-" mapstructure:"-"`
	Logger *slog.Logger `json:"-" mapstructure:"-"`
	Keys   KeyProvider  `json:"-" mapstructure:"-"`
}

// ResolveAPIKey returns the explicit APIKey, or the first of names found
// through Keys (the environment when Keys is nil)
func (c ClientConfig) ResolveAPIKey(names ...string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.Lookup(names...)
}

// Lookup returns the first non-empty value among names
func (c ClientConfig) Lookup(names ...string) string {
	keys := c.Keys
	if keys == nil {
		keys = envKeys{}
	}
	for _, name := range names {
		if v, ok := keys.Lookup(name); ok && v != "" {
			return v
		}
	}
	return ""
}

// ExtraValue returns a provider-specific setting, falling back to def
func (c ClientConfig) ExtraValue(key, def string) string {
	if v, ok := c.Extra[key]; ok && v != "" {
		return v
	}
	return def
}

// GetLogger returns the configured logger tagged with the provider name
func (c ClientConfig) GetLogger(provider string) *slog.Logger {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("provider", provider)
}
