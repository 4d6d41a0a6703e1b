package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
	"github.com/inercia/go-llm-unify/pkg/providers/claude"
	"github.com/inercia/go-llm-unify/pkg/providers/gemini"
	"github.com/inercia/go-llm-unify/pkg/providers/groq"
	"github.com/inercia/go-llm-unify/pkg/providers/openai"
	"github.com/inercia/go-llm-unify/pkg/providers/openrouter"
)

// DefaultSection is the config section read by FromEnv
const DefaultSection = "llm"

// Provider looks up settings and credentials by name
type Provider struct {
	v      *viper.Viper
	dotenv map[string]string
	logger *slog.Logger

	dotEnvFiles []string
	configFile  string
}

var _ llm.KeyProvider = (*Provider)(nil)

// Option configures a Provider
type Option func(*Provider)

// WithDotEnv reads the given .env files. Missing files are ignored.
func WithDotEnv(paths ...string) Option {
	return func(p *Provider) {
		p.dotEnvFiles = append(p.dotEnvFiles, paths...)
	}
}

// WithConfigFile reads settings from a config file. Its format follows the
// extension.
func WithConfigFile(path string) Option {
	return func(p *Provider) {
		p.configFile = path
	}
}

// WithLogger sets the logger used to report the detected provider
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Load creates a Provider
func Load(opts ...Option) (*Provider, error) {
	p := &Provider{
		v:      viper.New(),
		dotenv: map[string]string{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	p.v.AutomaticEnv()

	for _, path := range p.dotEnvFiles {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		for k, val := range values {
			p.dotenv[strings.ToUpper(k)] = val
			p.v.SetDefault(k, val)
		}
	}

	if p.configFile != "" {
		p.v.SetConfigFile(p.configFile)
		if err := p.v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", p.configFile)
		}
	}
	return p, nil
}

// Lookup implements llm.KeyProvider
func (p *Provider) Lookup(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	value := p.v.GetString(name)
	return value, value != ""
}

// ClientConfig builds a client configuration from a section. The returned
// config looks up missing API keys through p.
func (p *Provider) ClientConfig(section string) (llm.ClientConfig, error) {
	p.seedSection(section)

	key := func(field string) string { return section + "." + field }

	timeout, err := parseTimeout(p.v.GetString(key("timeout")))
	if err != nil {
		return llm.ClientConfig{}, errors.Wrapf(err, "invalid %s", key("timeout"))
	}

	cfg := llm.ClientConfig{
		Provider:   strings.ToLower(p.v.GetString(key("provider"))),
		Model:      p.v.GetString(key("model")),
		APIKey:     p.v.GetString(key("api_key")),
		BaseURL:    p.v.GetString(key("base_url")),
		Timeout:    timeout,
		MaxRetries: p.v.GetInt(key("max_retries")),
		MaxTokens:  p.v.GetInt(key("max_tokens")),
		Keys:       p,
	}
	if extra := p.v.GetStringMapString(key("extra")); len(extra) > 0 {
		cfg.Extra = extra
	}
	return cfg, nil
}

// seedSection makes SECTION_FIELD entries of the .env files visible as
// section.field
func (p *Provider) seedSection(section string) {
	prefix := strings.ToUpper(section) + "_"
	for k, val := range p.dotenv {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			p.v.SetDefault(section+"."+strings.ToLower(rest), val)
		}
	}
}

// parseTimeout accepts a duration ("45s") or a number of seconds ("45")
func parseTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// detection order for FromEnv: the first provider with a key wins
var detection = []struct {
	provider string
	key      string
	model    string
}{
	{aimessage.ProviderClaude, "ANTHROPIC_API_KEY", string(claude.DefaultModel)},
	{aimessage.ProviderOpenAI, "OPENAI_API_KEY", string(openai.DefaultModel)},
	{aimessage.ProviderGemini, "GEMINI_API_KEY", string(gemini.DefaultModel)},
	{aimessage.ProviderGroq, "GROQ_API_KEY", string(groq.DefaultModel)},
	{openrouter.ProviderName, "OPENROUTER_API_KEY", openrouter.DefaultModel},
}

// FromEnv returns the configuration of the DefaultSection, filling the
// provider and model from the first API key found when the section names
// no provider. Without any key it falls back to the mock provider.
func (p *Provider) FromEnv() (llm.ClientConfig, error) {
	cfg, err := p.ClientConfig(DefaultSection)
	if err != nil {
		return cfg, err
	}
	if cfg.Provider != "" {
		return cfg, nil
	}

	for _, d := range detection {
		if _, ok := p.Lookup(d.key); !ok {
			continue
		}
		cfg.Provider = d.provider
		if cfg.Model == "" {
			cfg.Model = d.model
		}
		p.logger.Info("Using LLM provider", "provider", d.provider, "model", cfg.Model)
		return cfg, nil
	}

	cfg.Provider = "mock"
	if cfg.Model == "" {
		cfg.Model = "mock-model"
	}
	p.logger.Warn("No API key found, using the mock provider",
		"hint", "set ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, GROQ_API_KEY or OPENROUTER_API_KEY")
	return cfg, nil
}

// Prompts returns the system and user prompts of a section, listed under
// its "prompts" key
func (p *Provider) Prompts(section string) llm.PromptsConfig {
	return llm.PromptsConfig{
		System: p.v.GetStringSlice(section + ".prompts.system"),
		User:   p.v.GetStringSlice(section + ".prompts.user"),
	}
}
