package groq

import (
	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
	oai "github.com/inercia/go-llm-unify/pkg/providers/openai"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Model is a model hosted on Groq. Any string is accepted, the constants
// below are the ones known at release time.
type Model string

const (
	ModelLlama3370B     Model = "llama-3.3-70b-versatile"
	ModelLlama318B      Model = "llama-3.1-8b-instant"
	ModelLlama4Scout    Model = "meta-llama/llama-4-scout-17b-16e-instruct"
	ModelLlama4Maverick Model = "meta-llama/llama-4-maverick-17b-128e-instruct"
	ModelQwen332B       Model = "qwen/qwen3-32b"
	ModelGPTOSS120B     Model = "openai/gpt-oss-120b"
	ModelGPTOSS20B      Model = "openai/gpt-oss-20b"
	ModelKimiK2         Model = "moonshotai/kimi-k2-instruct"

	// DefaultModel is used when the config names none
	DefaultModel = ModelLlama3370B
)

// NewClient creates a Groq client. The API key is taken from the config or
// from GROQ_API_KEY.
func NewClient(config llm.ClientConfig, opts ...oai.Option) (*oai.Client, error) {
	apiKey := config.ResolveAPIKey("GROQ_API_KEY")
	if apiKey == "" {
		return nil, llm.NewMissingAPIKeyError(aimessage.ProviderGroq)
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	backend := oai.NewSDKBackend(aimessage.ProviderGroq, apiKey, baseURL, config.Timeout)
	return NewClientWithBackend(backend, config, opts...), nil
}

// NewClientWithBackend creates a Groq client over an existing backend
func NewClientWithBackend(backend oai.Backend, config llm.ClientConfig, opts ...oai.Option) *oai.Client {
	defaults := []oai.Option{
		oai.WithStructuredMode(oai.StructuredJSONObject),
		oai.WithStructuredFollowUp(),
		oai.WithTranslator(aimessage.FromGroq),
	}
	return oai.NewClientWithBackend(backend, config, string(DefaultModel), append(defaults, opts...)...)
}
