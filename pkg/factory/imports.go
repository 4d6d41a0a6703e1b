package factory

import (
	"github.com/inercia/go-llm-unify/pkg/llm"
	"github.com/inercia/go-llm-unify/pkg/providers/claude"
	"github.com/inercia/go-llm-unify/pkg/providers/deepseek"
	"github.com/inercia/go-llm-unify/pkg/providers/gemini"
	"github.com/inercia/go-llm-unify/pkg/providers/groq"
	"github.com/inercia/go-llm-unify/pkg/providers/mock"
	"github.com/inercia/go-llm-unify/pkg/providers/openai"
	"github.com/inercia/go-llm-unify/pkg/providers/openrouter"
)

func init() {
	// Register the Claude provider, on the Anthropic API and on Bedrock
	newClaude := func(config llm.ClientConfig) (llm.Client, error) {
		return claude.NewClient(config)
	}
	RegisterProvider("claude", newClaude)
	RegisterProvider("anthropic", newClaude)
	RegisterProvider("bedrock", func(config llm.ClientConfig) (llm.Client, error) {
		return claude.NewBedrockClient(config)
	})

	// Register the OpenAI provider and the OpenAI-compatible ones
	RegisterProvider("openai", func(config llm.ClientConfig) (llm.Client, error) {
		return openai.NewClient(config)
	})
	RegisterProvider("deepseek", func(config llm.ClientConfig) (llm.Client, error) {
		return deepseek.NewClient(config)
	})
	RegisterProvider("openrouter", func(config llm.ClientConfig) (llm.Client, error) {
		return openrouter.NewClient(config)
	})
	RegisterProvider("groq", func(config llm.ClientConfig) (llm.Client, error) {
		return groq.NewClient(config)
	})

	// Register the Gemini provider, on the Gemini API and on Vertex AI
	RegisterProvider("gemini", func(config llm.ClientConfig) (llm.Client, error) {
		return gemini.NewClient(config)
	})
	RegisterProvider("vertex", func(config llm.ClientConfig) (llm.Client, error) {
		return gemini.NewVertexClient(config)
	})

	// Register the mock provider
	newMock := func(config llm.ClientConfig) (llm.Client, error) {
		return mock.NewClient(config)
	}
	RegisterProvider("mock", newMock)
	RegisterProvider("mocked", newMock)
}
