// Package factory provides provider registration and factory functionality for go-llm-unify.
//
// This package manages the registration of LLM providers and provides factory methods
// to create clients. Importing it registers every adapter of the module under its
// provider name: claude (alias anthropic), bedrock, openai, deepseek, openrouter,
// gemini, vertex, groq and mock.
//
// Clients created by the factory share one conversation memory. Unless another
// one is given with WithMemory, it is a process-local inmemory store.
//
// Example usage:
//
//	f := factory.New()
//	client, err := f.CreateClient(llm.ClientConfig{
//	    Provider: "claude",
//	    Model:    "claude-sonnet-4-5",
//	})
package factory
