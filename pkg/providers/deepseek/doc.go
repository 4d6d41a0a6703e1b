// Package deepseek provides a DeepSeek backend for the OpenAI-style client.
//
// Requests are built with the go-openai types shared by every
// OpenAI-compatible vendor and sent through github.com/cohesion-org/deepseek-go.
// DeepSeek has no json_schema response format, so structured output is
// described in the system prompt.
//
// Usage:
//
//	client, err := deepseek.NewClient(llm.ClientConfig{Model: "deepseek-chat"})
//	msg, err := client.Ask(ctx, llm.AskRequest{Prompt: "Hello"})
package deepseek
