// Package llm provides the provider-agnostic surface for talking to Large
// Language Models.
//
// Every provider adapter implements the same three calls:
//
//   - Ask: one turn, running any tools the model requests until it stops
//   - AskStream: a lazy, single-pass stream of answer text
//   - BatchAsk: several independent requests at once
//
// and returns the unified AIMessage envelope.
//
// The main components include:
//
// - Message types: canonical messages made of text, file, tool invocation and tool result parts
// - Tool registry: name-keyed callables, synchronous or asynchronous
// - BaseClient: the helpers adapters share (context preparation, tool execution,
//   structured output parsing, memory update)
// - Memory: the conversation session store contract
// - Structured output: json, yaml, csv, custom and a legacy text extractor
// - Error handling: the standardized *Error type
//
// Provider implementations are located in separate packages under /pkg/providers/
// to maintain clean separation of concerns and avoid import cycles.
package llm
