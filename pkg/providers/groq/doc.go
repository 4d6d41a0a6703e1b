// Package groq implements llm.Client for Groq's OpenAI-compatible API.
//
// Groq cannot combine tool calls and a response format in one request. When
// a call registers tools and asks for structured output, the tool rounds run
// first and one additional request with response_format json_object turns
// the answer into the requested structure. Reasoning models inline their
// thinking in <think> blocks; those are dropped from the answer.
package groq
