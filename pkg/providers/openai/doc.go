// Package openai implements llm.Client for OpenAI-compatible Chat Completions
// vendors.
//
// The client talks to a Backend. The default backend uses
// github.com/sashabaranov/go-openai and works against api.openai.com or any
// compatible endpoint; the deepseek and openrouter packages provide backends
// over their own SDKs. Tools are sent in the {type: function} envelope and
// structured output uses response_format json_schema unless the backend
// needs a weaker StructuredMode.
//
// The conversion helpers (ConvertMessages, ConvertTools, ParseToolCalls,
// ResponseFormat, ConvertError) are exported for those backends.
package openai
