package openai

import (
	"regexp"
)

// Model is an OpenAI model identifier. Any string is accepted, the constants
// below are the ones known at release time.
type Model string

const (
	ModelGPT5       Model = "gpt-5"
	ModelGPT5Mini   Model = "gpt-5-mini"
	ModelGPT41      Model = "gpt-4.1"
	ModelGPT41Mini  Model = "gpt-4.1-mini"
	ModelGPT4o      Model = "gpt-4o"
	ModelGPT4oMini  Model = "gpt-4o-mini"
	ModelO3         Model = "o3"
	ModelO4Mini     Model = "o4-mini"
	ModelGPT35Turbo Model = "gpt-3.5-turbo"

	// DefaultModel is used when the config names none
	DefaultModel = ModelGPT4oMini
)

// modelAttribute maps model names matching Pattern to Value
type modelAttribute[T any] struct {
	Pattern *regexp.Regexp
	Value   T
}

var (
	visionSupport = []modelAttribute[bool]{
		{regexp.MustCompile(`^gpt-4o`), true},
		{regexp.MustCompile(`^gpt-4\.1`), true},
		{regexp.MustCompile(`^gpt-5`), true},
		{regexp.MustCompile(`^gpt-4-turbo`), true},
		{regexp.MustCompile(`^o[134]`), true},
		{regexp.MustCompile(`.*`), false},
	}

	contextLength = []modelAttribute[int]{
		{regexp.MustCompile(`^gpt-4\.1`), 1047576},
		{regexp.MustCompile(`^gpt-5`), 400000},
		{regexp.MustCompile(`^o[134]`), 200000},
		{regexp.MustCompile(`^gpt-4o`), 128000},
		{regexp.MustCompile(`^gpt-4-turbo`), 128000},
		{regexp.MustCompile(`^gpt-4-32k`), 32768},
		{regexp.MustCompile(`^gpt-4`), 8192},
		{regexp.MustCompile(`^gpt-3\.5-turbo`), 16384},
		{regexp.MustCompile(`.*`), 128000},
	}
)

// modelValue returns the value of the first pattern matching model
func modelValue[T any](model string, attributes []modelAttribute[T]) T {
	for _, attr := range attributes {
		if attr.Pattern.MatchString(model) {
			return attr.Value
		}
	}
	var zero T
	return zero
}

var reasoningModel = regexp.MustCompile(`^(o\d|gpt-5)`)

// isReasoningModel reports models that take max_completion_tokens instead of max_tokens
func isReasoningModel(model string) bool {
	return reasoningModel.MatchString(model)
}
