package claude

import "strings"

// Model is a Claude model identifier. Any string is accepted, the constants
// below are the ones known at release time.
type Model string

const (
	ModelOpus41   Model = "claude-opus-4-1"
	ModelOpus4    Model = "claude-opus-4-0"
	ModelSonnet45 Model = "claude-sonnet-4-5"
	ModelSonnet4  Model = "claude-sonnet-4-0"
	ModelHaiku45  Model = "claude-haiku-4-5"
	ModelSonnet37 Model = "claude-3-7-sonnet-latest"
	ModelHaiku35  Model = "claude-3-5-haiku-latest"

	// DefaultModel is used when neither the config nor the request name one
	DefaultModel = ModelSonnet45

	// DefaultBedrockModel is the default model id on AWS Bedrock
	DefaultBedrockModel Model = "anthropic.claude-3-5-haiku-20241022-v1:0"
)

// Max output tokens sent when the request does not set one. The Messages
// API requires the field.
const defaultMaxTokens = 4096

const contextWindow = 200000

func supportsVision(model string) bool {
	return !strings.Contains(model, "claude-instant") && !strings.Contains(model, "claude-2")
}
