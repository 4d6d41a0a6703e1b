package gemini

import (
	"regexp"
)

// Model is a Gemini, Imagen or Veo model identifier. Any string is accepted,
// the constants below are the ones known at release time.
type Model string

const (
	ModelGemini25Pro       Model = "gemini-2.5-pro"
	ModelGemini25Flash     Model = "gemini-2.5-flash"
	ModelGemini25FlashLite Model = "gemini-2.5-flash-lite"
	ModelGemini20Flash     Model = "gemini-2.0-flash"
	ModelGemini15Pro       Model = "gemini-1.5-pro"
	ModelGemini25FlashTTS  Model = "gemini-2.5-flash-preview-tts"
	ModelImagen4           Model = "imagen-4.0-generate-001"
	ModelVeo3              Model = "veo-3.0-generate-001"

	// DefaultModel is used when the config names none
	DefaultModel = ModelGemini25Flash

	// DefaultImageModel is used by GenerateImage when the request names none
	DefaultImageModel = ModelImagen4

	// DefaultSpeechModel is used by GenerateSpeech when the request names none
	DefaultSpeechModel = ModelGemini25FlashTTS

	// DefaultVideoModel is used by GenerateVideo when the request names none
	DefaultVideoModel = ModelVeo3
)

// DefaultVoice is the prebuilt voice used for speech
const DefaultVoice = "Kore"

// modelCapabilities defines the capabilities for a model pattern
type modelCapabilities struct {
	pattern        *regexp.Regexp
	maxTokens      int
	supportsTools  bool
	supportsVision bool
}

// modelCapabilitiesList is matched in order, first match wins
var modelCapabilitiesList = []modelCapabilities{
	{
		pattern:        regexp.MustCompile(`gemini-1\.5-pro`),
		maxTokens:      2097152,
		supportsTools:  true,
		supportsVision: true,
	},
	{
		pattern:        regexp.MustCompile(`gemini-.*-tts`),
		maxTokens:      8192,
		supportsTools:  false,
		supportsVision: false,
	},
	{
		pattern:        regexp.MustCompile(`gemini-(1\.5|2\.0|2\.5|3)`),
		maxTokens:      1048576,
		supportsTools:  true,
		supportsVision: true,
	},
	{
		pattern:        regexp.MustCompile(`gemma-`),
		maxTokens:      131072,
		supportsTools:  false,
		supportsVision: true,
	},
}

func capabilitiesFor(model string) modelCapabilities {
	for _, caps := range modelCapabilitiesList {
		if caps.pattern.MatchString(model) {
			return caps
		}
	}
	return modelCapabilities{maxTokens: 32768, supportsTools: true, supportsVision: true}
}
