package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptsConfig(t *testing.T) {
	t.Parallel()
	prompts := PromptsConfig{
		System: []string{"You are terse.", "Answer in English."},
		User:   []string{"Summarize the text."},
	}

	assert.True(t, prompts.HasSystemPrompts())
	assert.True(t, prompts.HasUserPrompts())
	assert.Equal(t, "You are terse.\nAnswer in English.", prompts.GetSystemPrompts())
	assert.False(t, PromptsConfig{}.HasUserPrompts())

	req := prompts.Apply(AskRequest{Model: "m"})
	assert.Equal(t, "Summarize the text.", req.Prompt)
	assert.Equal(t, "You are terse.\nAnswer in English.", req.SystemPrompt)
	assert.Equal(t, "m", req.Model)

	// explicit values are kept
	req = prompts.Apply(AskRequest{Prompt: "hi", SystemPrompt: "be kind"})
	assert.Equal(t, "hi", req.Prompt)
	assert.Equal(t, "be kind", req.SystemPrompt)
}

func TestPromptTemplate_Render(t *testing.T) {
	t.Parallel()

	out, err := NewPromptTemplateRendered("Translate {{.Text}} to {{.Lang}}", map[string]any{"Text": "hola", "Lang": "English"})
	require.NoError(t, err)
	assert.Equal(t, "Translate hola to English", out)

	_, err = NewPromptTemplate("Hello {{.Name}}").Render(map[string]any{})
	assert.Error(t, err)

	_, err = NewPromptTemplate("Hello {{.Name").Render(nil)
	assert.Error(t, err)
}

func TestPromptTemplate_RenderWithJSONSchemaFor(t *testing.T) {
	t.Parallel()
	inputs := map[string]any{"City": "Lisbon"}

	out, err := NewPromptTemplate("Weather for {{.City}} as:\n{{.JSONSchema}}").RenderWithJSONSchemaFor(inputs, weather{})
	require.NoError(t, err)
	assert.Contains(t, out, "Weather for Lisbon as:")
	assert.Contains(t, out, `"temperature"`)
	assert.NotContains(t, inputs, "JSONSchema")
}

func TestStructuredOutputConfig_Instructions(t *testing.T) {
	t.Parallel()

	instructions := NewStructuredOutput(planet{}).Instructions()
	assert.Contains(t, instructions, "JSON Schema")
	assert.Contains(t, instructions, `"moons"`)
}
