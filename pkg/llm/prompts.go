package llm

import (
	"encoding/json"
	"maps"
	"strings"
	"text/template"
)

// PromptsConfig holds configured system and user prompt lines, as loaded
// from a config file section
type PromptsConfig struct {
	System []string `yaml:"system,omitempty" mapstructure:"system"`
	User   []string `yaml:"user,omitempty" mapstructure:"user"`
}

// GetSystemPrompts joins the system prompt lines
func (p PromptsConfig) GetSystemPrompts() string {
	return strings.Join(p.System, "\n")
}

// GetUserPrompts joins the user prompt lines
func (p PromptsConfig) GetUserPrompts() string {
	return strings.Join(p.User, "\n")
}

func (p PromptsConfig) HasSystemPrompts() bool { return len(p.System) > 0 }

func (p PromptsConfig) HasUserPrompts() bool { return len(p.User) > 0 }

// Apply fills the prompt and system prompt of req that are still empty
func (p PromptsConfig) Apply(req AskRequest) AskRequest {
	if req.SystemPrompt == "" {
		req.SystemPrompt = p.GetSystemPrompts()
	}
	if req.Prompt == "" {
		req.Prompt = p.GetUserPrompts()
	}
	return req
}

// PromptTemplate is a text/template prompt. Referencing an input that was
// not supplied is an error.
type PromptTemplate struct {
	Template string
}

func NewPromptTemplate(text string) PromptTemplate {
	return PromptTemplate{Template: text}
}

// NewPromptTemplateRendered renders text with inputs in one step
func NewPromptTemplateRendered(text string, inputs map[string]any) (string, error) {
	return NewPromptTemplate(text).Render(inputs)
}

// Render executes the template against inputs
func (pt PromptTemplate) Render(inputs map[string]any) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(pt.Template)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, inputs); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderWithJSONSchemaFor renders the template with inputs plus the indented
// JSON Schema of v under "JSONSchema". inputs is not modified.
func (pt PromptTemplate) RenderWithJSONSchemaFor(inputs map[string]any, v any) (string, error) {
	schema, err := SchemaFromStruct(v)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(schema, "", " ")
	if err != nil {
		return "", err
	}

	data := make(map[string]any, len(inputs)+1)
	maps.Copy(data, inputs)
	data["JSONSchema"] = string(raw)
	return pt.Render(data)
}
