package llm

import (
	"encoding/json"
	"reflect"
	"strings"
)

// OutputFormat selects how response text is coerced into a structured value
type OutputFormat string

const (
	OutputFormatJSON   OutputFormat = "json"
	OutputFormatYAML   OutputFormat = "yaml"
	OutputFormatCSV    OutputFormat = "csv"
	OutputFormatText   OutputFormat = "text"
	OutputFormatCustom OutputFormat = "custom"
)

// StructuredOutputConfig asks an adapter to coerce the final answer into
// OutputType. OutputType is a sample value (usually the zero value of a
// struct); Parser is only used with OutputFormatCustom.
type StructuredOutputConfig struct {
	OutputType  any
	Format      OutputFormat
	Parser      func(text string) (any, error)
	Name        string
	Description string
}

// NewStructuredOutput returns a JSON structured output config for outputType
func NewStructuredOutput(outputType any) *StructuredOutputConfig {
	return &StructuredOutputConfig{OutputType: outputType, Format: OutputFormatJSON}
}

// SchemaName returns the configured name or one derived from the output type
func (c *StructuredOutputConfig) SchemaName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.OutputType == nil {
		return "response"
	}
	t := reflect.TypeOf(c.OutputType)
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "response"
	}
	return strings.ToLower(t.Name())
}

// Schema reflects the JSON Schema of the output type. A nil output type has
// no schema.
func (c *StructuredOutputConfig) Schema() (map[string]any, error) {
	if c.OutputType == nil {
		return nil, nil
	}
	return SchemaFromStructAsMap(c.OutputType)
}

// SchemaJSON is Schema encoded as JSON
func (c *StructuredOutputConfig) SchemaJSON() (json.RawMessage, error) {
	schema, err := c.Schema()
	if err != nil || schema == nil {
		return nil, err
	}
	return json.Marshal(schema)
}

// IsJSON reports whether the config can be served by a vendor's native JSON mode
func (c *StructuredOutputConfig) IsJSON() bool {
	return c.Format == "" || c.Format == OutputFormatJSON
}

// Instructions renders the formatting instructions appended to the system
// prompt for vendors without a native structured-output mode.
func (c *StructuredOutputConfig) Instructions() string {
	switch c.Format {
	case OutputFormatYAML:
		return "Respond only with YAML, without any surrounding explanation."
	case OutputFormatCSV:
		return "Respond only with CSV including a header row, without any surrounding explanation."
	case OutputFormatText, OutputFormatCustom:
		return ""
	}

	if c.OutputType == nil {
		return "Respond only with a valid JSON object, without any surrounding explanation."
	}
	instructions, err := jsonInstructions.RenderWithJSONSchemaFor(nil, c.OutputType)
	if err != nil {
		return "Respond only with a valid JSON object, without any surrounding explanation."
	}
	return instructions
}

var jsonInstructions = NewPromptTemplate("Respond only with a valid JSON object that conforms to this JSON Schema, without any surrounding explanation:\n{{.JSONSchema}}")
