package llm

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/swaggest/jsonschema-go"
)

// SchemaFromStruct reflects the JSON Schema of v with every reference
// inlined. Field tags drive the result:
//
//	type Person struct {
//	    Name string `json:"name" required:"true" description:"Full name"`
//	    Age  int    `json:"age" minimum:"0" maximum:"150"`
//	}
func SchemaFromStruct(v any) (jsonschema.Schema, error) {
	var reflector jsonschema.Reflector
	schema, err := reflector.Reflect(v, jsonschema.InlineRefs)
	if err != nil {
		return jsonschema.Schema{}, fmt.Errorf("reflecting JSON schema of %T: %w", v, err)
	}
	return schema, nil
}

// SchemaFromStructAsMap returns the schema of v as a generic map, the shape
// vendor SDKs take for tool parameters
func SchemaFromStructAsMap(v any) (map[string]any, error) {
	schema, err := SchemaFromStruct(v)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON schema of %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding JSON schema of %T: %w", v, err)
	}
	return out, nil
}

// newTarget returns a pointer to a fresh zero value of outputType's type.
// A nil outputType yields a pointer to an untyped value.
func newTarget(outputType any) any {
	if outputType == nil {
		var v any
		return &v
	}
	t := reflect.TypeOf(outputType)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}

// derefTarget returns the value a pointer produced by newTarget points to
func derefTarget(target any) any {
	return reflect.ValueOf(target).Elem().Interface()
}
