package llm

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"
)

// ParseStructuredOutput coerces text according to config. It never fails:
// when the text cannot be coerced the raw text is returned and a warning is
// logged.
func ParseStructuredOutput(logger *slog.Logger, text string, config *StructuredOutputConfig) any {
	if config == nil {
		return text
	}
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := strings.TrimSpace(RemoveBlocks(text, "think"))

	var (
		value any
		err   error
	)
	switch config.Format {
	case OutputFormatJSON, "":
		value, err = parseJSONOutput(cleaned, config.OutputType)
	case OutputFormatYAML:
		value, err = parseYAMLOutput(cleaned, config.OutputType)
	case OutputFormatCSV:
		value, err = parseCSVOutput(cleaned, config.OutputType)
	case OutputFormatCustom:
		if config.Parser == nil {
			err = errors.New("custom format requires a parser")
		} else {
			value, err = config.Parser(cleaned)
		}
	case OutputFormatText:
		value, err = parseTextOutput(cleaned, config.OutputType)
	default:
		err = fmt.Errorf("unknown output format %q", config.Format)
	}

	if err != nil {
		logger.Warn("structured output parsing failed, returning raw text",
			"format", string(config.Format), "error", err)
		return text
	}
	return value
}

func decodeJSON(text string, outputType any) (any, error) {
	target := newTarget(outputType)
	if err := json.Unmarshal([]byte(text), target); err != nil {
		return nil, err
	}
	return derefTarget(target), nil
}

// parseJSONOutput decodes text into outputType. Untyped outputs must be an
// object, an array, a number or a boolean: jsonrepair quotes plain prose into
// a JSON string, which is not a structured answer.
func parseJSONOutput(text string, outputType any) (any, error) {
	value, err := decodeJSONValue(text, outputType)
	if err != nil {
		return nil, err
	}
	if s, isString := value.(string); isString && outputType == nil {
		return nil, fmt.Errorf("expected a JSON value, got the string %q", s)
	}
	return value, nil
}

func decodeJSONValue(text string, outputType any) (any, error) {
	value, err := decodeJSON(text, outputType)
	if err == nil {
		return value, nil
	}

	extracted := ExtractJSONFromResponse(text)
	if extracted != text {
		if value, extractErr := decodeJSON(extracted, outputType); extractErr == nil {
			return value, nil
		}
	}

	repaired, repairErr := jsonrepair.JSONRepair(extracted)
	if repairErr != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return decodeJSON(repaired, outputType)
}

var yamlFence = regexp.MustCompile("(?i)```(?:ya?ml)?\\s*([\\s\\S]*?)```")

func parseYAMLOutput(text string, outputType any) (any, error) {
	if m := yamlFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	target := newTarget(outputType)
	decoder := yaml.NewDecoder(strings.NewReader(text))
	if outputType != nil {
		decoder.KnownFields(true)
	}
	if err := decoder.Decode(target); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return derefTarget(target), nil
}

var csvFence = regexp.MustCompile("(?i)```(?:csv)?\\s*([\\s\\S]*?)```")

// parseCSVOutput reads a header row followed by records. Without a typed
// slice output the records are returned as []map[string]string.
func parseCSVOutput(text string, outputType any) (any, error) {
	if m := csvFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				row[strings.TrimSpace(column)] = record[i]
			}
		}
		rows = append(rows, row)
	}

	if outputType == nil {
		return rows, nil
	}
	sliceType := reflect.TypeOf(outputType)
	if sliceType.Kind() != reflect.Slice || sliceType.Elem().Kind() != reflect.Struct {
		return rows, nil
	}

	out := reflect.MakeSlice(sliceType, 0, len(rows))
	for _, row := range rows {
		elem := reflect.New(sliceType.Elem()).Elem()
		if err := assignFields(elem, row); err != nil {
			return nil, err
		}
		out = reflect.Append(out, elem)
	}
	return out.Interface(), nil
}

// assignFields sets struct fields from string values keyed by json tag or
// field name
func assignFields(elem reflect.Value, values map[string]string) error {
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		raw, ok := lookupField(values, field)
		if !ok {
			continue
		}
		if err := setScalar(elem.Field(i), strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func lookupField(values map[string]string, field reflect.StructField) (string, bool) {
	name := strings.Split(field.Tag.Get("json"), ",")[0]
	if name == "" {
		name = field.Name
	}
	for key, v := range values {
		if strings.EqualFold(key, name) {
			return v, true
		}
	}
	return "", false
}

func setScalar(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseTextOutput is the legacy natural-language extractor. It only knows
// one shape: a struct with exactly two numeric fields. Each field is looked
// up by name in the text ("area is 12.5"); otherwise the first two numbers
// in the text fill the fields in declaration order.
func parseTextOutput(text string, outputType any) (any, error) {
	if outputType == nil {
		return nil, errors.New("text format requires an output type")
	}
	t := reflect.TypeOf(outputType)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.New("text format requires a struct output type")
	}

	var fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && isNumericKind(f.Type.Kind()) {
			fields = append(fields, f)
		}
	}
	if len(fields) != 2 {
		return nil, fmt.Errorf("text format supports two numeric fields, %s has %d", t.Name(), len(fields))
	}

	elem := reflect.New(t).Elem()
	values := make([]string, 2)
	for i, f := range fields {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" {
			name = f.Name
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.ReplaceAll(name, "_", " ")) + `\b[^0-9\-]{0,24}(-?\d+(?:\.\d+)?)`)
		if m := re.FindStringSubmatch(strings.ReplaceAll(text, "_", " ")); m != nil {
			values[i] = m[1]
		}
	}

	if values[0] == "" || values[1] == "" {
		numbers := numberPattern.FindAllString(text, 2)
		if len(numbers) < 2 {
			return nil, errors.New("text does not contain two numbers")
		}
		values = numbers
	}

	for i, f := range fields {
		if err := setScalar(elem.FieldByIndex(f.Index), values[i]); err != nil {
			return nil, err
		}
	}
	return elem.Interface(), nil
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
