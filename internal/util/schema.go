package util

import (
	"fmt"
	"slices"
)

// ValidationError reports the first argument that does not match a schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Property declares one argument of an object schema.
type Property struct {
	Name        string
	Type        string // string, integer, number, boolean, array or object
	Description string
	Required    bool
	Enum        []string
}

// String declares a string property.
func String(name, description string, required bool) Property {
	return Property{Name: name, Type: "string", Description: description, Required: required}
}

// Integer declares an integer property.
func Integer(name, description string, required bool) Property {
	return Property{Name: name, Type: "integer", Description: description, Required: required}
}

// ObjectSchema builds the JSON schema of a tool's argument object.
func ObjectSchema(props ...Property) map[string]any {
	properties := make(map[string]any, len(props))
	required := make([]string, 0, len(props))

	for _, p := range props {
		ps := map[string]any{"type": p.Type}
		if p.Description != "" {
			ps["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			ps["enum"] = slices.Clone(p.Enum)
		}
		properties[p.Name] = ps

		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ValidateParameters checks required fields, declared types and enums.
// Fields the schema does not declare are accepted.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range stringList(schema["required"]) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}

		expected, _ := prop["type"].(string)
		if !isValidType(value, expected) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}

		if enum := stringList(prop["enum"]); len(enum) > 0 {
			s, _ := value.(string)
			if !slices.Contains(enum, s) {
				return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("must be one of %v", enum)}
			}
		}
	}

	return nil
}

// stringList accepts []string from Go literals and []any from decoded JSON.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func isValidType(value any, expected string) bool {
	if value == nil {
		return true
	}

	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
