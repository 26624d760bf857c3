// Package testdata synthesizes sample request values from API schemas.
// The plan generator uses it to fill request bodies and parameters when a
// scenario does not supply explicit data.
package testdata

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"jmxgen/internal/spec"
)

// maxExampleDepth bounds recursion through nested object schemas.
const maxExampleDepth = 10

// BodyPlaceholder returns the object emitted when an operation declares a
// request body but no usable schema. The keys flag the spot for manual editing.
func BodyPlaceholder() map[string]interface{} {
	return map[string]interface{}{
		"_comment":     "PLACEHOLDER: Add your request body here",
		"_instruction": "Replace this object with actual request data",
	}
}

// ExampleForSchema generates a sample value for a schema. Declared examples
// and defaults win over synthesized values. A nil schema yields the editing
// placeholder.
func ExampleForSchema(schema *openapi3.Schema) interface{} {
	if schema == nil {
		return BodyPlaceholder()
	}
	return exampleForSchema(schema, 0)
}

func exampleForSchema(schema *openapi3.Schema, depth int) interface{} {
	if schema == nil || depth > maxExampleDepth {
		return nil
	}

	if schema.Example != nil {
		return schema.Example
	}
	if schema.Default != nil {
		return schema.Default
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	switch {
	case schema.Type != nil && schema.Type.Is("string"):
		return stringExample(schema)
	case schema.Type != nil && schema.Type.Is("number"):
		return numberExample(schema)
	case schema.Type != nil && schema.Type.Is("integer"):
		return integerExample(schema)
	case schema.Type != nil && schema.Type.Is("boolean"):
		return true
	case schema.Type != nil && schema.Type.Is("array"):
		return arrayExample(schema, depth)
	default:
		// Untyped schemas are treated as objects
		return objectExample(schema, depth)
	}
}

func objectExample(schema *openapi3.Schema, depth int) interface{} {
	if len(schema.Properties) == 0 {
		if schema.AdditionalProperties.Schema != nil {
			value := exampleForSchema(schema.AdditionalProperties.Schema.Value, depth+1)
			return map[string]interface{}{"key": value}
		}
		return map[string]interface{}{"key": "value"}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make(map[string]interface{}, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		if prop == nil {
			continue
		}
		result[name] = exampleForSchema(prop.Value, depth+1)
	}
	return result
}

func arrayExample(schema *openapi3.Schema, depth int) interface{} {
	if schema.Items == nil || schema.Items.Value == nil {
		return []interface{}{"sample_item"}
	}
	return []interface{}{exampleForSchema(schema.Items.Value, depth+1)}
}

func stringExample(schema *openapi3.Schema) string {
	switch schema.Format {
	case "email":
		return "test@example.com"
	case "date":
		return "2024-01-01"
	case "date-time":
		return "2024-01-01T12:00:00Z"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "uri":
		return "https://example.com"
	case "ipv4":
		return "192.168.1.1"
	case "ipv6":
		return "2001:db8::1"
	}
	if schema.Pattern != "" {
		switch {
		case strings.Contains(schema.Pattern, "\\d"):
			return "12345"
		case strings.Contains(schema.Pattern, "[a-zA-Z]"):
			return "abc"
		default:
			return "sample_string"
		}
	}
	return "sample_string"
}

func numberExample(schema *openapi3.Schema) float64 {
	if schema.Format == "double" {
		return 123.456789
	}
	return 123.45
}

func integerExample(schema *openapi3.Schema) int64 {
	if schema.Format == "int64" {
		return 123456789
	}
	return 123
}

// ValueForParameter generates a sample value for an endpoint parameter,
// preferring declared examples and defaults over schema-derived values.
func ValueForParameter(param spec.Parameter) interface{} {
	if param.Example != nil {
		return param.Example
	}
	if param.Default != nil {
		return param.Default
	}
	if param.Schema != nil {
		return ExampleForSchema(param.Schema)
	}
	return "sample_string"
}
