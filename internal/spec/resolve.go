package spec

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
)

// maxRefDepth bounds $ref chains and nested schema walks so cyclic schemas
// cannot recurse forever.
const maxRefDepth = 10

// refResolver resolves local $ref pointers against a named schema table.
// External references are left unresolved. Swagger 2.0 definitions are
// bridged to the v3 schema model before resolution, so the prefix is always
// the v3 one.
type refResolver struct {
	schemas openapi3.Schemas
	prefix  string // "#/components/schemas/"
}

// resolve returns the schema behind ref, following local references and
// filling in nested property, item and composition refs up to maxRefDepth.
func (r refResolver) resolve(ref *openapi3.SchemaRef, depth int) *openapi3.Schema {
	if ref == nil || depth > maxRefDepth {
		return nil
	}

	if ref.Value == nil {
		name := strings.TrimPrefix(ref.Ref, r.prefix)
		if name == ref.Ref || name == "" {
			// External or unsupported reference
			return nil
		}
		target, ok := r.schemas[name]
		if !ok {
			return nil
		}
		return r.resolve(target, depth+1)
	}

	schema := ref.Value
	for _, propRef := range schema.Properties {
		r.fill(propRef, depth+1)
	}
	if schema.Items != nil {
		r.fill(schema.Items, depth+1)
	}
	if schema.AdditionalProperties.Schema != nil {
		r.fill(schema.AdditionalProperties.Schema, depth+1)
	}
	for _, sub := range schema.AllOf {
		r.fill(sub, depth+1)
	}
	for _, sub := range schema.OneOf {
		r.fill(sub, depth+1)
	}
	for _, sub := range schema.AnyOf {
		r.fill(sub, depth+1)
	}
	return schema
}

// fill resolves a nested SchemaRef in place.
func (r refResolver) fill(ref *openapi3.SchemaRef, depth int) {
	if ref == nil || depth > maxRefDepth {
		return
	}
	if ref.Value == nil {
		ref.Value = r.resolve(ref, depth)
		return
	}
	r.resolve(ref, depth)
}

// newComponentsResolver builds a resolver over OpenAPI 3.x components.
func newComponentsResolver(t *openapi3.T) refResolver {
	schemas := openapi3.Schemas{}
	if t != nil && t.Components != nil && t.Components.Schemas != nil {
		schemas = t.Components.Schemas
	}
	return refResolver{schemas: schemas, prefix: "#/components/schemas/"}
}

// newDefinitionsResolver builds a resolver over Swagger 2.0 definitions,
// bridged to the v3 schema model. The conversion rewrites #/definitions/
// refs to #/components/schemas/, so lookups use the v3 prefix.
func newDefinitionsResolver(definitions map[string]*openapi2.SchemaRef) refResolver {
	return refResolver{
		schemas: openapi2conv.ToV3Schemas(definitions),
		prefix:  "#/components/schemas/",
	}
}

// normalizeYAML converts YAML-decoded values into JSON-compatible ones,
// stringifying non-string map keys (YAML parses a bare `200:` as an
// integer key).
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
