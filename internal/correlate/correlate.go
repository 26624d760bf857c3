// Package correlate infers JSONPath extraction expressions for scenario
// captures by analyzing the response schemas declared in the API contract.
package correlate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"jmxgen/internal/scenario"
	"jmxgen/internal/spec"

	"github.com/getkin/kin-openapi/openapi3"
)

// lowConfidenceThreshold is the confidence below which a mapping produces a
// warning. Warnings never block generation.
const lowConfidenceThreshold = 0.8

// Mapping links a captured variable to the JSONPath that extracts it.
type Mapping struct {
	VariableName   string  `json:"variable_name"`
	JSONPath       string  `json:"jsonpath"`
	SourceStep     int     `json:"source_step"`
	SourceEndpoint string  `json:"source_endpoint"`
	TargetSteps    []int   `json:"target_steps"`
	Confidence     float64 `json:"confidence"`
	MatchType      string  `json:"match_type"`
}

// Result is the outcome of correlation analysis.
type Result struct {
	Mappings []Mapping `json:"mappings"`
	Warnings []string  `json:"warnings"`
	Errors   []string  `json:"errors"`
}

// HasErrors reports whether any capture could not be resolved.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings reports whether any mapping matched with low confidence.
func (r *Result) HasWarnings() bool { return len(r.Warnings) > 0 }

// MappingsForStep returns the mappings captured at the given 1-based step.
func (r *Result) MappingsForStep(stepNum int) []Mapping {
	var out []Mapping
	for _, m := range r.Mappings {
		if m.SourceStep == stepNum {
			out = append(out, m)
		}
	}
	return out
}

// MappingFor returns the mapping for a variable name, if one exists.
func (r *Result) MappingFor(varName string) (Mapping, bool) {
	for _, m := range r.Mappings {
		if m.VariableName == varName {
			return m, true
		}
	}
	return Mapping{}, false
}

// Analyzer resolves capture definitions against response schemas.
type Analyzer struct {
	doc *spec.Document
}

// NewAnalyzer creates a new instance of Analyzer. doc may be nil when no
// contract is available; every capture then falls back to $.<name>.
func NewAnalyzer(doc *spec.Document) *Analyzer {
	return &Analyzer{doc: doc}
}

// Analyze resolves all captures in the scenario. The cascade never blocks:
// a capture that matches nothing still produces a low-confidence fallback
// mapping so generation can proceed.
func (a *Analyzer) Analyze(sc *scenario.Scenario) *Result {
	result := &Result{Warnings: []string{}, Errors: []string{}}

	a.analyzeSteps(sc.Steps, 0, result)
	a.analyzeUsage(sc, result)

	return result
}

// analyzeSteps walks steps in order, resolving captures. Steps nested in a
// loop block report the block's top-level index.
func (a *Analyzer) analyzeSteps(steps []scenario.Step, parentNum int, result *Result) {
	for i := range steps {
		step := &steps[i]
		num := i + 1
		if parentNum > 0 {
			num = parentNum
		}

		if step.Kind == scenario.KindLoopBlock {
			if step.Enabled {
				a.analyzeLoopCondition(step, num, result)
			}
			a.analyzeSteps(step.NestedSteps, num, result)
			continue
		}
		if !step.Enabled {
			continue
		}
		a.analyzeLoopCondition(step, num, result)
		if len(step.Captures) == 0 {
			continue
		}

		for _, mapping := range a.AnalyzeStep(step, num) {
			if mapping.Confidence < lowConfidenceThreshold {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Step [%d]: Low confidence (%.0f%%) for '%s' -> %s",
						num, mapping.Confidence*100, mapping.VariableName, mapping.JSONPath))
			}
			result.Mappings = append(result.Mappings, mapping)
		}
	}
}

// conditionFieldRe matches the $.field reference of a while condition.
var conditionFieldRe = regexp.MustCompile(`\$\.([a-zA-Z_][a-zA-Z0-9_]*)`)

// analyzeLoopCondition emits a mapping for a while condition that reads a
// response body field. The condition's extractor is attached to the looped
// sampler during plan generation; the mapping records the dependency so it
// shows up alongside the capture mappings.
func (a *Analyzer) analyzeLoopCondition(step *scenario.Step, num int, result *Result) {
	if step.Loop == nil || step.Loop.While == "" {
		return
	}
	match := conditionFieldRe.FindStringSubmatch(step.Loop.While)
	if match == nil {
		return
	}
	field := match[1]

	mapping := Mapping{
		VariableName:   field,
		JSONPath:       "$." + field,
		SourceStep:     num,
		SourceEndpoint: step.Endpoint,
		TargetSteps:    []int{num},
		Confidence:     1.0,
		MatchType:      "loop_condition",
	}
	if schema := a.responseSchema(step); schema != nil {
		if path, ok := BuildFieldIndex(schema)[field]; ok {
			mapping.JSONPath = path
		}
	}
	result.Mappings = append(result.Mappings, mapping)
}

// AnalyzeStep resolves the captures of a single step.
func (a *Analyzer) AnalyzeStep(step *scenario.Step, stepIndex int) []Mapping {
	var fieldIndex map[string]string
	if schema := a.responseSchema(step); schema != nil {
		fieldIndex = BuildFieldIndex(schema)
	}

	var mappings []Mapping
	for _, capture := range step.Captures {
		mappings = append(mappings, matchCapture(capture, fieldIndex, step, stepIndex))
	}
	return mappings
}

// responseSchema returns the declared response schema for the step's endpoint.
func (a *Analyzer) responseSchema(step *scenario.Step) *openapi3.Schema {
	if a.doc == nil {
		return nil
	}
	switch step.Kind {
	case scenario.KindOperationID:
		if endpoint, ok := a.doc.EndpointByOperationID(step.Endpoint); ok {
			return endpoint.ResponseSchema("200")
		}
	case scenario.KindMethodPath:
		if endpoint, ok := a.doc.EndpointByMethodPath(step.Method, step.Path); ok {
			return endpoint.ResponseSchema("200")
		}
	}
	return nil
}

// BuildFieldIndex flattens a response schema into field name -> JSONPath.
// Array properties are indexed under both [*] and [0], with the [0] paths
// winning for bare field names. Underscore-joined full paths are added
// alongside short names for disambiguation, e.g. user_id -> $.user.id.
func BuildFieldIndex(schema *openapi3.Schema) map[string]string {
	index := make(map[string]string)
	traverseSchema(schema, "$", index, 0)
	return index
}

// traverseSchema recursively walks the schema, depth-limited so cyclic
// schemas terminate.
func traverseSchema(schema *openapi3.Schema, prefix string, index map[string]string, depth int) {
	if schema == nil || depth > 10 {
		return
	}

	switch {
	case schema.Type != nil && schema.Type.Is("array"):
		if schema.Items != nil && schema.Items.Value != nil {
			traverseSchema(schema.Items.Value, prefix+"[*]", index, depth+1)
		}
	case schema.Type == nil || schema.Type.Is("object"):
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			propRef := schema.Properties[name]
			propPath := prefix + "." + name

			index[name] = propPath
			fullKey := strings.ReplaceAll(strings.ReplaceAll(propPath, "$.", ""), ".", "_")
			if fullKey != name {
				index[fullKey] = propPath
			}

			if propRef == nil || propRef.Value == nil {
				continue
			}
			prop := propRef.Value
			if prop.Type != nil && prop.Type.Is("object") {
				traverseSchema(prop, propPath, index, depth+1)
			} else if prop.Type != nil && prop.Type.Is("array") {
				if prop.Items != nil && prop.Items.Value != nil {
					traverseSchema(prop.Items.Value, propPath+"[*]", index, depth+1)
					traverseSchema(prop.Items.Value, propPath+"[0]", index, depth+1)
				}
			}
		}
	}
}

// matchCapture resolves one capture against the field index. The cascade
// stops at the first match; confidences are fixed per rule.
func matchCapture(capture scenario.Capture, fieldIndex map[string]string, step *scenario.Step, stepIndex int) Mapping {
	mapping := Mapping{
		VariableName:   capture.VariableName,
		SourceStep:     stepIndex,
		SourceEndpoint: step.Endpoint,
	}

	// 1. Explicit JSONPath from the capture itself
	if capture.JSONPath != "" {
		mapping.JSONPath = capture.JSONPath
		mapping.Confidence = 1.0
		mapping.MatchType = "explicit"
		return mapping
	}

	// 2. Source-field rename, inferred as a dotted path when unknown
	if capture.SourceField != "" {
		if path, ok := fieldIndex[capture.SourceField]; ok {
			mapping.JSONPath = path
			mapping.Confidence = 1.0
			mapping.MatchType = "mapped"
			return mapping
		}
		mapping.JSONPath = "$." + capture.SourceField
		mapping.Confidence = 0.9
		mapping.MatchType = "mapped_inferred"
		return mapping
	}

	varName := capture.VariableName

	// 3. Exact field name match
	if path, ok := fieldIndex[varName]; ok {
		mapping.JSONPath = path
		mapping.Confidence = 1.0
		mapping.MatchType = "exact"
		return mapping
	}

	// 4. Case-insensitive match
	varLower := strings.ToLower(varName)
	for _, fieldName := range sortedKeys(fieldIndex) {
		if strings.ToLower(fieldName) == varLower {
			mapping.JSONPath = fieldIndex[fieldName]
			mapping.Confidence = 0.9
			mapping.MatchType = "case_insensitive"
			return mapping
		}
	}

	// 5. ID-suffix heuristic: userId matches a bare id field
	if strings.HasSuffix(varLower, "id") {
		if path, ok := fieldIndex["id"]; ok {
			mapping.JSONPath = path
			mapping.Confidence = 0.8
			mapping.MatchType = "id_suffix"
			return mapping
		}
	}

	// 6. Nested search: an indexed field name ending with the variable name
	for _, fieldName := range sortedKeys(fieldIndex) {
		if strings.HasSuffix(strings.ToLower(fieldName), varLower) {
			mapping.JSONPath = fieldIndex[fieldName]
			mapping.Confidence = 0.7
			mapping.MatchType = "nested"
			return mapping
		}
	}

	// Fallback direct-path assumption, so generation can still proceed
	mapping.JSONPath = "$." + varName
	mapping.Confidence = 0.5
	mapping.MatchType = "fallback"
	return mapping
}

// analyzeUsage fills each mapping's TargetSteps with the later steps that
// reference its variable, loop-block children counting as their block.
func (a *Analyzer) analyzeUsage(sc *scenario.Scenario, result *Result) {
	for i := range result.Mappings {
		mapping := &result.Mappings[i]
		pattern := "${" + mapping.VariableName + "}"

		for stepIdx := range sc.Steps {
			num := stepIdx + 1
			if num <= mapping.SourceStep {
				continue
			}
			if stepUsesPattern(&sc.Steps[stepIdx], pattern) {
				mapping.TargetSteps = append(mapping.TargetSteps, num)
			}
		}
	}
}

// stepUsesPattern reports whether the step (or any nested step) references
// the ${var} pattern in its path, params, headers or payload.
func stepUsesPattern(step *scenario.Step, pattern string) bool {
	if step.Path != "" && strings.Contains(step.Path, pattern) {
		return true
	}
	if containsPattern(step.Params, pattern) {
		return true
	}
	for _, v := range step.Headers {
		if strings.Contains(v, pattern) {
			return true
		}
	}
	if step.Payload != nil && containsPattern(step.Payload, pattern) {
		return true
	}
	for i := range step.NestedSteps {
		if stepUsesPattern(&step.NestedSteps[i], pattern) {
			return true
		}
	}
	return false
}

// containsPattern recursively searches decoded data for the pattern.
func containsPattern(data interface{}, pattern string) bool {
	switch v := data.(type) {
	case string:
		return strings.Contains(v, pattern)
	case map[string]interface{}:
		for _, item := range v {
			if containsPattern(item, pattern) {
				return true
			}
		}
	case []interface{}:
		for _, item := range v {
			if containsPattern(item, pattern) {
				return true
			}
		}
	}
	return false
}

// sortedKeys returns map keys in sorted order for deterministic matching.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
