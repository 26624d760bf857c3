package scenario

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"jmxgen/internal/jmxerr"

	"gopkg.in/yaml.v3"
)

// HTTP methods accepted in the "METHOD /path" endpoint reference form.
var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// emptyWhilePlaceholder replaces an empty while condition instead of
// rejecting it, so a half-written scenario still compiles.
const emptyWhilePlaceholder = "$.status != 'done'"

// defaultMaxIterations is the while-loop safety limit.
const defaultMaxIterations = 100

// Parser parses step-DSL scenario files.
type Parser struct{}

// NewParser creates a new instance of Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads and parses a scenario file.
func (p *Parser) Parse(scenarioPath string) (*Scenario, error) {
	data, err := os.ReadFile(scenarioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", scenarioPath, err)
	}
	return p.ParseData(data, scenarioPath)
}

// ParseData parses scenario YAML bytes. scenarioPath is used in error messages.
func (p *Parser) ParseData(data []byte, scenarioPath string) (*Scenario, error) {
	var decoded interface{}
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("invalid YAML syntax in %s: %v: %w", scenarioPath, err, jmxerr.ErrScenarioParse)
	}

	raw, ok := normalizeValue(decoded).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid scenario format in %s: expected mapping: %w", scenarioPath, jmxerr.ErrScenarioParse)
	}

	if _, ok := raw["name"]; !ok {
		return nil, fmt.Errorf("missing required field 'name' in %s: %w", scenarioPath, jmxerr.ErrScenarioParse)
	}
	stepsRaw, ok := raw["scenario"]
	if !ok {
		return nil, fmt.Errorf("missing required field 'scenario' in %s: %w", scenarioPath, jmxerr.ErrScenarioParse)
	}
	stepsList, ok := stepsRaw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid 'scenario' in %s: expected list of steps: %w", scenarioPath, jmxerr.ErrScenarioValidation)
	}
	if len(stepsList) == 0 {
		return nil, fmt.Errorf("empty 'scenario' in %s: at least one step required: %w", scenarioPath, jmxerr.ErrScenarioValidation)
	}

	scenario := &Scenario{
		Name:        fmt.Sprint(raw["name"]),
		Description: stringValue(raw["description"]),
		Variables:   map[string]interface{}{},
	}

	settings, err := parseSettings(raw["settings"], scenarioPath)
	if err != nil {
		return nil, err
	}
	scenario.Settings = settings

	if v, ok := raw["variables"]; ok && v != nil {
		vars, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid 'variables' in %s: expected mapping: %w", scenarioPath, jmxerr.ErrScenarioValidation)
		}
		scenario.Variables = vars
	}

	steps, err := parseSteps(stepsList, scenarioPath)
	if err != nil {
		return nil, err
	}
	scenario.Steps = steps

	return scenario, nil
}

// parseSettings parses the settings section, applying defaults.
func parseSettings(v interface{}, scenarioPath string) (Settings, error) {
	settings := Settings{Threads: 1}
	if v == nil {
		return settings, nil
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return settings, fmt.Errorf("invalid 'settings' in %s: expected mapping: %w", scenarioPath, jmxerr.ErrScenarioValidation)
	}

	if threads, ok := intValue(raw["threads"]); ok {
		settings.Threads = threads
	}
	if rampup, ok := intValue(raw["rampup"]); ok {
		settings.Rampup = rampup
	}
	if loops, ok := intValue(raw["loops"]); ok {
		settings.Loops = &loops
	}
	if duration, ok := intValue(raw["duration"]); ok {
		settings.Duration = &duration
	}
	settings.BaseURL = stringValue(raw["base_url"])

	return settings, nil
}

// parseSteps parses a list of step mappings, recursing into loop blocks.
func parseSteps(stepsData []interface{}, scenarioPath string) ([]Step, error) {
	var steps []Step

	for i, item := range stepsData {
		num := i + 1
		stepData, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid step %d in %s: expected mapping: %w", num, scenarioPath, jmxerr.ErrScenarioValidation)
		}

		_, hasThinkTime := stepData["think_time"]
		_, hasEndpoint := stepData["endpoint"]
		_, hasLoop := stepData["loop"]
		_, hasNested := stepData["steps"]

		// Standalone think-time step
		if hasThinkTime && !hasEndpoint && !hasNested {
			thinkTime, ok := intValue(stepData["think_time"])
			if !ok || thinkTime < 0 {
				return nil, fmt.Errorf("invalid think_time in step %d: must be non-negative integer: %w", num, jmxerr.ErrScenarioValidation)
			}
			steps = append(steps, Step{
				Name:      stringOr(stepData["name"], "Think Time"),
				Endpoint:  KindThinkTime,
				Kind:      KindThinkTime,
				Enabled:   true,
				ThinkTime: thinkTime,
			})
			continue
		}

		// Multi-step loop block
		if hasLoop && hasNested && !hasEndpoint {
			loop, err := parseLoop(stepData["loop"], num, scenarioPath)
			if err != nil {
				return nil, err
			}
			if loop == nil {
				return nil, fmt.Errorf("invalid loop configuration in step %d of %s: %w", num, scenarioPath, jmxerr.ErrScenarioValidation)
			}

			nestedData, ok := stepData["steps"].([]interface{})
			if !ok || len(nestedData) == 0 {
				return nil, fmt.Errorf("multi-step loop in step %d must have non-empty 'steps' list: %w", num, jmxerr.ErrScenarioValidation)
			}
			nested, err := parseSteps(nestedData, scenarioPath)
			if err != nil {
				return nil, err
			}

			defaultName := "While Loop"
			if loop.Count > 0 {
				defaultName = fmt.Sprintf("Loop %dx", loop.Count)
			}
			steps = append(steps, Step{
				Name:        stringOr(stepData["name"], defaultName),
				Endpoint:    KindLoopBlock,
				Kind:        KindLoopBlock,
				Enabled:     true,
				Loop:        loop,
				NestedSteps: nested,
			})
			continue
		}

		// Regular endpoint step
		if _, ok := stepData["name"]; !ok {
			return nil, fmt.Errorf("missing 'name' in step %d of %s: %w", num, scenarioPath, jmxerr.ErrScenarioValidation)
		}
		if !hasEndpoint {
			return nil, fmt.Errorf("missing 'endpoint' in step %d of %s: %w", num, scenarioPath, jmxerr.ErrScenarioValidation)
		}

		endpoint := fmt.Sprint(stepData["endpoint"])
		kind, method, path, err := ParseEndpointRef(endpoint)
		if err != nil {
			return nil, err
		}

		captures := parseCaptures(stepData["capture"])

		loop, err := parseLoop(stepData["loop"], num, scenarioPath)
		if err != nil {
			return nil, err
		}

		files, err := parseFiles(stepData["files"], num, scenarioPath)
		if err != nil {
			return nil, err
		}

		step := Step{
			Name:       fmt.Sprint(stepData["name"]),
			Endpoint:   endpoint,
			Kind:       kind,
			Method:     method,
			Path:       path,
			Enabled:    boolOr(stepData["enabled"], true),
			Params:     mapValue(stepData["params"]),
			Headers:    stringMapValue(stepData["headers"]),
			Payload:    stepData["payload"],
			Files:      files,
			Captures:   captures,
			Assertions: parseAssert(stepData["assert"]),
			Loop:       loop,
		}
		steps = append(steps, step)
	}

	return steps, nil
}

// ParseEndpointRef parses an endpoint reference string. A string containing
// a space whose first token is an HTTP verb is treated as "METHOD /path";
// anything else is an opaque operationId.
func ParseEndpointRef(endpoint string) (kind, method, path string, err error) {
	parts := strings.SplitN(endpoint, " ", 2)

	if len(parts) == 2 {
		methodCandidate := strings.ToUpper(parts[0])
		pathCandidate := strings.TrimSpace(parts[1])

		if !httpMethods[methodCandidate] {
			methods := make([]string, 0, len(httpMethods))
			for m := range httpMethods {
				methods = append(methods, m)
			}
			sort.Strings(methods)
			return "", "", "", fmt.Errorf("invalid endpoint format %q: %q is not a valid HTTP method, expected one of: %s: %w",
				endpoint, methodCandidate, strings.Join(methods, ", "), jmxerr.ErrInvalidEndpoint)
		}
		if !strings.HasPrefix(pathCandidate, "/") {
			return "", "", "", fmt.Errorf("invalid path in endpoint %q: path must start with '/': %w", endpoint, jmxerr.ErrInvalidEndpoint)
		}
		return KindMethodPath, methodCandidate, pathCandidate, nil
	}

	if strings.TrimSpace(endpoint) == "" {
		return "", "", "", fmt.Errorf("endpoint cannot be empty: %w", jmxerr.ErrInvalidEndpoint)
	}
	return KindOperationID, "", "", nil
}

// parseCaptures parses the capture list. Three syntaxes are supported:
// a bare variable name, {"var": "sourceField"}, and
// {"var": {"path": "$.items[0].id", "match": "first"}}.
func parseCaptures(v interface{}) []Capture {
	if v == nil {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}

	var captures []Capture
	for _, item := range items {
		switch value := item.(type) {
		case string:
			captures = append(captures, Capture{VariableName: value, Match: "first"})
		case map[string]interface{}:
			if len(value) != 1 {
				continue
			}
			for varName, spec := range value {
				switch s := spec.(type) {
				case string:
					captures = append(captures, Capture{VariableName: varName, SourceField: s, Match: "first"})
				case map[string]interface{}:
					captures = append(captures, Capture{
						VariableName: varName,
						JSONPath:     stringValue(s["path"]),
						Match:        stringOr(s["match"], "first"),
					})
				}
			}
		}
	}
	return captures
}

// parseAssert parses the assert section.
func parseAssert(v interface{}) *Assert {
	raw, ok := v.(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}

	assert := &Assert{
		Body:    mapValue(raw["body"]),
		Headers: stringMapValue(raw["headers"]),
	}
	if status, ok := intValue(raw["status"]); ok {
		assert.Status = status
	}
	switch contains := raw["body_contains"].(type) {
	case string:
		assert.BodyContains = []string{contains}
	case []interface{}:
		for _, item := range contains {
			assert.BodyContains = append(assert.BodyContains, fmt.Sprint(item))
		}
	}
	return assert
}

// parseLoop parses a loop configuration. Exactly one of count and while is
// required; an empty while condition is replaced with a placeholder.
func parseLoop(v interface{}, stepNum int, scenarioPath string) (*Loop, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid 'loop' in step %d of %s: expected mapping: %w", stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
	}

	_, hasCount := raw["count"]
	_, hasWhile := raw["while"]
	if hasCount && hasWhile {
		return nil, fmt.Errorf("invalid 'loop' in step %d of %s: cannot specify both 'count' and 'while': %w",
			stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
	}
	if !hasCount && !hasWhile {
		return nil, fmt.Errorf("invalid 'loop' in step %d of %s: must specify either 'count' or 'while': %w",
			stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
	}

	loop := &Loop{MaxIterations: defaultMaxIterations}

	if hasCount {
		count, ok := intValue(raw["count"])
		if !ok || count < 1 {
			return nil, fmt.Errorf("invalid 'loop.count' in step %d of %s: must be a positive integer: %w",
				stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
		}
		loop.Count = count
	}

	if hasWhile {
		condition, ok := raw["while"].(string)
		if !ok {
			return nil, fmt.Errorf("invalid 'loop.while' in step %d of %s: must be a string: %w",
				stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
		}
		if strings.TrimSpace(condition) == "" {
			condition = emptyWhilePlaceholder
		}
		loop.While = condition
	}

	if maxRaw, ok := raw["max"]; ok {
		max, ok := intValue(maxRaw)
		if !ok || max < 1 {
			return nil, fmt.Errorf("invalid 'loop.max' in step %d of %s: must be a positive integer: %w",
				stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
		}
		loop.MaxIterations = max
	}

	if intervalRaw, ok := raw["interval"]; ok {
		interval, ok := intValue(intervalRaw)
		if !ok || interval < 0 {
			return nil, fmt.Errorf("invalid 'loop.interval' in step %d of %s: must be a non-negative integer (milliseconds): %w",
				stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
		}
		loop.Interval = &interval
	}

	return loop, nil
}

// parseFiles parses the files list of an upload step.
func parseFiles(v interface{}, stepNum int, scenarioPath string) ([]FileUpload, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid 'files' in step %d of %s: expected list: %w", stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
	}

	var files []FileUpload
	for _, item := range items {
		raw, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid file entry in step %d of %s: expected mapping: %w", stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
		}
		file := FileUpload{
			Path:     stringValue(raw["path"]),
			Param:    stringValue(raw["param"]),
			MimeType: stringValue(raw["mime_type"]),
		}
		if file.Path == "" || file.Param == "" {
			return nil, fmt.Errorf("invalid file entry in step %d of %s: 'path' and 'param' are required: %w",
				stepNum, scenarioPath, jmxerr.ErrScenarioValidation)
		}
		files = append(files, file)
	}
	return files, nil
}

// normalizeValue converts YAML-decoded values to JSON-compatible types,
// stringifying non-string map keys.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

// intValue converts a decoded YAML scalar to int.
func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// stringValue returns v as a string, or "" when nil.
func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// stringOr returns v as a string, or fallback when v is nil.
func stringOr(v interface{}, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

// boolOr returns v as a bool, or fallback when v is not a bool.
func boolOr(v interface{}, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

// mapValue returns v as a string-keyed map, or an empty map.
func mapValue(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

// stringMapValue returns v as a map of strings, or an empty map.
func stringMapValue(v interface{}) map[string]string {
	out := map[string]string{}
	if m, ok := v.(map[string]interface{}); ok {
		for k, item := range m {
			out[k] = stringValue(item)
		}
	}
	return out
}
