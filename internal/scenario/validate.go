package scenario

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"jmxgen/internal/jmxerr"
)

// variablePattern matches ${varName} references.
var variablePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Validate checks the scenario against the spec's operationIds and paths.
// Unknown endpoint references are warnings, because a step may reference an
// endpoint the caller has not supplied a contract for. A variable referenced
// before any step captures it is a hard error naming the step and variables.
func (p *Parser) Validate(s *Scenario, operationIDs []string, paths map[string][]string) ([]string, error) {
	warnings := []string{}

	defined := make(map[string]bool, len(s.Variables))
	for name := range s.Variables {
		defined[name] = true
	}

	opSet := make(map[string]bool, len(operationIDs))
	for _, id := range operationIDs {
		opSet[id] = true
	}

	var walk func(steps []Step, parentNum int) error
	walk = func(steps []Step, parentNum int) error {
		for i := range steps {
			step := &steps[i]
			num := i + 1
			if parentNum > 0 {
				num = parentNum
			}

			used := findVariableReferences(step)
			var undefined []string
			for name := range used {
				if !defined[name] {
					undefined = append(undefined, name)
				}
			}
			if len(undefined) > 0 {
				sort.Strings(undefined)
				return fmt.Errorf("step [%d] '%s' uses undefined variables: %s: %w",
					num, step.Name, strings.Join(undefined, ", "), jmxerr.ErrUndefinedVariable)
			}

			// Captured variables become available to subsequent steps
			for _, capture := range step.Captures {
				defined[capture.VariableName] = true
			}

			if step.Kind == KindLoopBlock {
				if err := walk(step.NestedSteps, num); err != nil {
					return err
				}
				continue
			}

			switch step.Kind {
			case KindOperationID:
				if len(operationIDs) > 0 && !opSet[step.Endpoint] {
					warnings = append(warnings, fmt.Sprintf("Step [%d]: operationId '%s' not found in spec", num, step.Endpoint))
				}
			case KindMethodPath:
				if len(paths) > 0 && step.Path != "" && step.Method != "" {
					if !pathDeclared(paths, step.Method, step.Path) {
						warnings = append(warnings, fmt.Sprintf("Step [%d]: %s %s not found in spec", num, step.Method, step.Path))
					}
				}
			}
		}
		return nil
	}

	if err := walk(s.Steps, 0); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// pathDeclared reports whether the method+path matches a declared path,
// exactly or as a suffix.
func pathDeclared(paths map[string][]string, method, path string) bool {
	for specPath, methods := range paths {
		if specPath != path && !strings.HasSuffix(specPath, path) {
			continue
		}
		for _, m := range methods {
			if strings.EqualFold(m, method) {
				return true
			}
		}
	}
	return false
}

// findVariableReferences collects every ${var} reference in the step's
// params, headers, payload and path.
func findVariableReferences(step *Step) map[string]bool {
	refs := make(map[string]bool)
	collectVariableRefs(step.Params, refs)
	for _, v := range step.Headers {
		collectRefsFromString(v, refs)
	}
	if step.Payload != nil {
		collectVariableRefs(step.Payload, refs)
	}
	if step.Path != "" {
		collectRefsFromString(step.Path, refs)
	}
	return refs
}

// collectVariableRefs recursively extracts ${var} references from decoded data.
func collectVariableRefs(data interface{}, refs map[string]bool) {
	switch v := data.(type) {
	case string:
		collectRefsFromString(v, refs)
	case map[string]interface{}:
		for _, item := range v {
			collectVariableRefs(item, refs)
		}
	case []interface{}:
		for _, item := range v {
			collectVariableRefs(item, refs)
		}
	}
}

// collectRefsFromString extracts ${var} references from one string.
func collectRefsFromString(s string, refs map[string]bool) {
	for _, match := range variablePattern.FindAllStringSubmatch(s, -1) {
		refs[match[1]] = true
	}
}
