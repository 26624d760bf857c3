package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"jmxgen/internal/jmxerr"
	"jmxgen/internal/spec"
)

// ValidationIssue is a single validation finding.
type ValidationIssue struct {
	Level    string `json:"level"`    // "error" or "warning"
	Category string `json:"category"` // yaml, structure, endpoints, variables, captures, loops
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// ValidationResult is the outcome of linting one scenario file.
type ValidationResult struct {
	ScenarioPath string            `json:"scenario_path"`
	ScenarioName string            `json:"scenario_name,omitempty"`
	IsValid      bool              `json:"is_valid"`
	Issues       []ValidationIssue `json:"issues"`
}

// ErrorsCount returns the number of error-level issues.
func (r *ValidationResult) ErrorsCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Level == "error" {
			count++
		}
	}
	return count
}

// WarningsCount returns the number of warning-level issues.
func (r *ValidationResult) WarningsCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Level == "warning" {
			count++
		}
	}
	return count
}

// Linter validates scenario files with structured error reporting. Endpoint
// references that do not exist in the spec are reported as blocking errors,
// unlike Parser.Validate which downgrades them to warnings.
type Linter struct{}

// NewLinter creates a new instance of Linter.
func NewLinter() *Linter {
	return &Linter{}
}

// Lint validates a scenario file, optionally against an API contract.
// All failures are collected into the result instead of being returned.
func (l *Linter) Lint(scenarioPath, specPath string) *ValidationResult {
	result := &ValidationResult{ScenarioPath: scenarioPath, Issues: []ValidationIssue{}}

	if _, err := os.Stat(scenarioPath); err != nil {
		result.Issues = append(result.Issues, ValidationIssue{
			Level:    "error",
			Category: "yaml",
			Message:  fmt.Sprintf("Scenario file not found: %s", scenarioPath),
		})
		return result
	}

	parser := NewParser()
	sc, err := parser.Parse(scenarioPath)
	if err != nil {
		category := "structure"
		if errors.Is(err, jmxerr.ErrScenarioParse) && strings.Contains(err.Error(), "YAML") {
			category = "yaml"
		}
		result.Issues = append(result.Issues, ValidationIssue{Level: "error", Category: category, Message: err.Error()})
		return result
	}
	result.ScenarioName = sc.Name

	var operationIDs []string
	var paths map[string][]string
	if specPath != "" {
		doc, err := spec.NewParser().Parse(specPath)
		if err != nil {
			result.Issues = append(result.Issues, ValidationIssue{
				Level:    "error",
				Category: "structure",
				Message:  fmt.Sprintf("Failed to parse OpenAPI spec: %v", err),
			})
			return result
		}
		operationIDs = doc.OperationIDs()
		paths = doc.PathMethods()
	}

	warnings, err := parser.Validate(sc, operationIDs, paths)
	if err != nil {
		result.Issues = append(result.Issues, ValidationIssue{Level: "error", Category: "variables", Message: err.Error()})
	}
	// Endpoint-not-found warnings block generation at lint time
	for _, warning := range warnings {
		result.Issues = append(result.Issues, ValidationIssue{Level: "error", Category: "endpoints", Message: warning})
	}

	result.IsValid = result.ErrorsCount() == 0
	return result
}
