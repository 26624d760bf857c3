package scenario

import (
	"errors"
	"strings"
	"testing"

	"jmxgen/internal/jmxerr"
)

func parseForTest(t *testing.T, yaml string) *Scenario {
	t.Helper()
	sc, err := NewParser().ParseData([]byte(yaml), "pt_scenario.yaml")
	if err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	return sc
}

func TestValidateUndefinedVariable(t *testing.T) {
	sc := parseForTest(t, `
name: X
scenario:
  - name: Get User
    endpoint: GET /users/${userId}
`)
	_, err := NewParser().Validate(sc, nil, nil)
	if !errors.Is(err, jmxerr.ErrUndefinedVariable) {
		t.Fatalf("Validate() error = %v, want ErrUndefinedVariable", err)
	}
	// The error names both the variable and the step
	if !strings.Contains(err.Error(), "userId") {
		t.Errorf("error should name the variable: %v", err)
	}
	if !strings.Contains(err.Error(), "Get User") || !strings.Contains(err.Error(), "[1]") {
		t.Errorf("error should name the step: %v", err)
	}
}

func TestValidateCaptureDefinesVariable(t *testing.T) {
	sc := parseForTest(t, `
name: X
scenario:
  - name: Create
    endpoint: createUser
    capture:
      - userId
  - name: Get
    endpoint: GET /users/${userId}
`)
	warnings, err := NewParser().Validate(sc, nil, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestValidateVariableUsedInSameStep(t *testing.T) {
	// A step cannot use the variable it captures itself
	sc := parseForTest(t, `
name: X
scenario:
  - name: Create
    endpoint: POST /users/${userId}
    capture:
      - userId
`)
	_, err := NewParser().Validate(sc, nil, nil)
	if !errors.Is(err, jmxerr.ErrUndefinedVariable) {
		t.Fatalf("Validate() error = %v, want ErrUndefinedVariable", err)
	}
}

func TestValidateGlobalVariables(t *testing.T) {
	sc := parseForTest(t, `
name: X
variables:
  tenant: acme
scenario:
  - name: List
    endpoint: GET /tenants/${tenant}/users
`)
	if _, err := NewParser().Validate(sc, nil, nil); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidatePayloadReferences(t *testing.T) {
	sc := parseForTest(t, `
name: X
scenario:
  - name: Create
    endpoint: createOrder
    payload:
      items:
        - sku: ${sku}
`)
	_, err := NewParser().Validate(sc, nil, nil)
	if !errors.Is(err, jmxerr.ErrUndefinedVariable) {
		t.Fatalf("nested payload reference not detected, error = %v", err)
	}
}

func TestValidateNestedLoopSteps(t *testing.T) {
	// Captures inside a loop block are visible to later steps, and
	// undefined references inside the block are still hard errors.
	sc := parseForTest(t, `
name: X
scenario:
  - name: Start
    endpoint: startJob
    capture:
      - jobId
  - name: Poll
    loop:
      count: 5
    steps:
      - name: Check
        endpoint: GET /jobs/${jobId}
        capture:
          - status
  - name: Finish
    endpoint: GET /results/${status}
`)
	if _, err := NewParser().Validate(sc, nil, nil); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := parseForTest(t, `
name: X
scenario:
  - name: Poll
    loop:
      count: 5
    steps:
      - name: Check
        endpoint: GET /jobs/${missing}
`)
	_, err := NewParser().Validate(bad, nil, nil)
	if !errors.Is(err, jmxerr.ErrUndefinedVariable) {
		t.Fatalf("Validate() error = %v, want ErrUndefinedVariable", err)
	}
}

func TestValidateEndpointWarnings(t *testing.T) {
	sc := parseForTest(t, `
name: X
scenario:
  - name: A
    endpoint: listUsers
  - name: B
    endpoint: missingOp
  - name: C
    endpoint: GET /unknown
`)
	operationIDs := []string{"listUsers"}
	paths := map[string][]string{"/users": {"GET", "POST"}}

	warnings, err := NewParser().Validate(sc, operationIDs, paths)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", warnings)
	}
	if !strings.Contains(warnings[0], "missingOp") {
		t.Errorf("warnings[0] = %q", warnings[0])
	}
	if !strings.Contains(warnings[1], "GET /unknown") {
		t.Errorf("warnings[1] = %q", warnings[1])
	}
}

func TestValidateSuffixPathAccepted(t *testing.T) {
	sc := parseForTest(t, `
name: X
scenario:
  - name: A
    endpoint: GET /users
`)
	paths := map[string][]string{"/api/v1/users": {"GET"}}
	warnings, err := NewParser().Validate(sc, nil, paths)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("suffix path should match, warnings = %v", warnings)
	}
}
