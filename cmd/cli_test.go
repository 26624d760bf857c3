package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const inventorySpec = `
openapi: 3.0.3
info:
  title: Inventory API
  version: 2.1.0
servers:
  - url: http://localhost:7070
paths:
  /items:
    get:
      operationId: listItems
      responses:
        '200':
          description: OK
    post:
      operationId: createItem
      responses:
        '201':
          description: Created
          content:
            application/json:
              schema:
                type: object
                properties:
                  id:
                    type: string
  /items/{itemId}:
    get:
      operationId: getItem
      parameters:
        - name: itemId
          in: path
          required: true
          schema:
            type: string
      responses:
        '200':
          description: OK
`

const inventoryScenario = `
name: Restock Flow
scenario:
  - name: Create item
    endpoint: createItem
    capture:
      - itemId: id
  - name: Fetch item
    endpoint: getItem
    params:
      itemId: ${itemId}
`

func newTestRoot(t *testing.T) (*bytes.Buffer, *bytes.Buffer, func(args ...string) error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	var errBuf bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errBuf)

	run := func(args ...string) error {
		root.SetArgs(args)
		return root.Execute()
	}
	return &out, &errBuf, run
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestGenerateFlatAndValidate(t *testing.T) {
	dir := t.TempDir()
	specPath := writeTempFile(t, dir, "openapi.yaml", inventorySpec)
	output := filepath.Join(dir, "inventory.jmx")

	out, errBuf, run := newTestRoot(t)
	err := run("generate", "--flat", "--spec", specPath, "--output", output, "--no-snapshot", "--threads", "3")
	if err != nil {
		t.Fatalf("generate: %v (stderr=%s)", err, errBuf.String())
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if !strings.Contains(out.String(), "Samplers: 3") {
		t.Errorf("expected sampler count in output, got:\n%s", out.String())
	}

	out.Reset()
	if err := run("validate", output); err != nil {
		t.Fatalf("validate: %v (stderr=%s)", err, errBuf.String())
	}
	if !strings.Contains(out.String(), "Validation: OK") {
		t.Errorf("expected passing validation, got:\n%s", out.String())
	}
}

func TestGenerateScenarioMode(t *testing.T) {
	dir := t.TempDir()
	specPath := writeTempFile(t, dir, "openapi.yaml", inventorySpec)
	scenarioPath := writeTempFile(t, dir, "pt_scenario.yaml", inventoryScenario)
	output := filepath.Join(dir, "restock.jmx")

	out, errBuf, run := newTestRoot(t)
	err := run("generate", "--scenario", scenarioPath, "--spec", specPath, "--output", output)
	if err != nil {
		t.Fatalf("generate: %v (stderr=%s)", err, errBuf.String())
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if !strings.Contains(out.String(), "Restock Flow") {
		t.Errorf("expected scenario name in output, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Correlated variables: 1") {
		t.Errorf("expected correlation count, got:\n%s", out.String())
	}
}

func TestValidateScenarioLinting(t *testing.T) {
	dir := t.TempDir()
	specPath := writeTempFile(t, dir, "openapi.yaml", inventorySpec)
	scenarioPath := writeTempFile(t, dir, "pt_scenario.yaml", inventoryScenario)

	out, errBuf, run := newTestRoot(t)
	if err := run("validate", "--scenario", scenarioPath, "--spec", specPath); err != nil {
		t.Fatalf("validate --scenario: %v (stderr=%s)", err, errBuf.String())
	}
	if !strings.Contains(out.String(), "Scenario is valid") {
		t.Errorf("expected valid scenario, got:\n%s", out.String())
	}

	// An undefined variable reference is a blocking error.
	broken := writeTempFile(t, dir, "broken.yaml", `
name: Broken
scenario:
  - name: Fetch item
    endpoint: getItem
    params:
      itemId: ${neverCaptured}
`)
	out.Reset()
	if err := run("validate", "--scenario", broken, "--spec", specPath); err == nil {
		t.Fatalf("expected linting failure, got output:\n%s", out.String())
	}
}

func TestVisualizeFormats(t *testing.T) {
	dir := t.TempDir()
	specPath := writeTempFile(t, dir, "openapi.yaml", inventorySpec)
	scenarioPath := writeTempFile(t, dir, "pt_scenario.yaml", inventoryScenario)

	out, errBuf, run := newTestRoot(t)
	if err := run("visualize", scenarioPath, "--spec", specPath, "--format", "mermaid"); err != nil {
		t.Fatalf("visualize: %v (stderr=%s)", err, errBuf.String())
	}
	if !strings.Contains(out.String(), "flowchart TD") {
		t.Errorf("expected mermaid flowchart, got:\n%s", out.String())
	}

	out.Reset()
	if err := run("visualize", scenarioPath, "--format", "json"); err != nil {
		t.Fatalf("visualize json: %v", err)
	}
	if !strings.Contains(out.String(), `"steps"`) {
		t.Errorf("expected JSON steps, got:\n%s", out.String())
	}

	if err := run("visualize", scenarioPath, "--format", "bogus"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestAnalyzeReportsSpec(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "openapi.yaml", inventorySpec)

	out, errBuf, run := newTestRoot(t)
	if err := run("analyze", "--path", dir, "--no-detect-changes", "--show-details"); err != nil {
		t.Fatalf("analyze: %v (stderr=%s)", err, errBuf.String())
	}
	text := out.String()
	if !strings.Contains(text, "Inventory API") {
		t.Errorf("expected API title, got:\n%s", text)
	}
	if !strings.Contains(text, "Endpoints: 3") {
		t.Errorf("expected endpoint count, got:\n%s", text)
	}
	if !strings.Contains(text, "listItems") {
		t.Errorf("expected endpoint details, got:\n%s", text)
	}
}

func TestAnalyzeFailsWithoutSpec(t *testing.T) {
	_, _, run := newTestRoot(t)
	if err := run("analyze", "--path", t.TempDir()); err == nil {
		t.Error("expected error for empty project")
	}
}

func TestDraftRequiresAPIKey(t *testing.T) {
	dir := t.TempDir()
	specPath := writeTempFile(t, dir, "openapi.yaml", inventorySpec)
	t.Setenv("JMXGEN_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, _, run := newTestRoot(t)
	err := run("draft", "--spec", specPath, "--goal", "exercise item creation", "--log-dir", dir)
	if err == nil {
		t.Fatal("expected missing-key error")
	}
	if !strings.Contains(err.Error(), "JMXGEN_LLM_API_KEY") {
		t.Errorf("error should name the env variable, got: %v", err)
	}
}

func TestParseCSVFeed(t *testing.T) {
	tests := []struct {
		value   string
		file    string
		vars    []string
		wantErr bool
	}{
		{value: "users.csv:id,email", file: "users.csv", vars: []string{"id", "email"}},
		{value: "data/feed.csv:token", file: "data/feed.csv", vars: []string{"token"}},
		{value: "noseparator", wantErr: true},
		{value: "file.csv:", wantErr: true},
		{value: "file.csv:a,,b", wantErr: true},
	}
	for _, tt := range tests {
		feed, err := parseCSVFeed(tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCSVFeed(%q) expected error", tt.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCSVFeed(%q) error: %v", tt.value, err)
			continue
		}
		if feed.File != tt.file {
			t.Errorf("parseCSVFeed(%q) file = %q, want %q", tt.value, feed.File, tt.file)
		}
		if len(feed.Variables) != len(tt.vars) {
			t.Errorf("parseCSVFeed(%q) vars = %v, want %v", tt.value, feed.Variables, tt.vars)
		}
	}
}

func TestOutputNameForScenario(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Restock Flow", "restock-flow-test.jmx"},
		{"login_journey 2", "login-journey-2-test.jmx"},
		{"", "scenario-test.jmx"},
	}
	for _, tt := range tests {
		if got := outputNameForScenario(tt.name); got != tt.want {
			t.Errorf("outputNameForScenario(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
