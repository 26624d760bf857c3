// Package wizard builds scenario files interactively. It walks the author
// through one step at a time against a loaded API contract and writes the
// same pt_scenario.yaml document shape the parser consumes.
package wizard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"jmxgen/internal/scenario"
	"jmxgen/internal/spec"

	"gopkg.in/yaml.v3"
)

// Document is the scenario file the wizard produces. Field order matches
// how scenario files are conventionally written.
type Document struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Settings    SettingsDoc            `yaml:"settings"`
	Variables   map[string]interface{} `yaml:"variables,omitempty"`
	Scenario    []StepDoc              `yaml:"scenario"`
}

// SettingsDoc is the settings block of a produced scenario file.
type SettingsDoc struct {
	Threads  int `yaml:"threads"`
	Rampup   int `yaml:"rampup"`
	Loops    int `yaml:"loops,omitempty"`
	Duration int `yaml:"duration,omitempty"`
}

// StepDoc is one step of a produced scenario file.
type StepDoc struct {
	Name      string                 `yaml:"name"`
	Endpoint  string                 `yaml:"endpoint,omitempty"`
	Params    map[string]interface{} `yaml:"params,omitempty"`
	Headers   map[string]string      `yaml:"headers,omitempty"`
	Capture   []interface{}          `yaml:"capture,omitempty"`
	Assert    map[string]interface{} `yaml:"assert,omitempty"`
	Loop      map[string]interface{} `yaml:"loop,omitempty"`
	ThinkTime int                    `yaml:"think_time,omitempty"`
	Steps     []StepDoc              `yaml:"steps,omitempty"`
}

var variableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Wizard drives the interactive session. Input and output are injected so
// the flow is testable without a terminal.
type Wizard struct {
	doc      *spec.Document
	in       *bufio.Scanner
	out      io.Writer
	captured map[string]bool
}

// New creates a new instance of Wizard over the loaded contract.
func New(doc *spec.Document, in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		doc:      doc,
		in:       bufio.NewScanner(in),
		out:      out,
		captured: make(map[string]bool),
	}
}

// Run walks the author through scenario creation and returns the finished
// document. It fails when the contract has no endpoints or input ends
// before the scenario has at least one step.
func (w *Wizard) Run() (*Document, error) {
	if len(w.doc.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints found in OpenAPI spec")
	}

	fmt.Fprintf(w.out, "Scenario Builder - %s\n", w.doc.Title)
	fmt.Fprintln(w.out, strings.Repeat("-", 40))
	w.printEndpointList()

	result := &Document{}
	result.Name = w.promptString("Scenario name", "Load Test Scenario")
	result.Description = w.promptString("Description (optional)", "")
	result.Settings = w.promptSettings()

	for {
		fmt.Fprintf(w.out, "\nStep %d:\n", len(result.Scenario)+1)
		action := w.promptChoice("Action", []string{"add request", "add think time", "add loop", "preview", "done"})

		switch action {
		case "add request":
			step, ok := w.promptStep()
			if ok {
				result.Scenario = append(result.Scenario, step)
			}
		case "add think time":
			ms := w.promptPositiveInt("Pause in milliseconds", 1000)
			result.Scenario = append(result.Scenario, StepDoc{
				Name:      fmt.Sprintf("Think %dms", ms),
				ThinkTime: ms,
			})
		case "add loop":
			step, ok := w.promptLoop()
			if ok {
				result.Scenario = append(result.Scenario, step)
			}
		case "preview":
			w.printPreview(result)
		case "done":
			if len(result.Scenario) == 0 {
				fmt.Fprintln(w.out, "No steps added. Add at least one step.")
				continue
			}
			return result, nil
		case "":
			return nil, fmt.Errorf("input ended before the scenario was finished")
		}
	}
}

// Save writes the document as YAML, creating parent directories as needed.
func Save(doc *Document, outputPath string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %v", err)
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %v", err)
	}
	return nil
}

func (w *Wizard) printEndpointList() {
	fmt.Fprintf(w.out, "Available endpoints (%d):\n", len(w.doc.Endpoints))
	for i := range w.doc.Endpoints {
		ep := &w.doc.Endpoints[i]
		fmt.Fprintf(w.out, "  %2d. %-6s %s\n", i+1, ep.Method, ep.Path)
	}
	fmt.Fprintln(w.out)
}

func (w *Wizard) promptSettings() SettingsDoc {
	fmt.Fprintln(w.out, "\nSettings:")
	settings := SettingsDoc{
		Threads: w.promptPositiveInt("Threads", 10),
		Rampup:  w.promptNonNegativeInt("Ramp-up seconds", 5),
	}
	mode := w.promptChoice("Run by", []string{"duration", "loops"})
	if mode == "loops" {
		settings.Loops = w.promptPositiveInt("Loops per thread", 1)
	} else {
		settings.Duration = w.promptPositiveInt("Duration seconds", 60)
	}
	return settings
}

// promptStep builds one endpoint-call step: endpoint pick, name, path
// parameters (auto-wired to captured variables when names line up),
// captures, assertion and headers.
func (w *Wizard) promptStep() (StepDoc, bool) {
	ep := w.promptEndpoint()
	if ep == nil {
		return StepDoc{}, false
	}

	step := StepDoc{
		Name:     w.promptString("Step name", defaultStepName(ep)),
		Endpoint: fmt.Sprintf("%s %s", ep.Method, ep.Path),
	}

	step.Params = w.promptPathParams(ep)
	step.Capture = w.promptCaptures(ep)
	step.Assert = w.promptAssertion(ep)
	step.Headers = w.promptHeaders()

	return step, true
}

func (w *Wizard) promptEndpoint() *spec.Endpoint {
	for {
		answer := w.promptString(fmt.Sprintf("Endpoint number (1-%d, or blank to cancel)", len(w.doc.Endpoints)), "")
		if answer == "" {
			return nil
		}
		index, err := strconv.Atoi(answer)
		if err != nil || index < 1 || index > len(w.doc.Endpoints) {
			fmt.Fprintln(w.out, "Invalid endpoint number")
			continue
		}
		return &w.doc.Endpoints[index-1]
	}
}

func (w *Wizard) promptPathParams(ep *spec.Endpoint) map[string]interface{} {
	names := ep.PathParameters()
	if len(names) == 0 {
		return nil
	}

	params := make(map[string]interface{})
	for _, name := range names {
		if variable, ok := w.matchingCapture(name); ok {
			fmt.Fprintf(w.out, "Auto-using ${%s} for {%s}\n", variable, name)
			params[name] = fmt.Sprintf("${%s}", variable)
			continue
		}
		value := w.promptString(fmt.Sprintf("Value for path parameter {%s}", name), "")
		if value != "" {
			params[name] = value
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// matchingCapture finds a captured variable that should fill a path
// parameter: exact name first, then the id-suffix convention (parameter
// "id" or "userId" matches captured "userId").
func (w *Wizard) matchingCapture(param string) (string, bool) {
	if w.captured[param] {
		return param, true
	}
	lowered := strings.ToLower(param)
	var candidates []string
	for name := range w.captured {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)
	for _, name := range candidates {
		if strings.HasSuffix(strings.ToLower(name), lowered) || strings.HasSuffix(lowered, strings.ToLower(name)) {
			return name, true
		}
	}
	return "", false
}

func (w *Wizard) promptCaptures(ep *spec.Endpoint) []interface{} {
	var captures []interface{}

	for _, field := range suggestCaptureFields(ep) {
		variable := captureVariableName(field, ep)
		if w.promptYesNo(fmt.Sprintf("Capture response field '%s' as ${%s}?", field, variable), field == "id") {
			captures = append(captures, captureEntry(variable, field))
			w.captured[variable] = true
		}
	}

	for {
		name := w.promptString("Custom capture variable (blank to continue)", "")
		if name == "" {
			break
		}
		if !variableNameRe.MatchString(name) {
			fmt.Fprintln(w.out, "Variable names must start with a letter or underscore and contain only letters, digits and underscores.")
			continue
		}
		field := w.promptString(fmt.Sprintf("Response field for ${%s}", name), name)
		captures = append(captures, captureEntry(name, field))
		w.captured[name] = true
	}

	return captures
}

// captureEntry uses the bare-string form when variable and field names
// match, and the mapped form otherwise.
func captureEntry(variable, field string) interface{} {
	if variable == field {
		return variable
	}
	return map[string]interface{}{variable: field}
}

func (w *Wizard) promptAssertion(ep *spec.Endpoint) map[string]interface{} {
	defaultStatus := 200
	if len(ep.ExpectedResponseCodes) > 0 {
		if code, err := strconv.Atoi(ep.ExpectedResponseCodes[0]); err == nil {
			defaultStatus = code
		}
	} else if ep.Method == "POST" {
		defaultStatus = 201
	}

	if !w.promptYesNo(fmt.Sprintf("Assert response status %d?", defaultStatus), true) {
		return nil
	}
	return map[string]interface{}{"status": defaultStatus}
}

func (w *Wizard) promptHeaders() map[string]string {
	headers := make(map[string]string)
	for {
		name := w.promptString("Header name (blank to continue)", "")
		if name == "" {
			break
		}
		headers[name] = w.promptString(fmt.Sprintf("Value for header %s", name), "")
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func (w *Wizard) promptLoop() (StepDoc, bool) {
	name := w.promptString("Loop name", "Loop")
	loop := map[string]interface{}{}

	mode := w.promptChoice("Loop mode", []string{"count", "while"})
	if mode == "while" {
		condition := w.promptString("While condition (e.g. $.status != 'done')", "")
		loop["while"] = condition
		loop["max"] = w.promptPositiveInt("Max iterations", 100)
		if interval := w.promptNonNegativeInt("Interval between iterations in ms (0 for none)", 0); interval > 0 {
			loop["interval"] = interval
		}
	} else {
		loop["count"] = w.promptPositiveInt("Iterations", 3)
	}

	fmt.Fprintln(w.out, "Add steps to the loop (finish with an empty endpoint number):")
	var nested []StepDoc
	for {
		step, ok := w.promptStep()
		if !ok {
			break
		}
		nested = append(nested, step)
	}
	if len(nested) == 0 {
		fmt.Fprintln(w.out, "Add at least one step to the loop.")
		return StepDoc{}, false
	}

	return StepDoc{Name: name, Loop: loop, Steps: nested}, true
}

func (w *Wizard) printPreview(doc *Document) {
	fmt.Fprintln(w.out, "\nCurrent scenario:")
	data, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintf(w.out, "  (preview unavailable: %v)\n", err)
		return
	}
	fmt.Fprintln(w.out, string(data))
}

// defaultStepName prefers a readable operationId, falling back to a name
// derived from the path for machine-generated identifiers.
func defaultStepName(ep *spec.Endpoint) string {
	if ep.Summary != "" {
		return ep.Summary
	}
	if ep.OperationID != "" && len(ep.OperationID) <= 40 && strings.Count(ep.OperationID, "_") <= 3 {
		return ep.OperationID
	}
	return fmt.Sprintf("%s %s", ep.Method, ep.Path)
}

// suggestCaptureFields returns likely correlation sources from the
// endpoint's response schema: id fields first, then other top-level scalars
// that look like identifiers.
func suggestCaptureFields(ep *spec.Endpoint) []string {
	schema := ep.ResponseSchema("")
	if schema == nil || schema.Properties == nil {
		return nil
	}

	var ids, others []string
	for name := range schema.Properties {
		lowered := strings.ToLower(name)
		if lowered == "id" || strings.HasSuffix(lowered, "id") {
			ids = append(ids, name)
		} else if lowered == "token" || lowered == "key" || lowered == "status" {
			others = append(others, name)
		}
	}
	sort.Strings(ids)
	sort.Strings(others)
	return append(ids, others...)
}

// captureVariableName derives a variable name from a field: bare "id"
// becomes "<resource>Id" from the path so two steps capturing ids do not
// collide.
func captureVariableName(field string, ep *spec.Endpoint) string {
	if strings.ToLower(field) != "id" {
		return field
	}
	segments := strings.Split(strings.Trim(ep.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		resource := strings.TrimSuffix(seg, "s")
		if resource == "" {
			break
		}
		return resource + "Id"
	}
	return field
}

// prompt helpers

func (w *Wizard) promptString(label, fallback string) string {
	if fallback != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", label, fallback)
	} else {
		fmt.Fprintf(w.out, "%s: ", label)
	}
	if !w.in.Scan() {
		return fallback
	}
	answer := strings.TrimSpace(w.in.Text())
	if answer == "" {
		return fallback
	}
	return answer
}

func (w *Wizard) promptChoice(label string, options []string) string {
	for {
		fmt.Fprintf(w.out, "%s (%s) [%s]: ", label, strings.Join(options, "/"), options[0])
		if !w.in.Scan() {
			return ""
		}
		answer := strings.ToLower(strings.TrimSpace(w.in.Text()))
		if answer == "" {
			return options[0]
		}
		for _, option := range options {
			if answer == option || strings.HasPrefix(option, answer) {
				return option
			}
		}
		fmt.Fprintf(w.out, "Choose one of: %s\n", strings.Join(options, ", "))
	}
}

func (w *Wizard) promptYesNo(label string, fallback bool) bool {
	suffix := "y/N"
	if fallback {
		suffix = "Y/n"
	}
	for {
		fmt.Fprintf(w.out, "%s (%s): ", label, suffix)
		if !w.in.Scan() {
			return fallback
		}
		switch strings.ToLower(strings.TrimSpace(w.in.Text())) {
		case "":
			return fallback
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Fprintln(w.out, "Answer y or n")
	}
}

func (w *Wizard) promptPositiveInt(label string, fallback int) int {
	for {
		answer := w.promptString(label, strconv.Itoa(fallback))
		value, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintln(w.out, "Invalid number")
			continue
		}
		if value <= 0 {
			fmt.Fprintln(w.out, "Must be a positive number")
			continue
		}
		return value
	}
}

func (w *Wizard) promptNonNegativeInt(label string, fallback int) int {
	for {
		answer := w.promptString(label, strconv.Itoa(fallback))
		value, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintln(w.out, "Invalid number")
			continue
		}
		if value < 0 {
			fmt.Fprintln(w.out, "Must be a non-negative number")
			continue
		}
		return value
	}
}

// Validate round-trips the produced document through the scenario parser so
// the wizard cannot emit a file the pipeline would reject.
func Validate(doc *Document) (*scenario.Scenario, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scenario: %v", err)
	}
	return scenario.NewParser().ParseData(data, "wizard")
}
