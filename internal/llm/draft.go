package llm

import (
	"context"
	"fmt"
	"strings"

	"jmxgen/internal/scenario"
	"jmxgen/internal/spec"
)

const draftSystemPrompt = `You are an expert in API load testing. You write ` +
	`pt_scenario.yaml files describing multi-step test flows. Respond with ` +
	`YAML only, no explanations.`

// Draft is a model-generated scenario that survived parsing and validation.
type Draft struct {
	YAML     string
	Scenario *scenario.Scenario
	Warnings []string
}

// Drafter asks a language model for a scenario draft against a loaded API
// contract.
type Drafter struct {
	client Client
}

// NewDrafter creates a new instance of Drafter.
func NewDrafter(client Client) *Drafter {
	return &Drafter{client: client}
}

// Draft generates a scenario for the given goal. The model output is
// stripped of code fences, parsed, and validated against the contract's
// operationIds before being returned; anything that fails parsing or
// variable-lifecycle validation is an error.
func (d *Drafter) Draft(ctx context.Context, doc *spec.Document, goal string) (*Draft, error) {
	raw, err := d.client.Complete(ctx, draftSystemPrompt, buildDraftPrompt(doc, goal))
	if err != nil {
		return nil, err
	}

	yamlText := StripCodeFences(raw)
	parser := scenario.NewParser()
	sc, err := parser.ParseData([]byte(yamlText), "draft")
	if err != nil {
		return nil, fmt.Errorf("model produced an invalid scenario: %w", err)
	}

	warnings, err := parser.Validate(sc, doc.OperationIDs(), doc.PathMethods())
	if err != nil {
		return nil, fmt.Errorf("model produced an invalid scenario: %w", err)
	}

	return &Draft{YAML: yamlText, Scenario: sc, Warnings: warnings}, nil
}

// buildDraftPrompt describes the DSL shape and the endpoint table so the
// model only references operations that exist.
func buildDraftPrompt(doc *spec.Document, goal string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "API: %s (version %s)\n", doc.Title, doc.Version)
	b.WriteString("Available endpoints:\n")
	for i := range doc.Endpoints {
		ep := &doc.Endpoints[i]
		fmt.Fprintf(&b, "- %s %s (operationId: %s)", ep.Method, ep.Path, ep.OperationID)
		if ep.Summary != "" {
			fmt.Fprintf(&b, " - %s", ep.Summary)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nGoal: %s\n\n", goal)
	b.WriteString(`Write a pt_scenario.yaml with top-level keys "name", optional "description", ` +
		`"settings" (threads, rampup, loops or duration), optional "variables", and a "scenario" ` +
		`list. Each step has "name", "endpoint" (an operationId or "METHOD /path"), and may have ` +
		`"payload", "params", "headers", "capture" (list of response fields to save as variables), ` +
		`"assert" (status, body_contains) and "loop" (count, or while/max/interval). Reference ` +
		"captured variables as ${name}. Only use endpoints from the list above.\n")

	return b.String()
}

// StripCodeFences removes a surrounding markdown code fence from model
// output, with or without a language tag.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence line (``` or ```yaml)
	lines = lines[1:]
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
