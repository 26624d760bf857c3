// Package visual renders parsed scenarios as Mermaid flowcharts or plain
// text. Both projections are presentation only: they consume the step tree
// and correlation mappings and feed nothing back into the pipeline.
package visual

import (
	"fmt"
	"strings"

	"jmxgen/internal/correlate"
	"jmxgen/internal/scenario"
)

// variableFlows indexes correlation mappings by step: which variables each
// step captures and which captured variables each step consumes.
type variableFlows struct {
	capturesByStep map[int][]string
	usesByStep     map[int][]string
}

func buildFlows(corr *correlate.Result) variableFlows {
	flows := variableFlows{
		capturesByStep: make(map[int][]string),
		usesByStep:     make(map[int][]string),
	}
	if corr == nil {
		return flows
	}
	for _, m := range corr.Mappings {
		flows.capturesByStep[m.SourceStep] = append(flows.capturesByStep[m.SourceStep], m.VariableName)
		for _, target := range m.TargetSteps {
			flows.usesByStep[target] = append(flows.usesByStep[target], m.VariableName)
		}
	}
	return flows
}

// Mermaid renders the scenario as a top-down flowchart. Steps become nodes,
// variable flows become labeled edges; non-consecutive flows use dotted
// edges so fan-out is visible.
func Mermaid(sc *scenario.Scenario, corr *correlate.Result) string {
	lines := []string{"flowchart TD"}
	flows := buildFlows(corr)

	for i := range sc.Steps {
		num := i + 1
		label := nodeLabel(&sc.Steps[i], num, flows.capturesByStep[num])
		lines = append(lines, fmt.Sprintf("    step%d[\"%s\"]", num, label))
	}

	if len(sc.Steps) > 1 {
		lines = append(lines, "")
	}

	for i := 1; i < len(sc.Steps); i++ {
		flowing := intersect(flows.capturesByStep[i], flows.usesByStep[i+1])
		if len(flowing) > 0 {
			lines = append(lines, fmt.Sprintf("    step%d -->|%s| step%d", i, strings.Join(flowing, ", "), i+1))
		} else {
			lines = append(lines, fmt.Sprintf("    step%d --> step%d", i, i+1))
		}
	}

	if corr != nil {
		for _, m := range corr.Mappings {
			for _, target := range m.TargetSteps {
				if target != m.SourceStep+1 {
					lines = append(lines, fmt.Sprintf("    step%d -.->|%s| step%d", m.SourceStep, m.VariableName, target))
				}
			}
		}
	}

	return strings.Join(lines, "\n")
}

// Text renders the scenario as an ASCII flow: numbered steps with their
// endpoint, captures and variable usage, joined by arrow connectors.
func Text(sc *scenario.Scenario, corr *correlate.Result) string {
	var lines []string
	lines = append(lines, sc.Name)
	lines = append(lines, strings.Repeat("=", len(sc.Name)))

	flows := buildFlows(corr)

	for i := range sc.Steps {
		num := i + 1
		step := &sc.Steps[i]
		lines = append(lines, fmt.Sprintf("[%d] %s", num, step.Name))
		lines = append(lines, "    "+stepEndpoint(step))
		if captures := flows.capturesByStep[num]; len(captures) > 0 {
			lines = append(lines, "    Captures: "+strings.Join(captures, ", "))
		}
		if uses := flows.usesByStep[num]; len(uses) > 0 {
			lines = append(lines, "    Uses: "+strings.Join(uses, ", "))
		}
		if num < len(sc.Steps) {
			lines = append(lines, "    |", "    v")
		}
	}

	return strings.Join(lines, "\n")
}

// StepInfo is the structured projection of one step, used by the visualize
// command's JSON output and the MCP facade.
type StepInfo struct {
	Number       int      `json:"number"`
	Name         string   `json:"name"`
	Endpoint     string   `json:"endpoint"`
	EndpointType string   `json:"endpoint_type"`
	Method       string   `json:"method,omitempty"`
	Path         string   `json:"path,omitempty"`
	Captures     []string `json:"captures"`
	UsesVars     []string `json:"uses_variables"`
}

// CorrelationInfo summarizes one mapping for human consumption.
type CorrelationInfo struct {
	Variable   string   `json:"variable"`
	CapturedIn string   `json:"captured_in"`
	UsedIn     []string `json:"used_in"`
	JSONPath   string   `json:"jsonpath"`
	Confidence string   `json:"confidence"` // high, medium or low
}

// Steps builds the structured step listing with variable usage annotations.
func Steps(sc *scenario.Scenario, corr *correlate.Result) []StepInfo {
	infos := make([]StepInfo, 0, len(sc.Steps))
	for i := range sc.Steps {
		step := &sc.Steps[i]
		info := StepInfo{
			Number:       i + 1,
			Name:         step.Name,
			Endpoint:     step.Endpoint,
			EndpointType: step.Kind,
			Method:       step.Method,
			Path:         step.Path,
			Captures:     []string{},
			UsesVars:     []string{},
		}
		for _, c := range step.Captures {
			info.Captures = append(info.Captures, c.VariableName)
		}
		infos = append(infos, info)
	}

	if corr != nil {
		for _, m := range corr.Mappings {
			for _, target := range m.TargetSteps {
				if target < 1 || target > len(infos) {
					continue
				}
				if !contains(infos[target-1].UsesVars, m.VariableName) {
					infos[target-1].UsesVars = append(infos[target-1].UsesVars, m.VariableName)
				}
			}
		}
	}
	return infos
}

// Correlations builds the structured correlation listing.
func Correlations(sc *scenario.Scenario, corr *correlate.Result) []CorrelationInfo {
	if corr == nil {
		return []CorrelationInfo{}
	}
	infos := make([]CorrelationInfo, 0, len(corr.Mappings))
	for _, m := range corr.Mappings {
		info := CorrelationInfo{
			Variable:   m.VariableName,
			CapturedIn: fmt.Sprintf("Step %d: %s", m.SourceStep, stepName(sc, m.SourceStep)),
			UsedIn:     []string{},
			JSONPath:   m.JSONPath,
			Confidence: confidenceLabel(m.Confidence),
		}
		for _, target := range m.TargetSteps {
			info.UsedIn = append(info.UsedIn, fmt.Sprintf("Step %d: %s", target, stepName(sc, target)))
		}
		infos = append(infos, info)
	}
	return infos
}

func confidenceLabel(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "high"
	case confidence >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

func stepName(sc *scenario.Scenario, num int) string {
	if num < 1 || num > len(sc.Steps) {
		return "Unknown"
	}
	return sc.Steps[num-1].Name
}

func stepEndpoint(step *scenario.Step) string {
	if step.Kind == scenario.KindMethodPath && step.Method != "" && step.Path != "" {
		return step.Method + " " + step.Path
	}
	return step.Endpoint
}

func nodeLabel(step *scenario.Step, num int, captures []string) string {
	label := fmt.Sprintf("%d. %s<br/>%s", num, escapeMermaid(step.Name), escapeMermaid(stepEndpoint(step)))
	if len(captures) > 0 {
		label += fmt.Sprintf("<br/><i>captures: %s</i>", strings.Join(captures, ", "))
	}
	return label
}

// escapeMermaid escapes characters with special meaning inside Mermaid node
// labels. Braces stay literal so path parameters remain readable.
func escapeMermaid(text string) string {
	text = strings.ReplaceAll(text, `"`, "&quot;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func intersect(a, b []string) []string {
	var out []string
	for _, v := range a {
		if contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
