package visual

import (
	"strings"
	"testing"

	"jmxgen/internal/correlate"
	"jmxgen/internal/scenario"
)

func userFlowScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Name: "User Flow",
		Steps: []scenario.Step{
			{
				Name:     "Create User",
				Endpoint: "POST /users",
				Kind:     scenario.KindMethodPath,
				Method:   "POST",
				Path:     "/users",
				Enabled:  true,
				Captures: []scenario.Capture{{VariableName: "userId", SourceField: "id"}},
			},
			{
				Name:     "Get User",
				Endpoint: "GET /users/{userId}",
				Kind:     scenario.KindMethodPath,
				Method:   "GET",
				Path:     "/users/{userId}",
				Enabled:  true,
			},
			{
				Name:     "Delete User",
				Endpoint: "DELETE /users/{userId}",
				Kind:     scenario.KindMethodPath,
				Method:   "DELETE",
				Path:     "/users/{userId}",
				Enabled:  true,
			},
		},
	}
}

func userFlowCorrelations() *correlate.Result {
	return &correlate.Result{
		Mappings: []correlate.Mapping{
			{
				VariableName: "userId",
				JSONPath:     "$.id",
				SourceStep:   1,
				TargetSteps:  []int{2, 3},
				Confidence:   1.0,
				MatchType:    "mapped",
			},
		},
	}
}

func TestMermaid(t *testing.T) {
	diagram := Mermaid(userFlowScenario(), userFlowCorrelations())

	wantLines := []string{
		"flowchart TD",
		`step1["1. Create User<br/>POST /users<br/><i>captures: userId</i>"]`,
		`step2["2. Get User<br/>GET /users/{userId}"]`,
		"step1 -->|userId| step2",
		"step1 -.->|userId| step3",
	}
	for _, want := range wantLines {
		if !strings.Contains(diagram, want) {
			t.Errorf("Mermaid() missing %q in:\n%s", want, diagram)
		}
	}
}

func TestMermaidWithoutCorrelations(t *testing.T) {
	diagram := Mermaid(userFlowScenario(), nil)

	if !strings.Contains(diagram, "step1 --> step2") {
		t.Errorf("Mermaid() without correlations should use plain edges:\n%s", diagram)
	}
	if strings.Contains(diagram, "captures:") {
		t.Errorf("Mermaid() without correlations should not annotate captures:\n%s", diagram)
	}
}

func TestText(t *testing.T) {
	viz := Text(userFlowScenario(), userFlowCorrelations())

	wantLines := []string{
		"User Flow",
		"=========",
		"[1] Create User",
		"    POST /users",
		"    Captures: userId",
		"[2] Get User",
		"    Uses: userId",
		"    |",
		"    v",
	}
	for _, want := range wantLines {
		if !strings.Contains(viz, want) {
			t.Errorf("Text() missing %q in:\n%s", want, viz)
		}
	}
	if strings.HasSuffix(viz, "v") {
		t.Error("Text() should not emit a connector after the last step")
	}
}

func TestSteps(t *testing.T) {
	infos := Steps(userFlowScenario(), userFlowCorrelations())

	if len(infos) != 3 {
		t.Fatalf("Steps() returned %d steps, want 3", len(infos))
	}
	if got := infos[0].Captures; len(got) != 1 || got[0] != "userId" {
		t.Errorf("step 1 captures = %v, want [userId]", got)
	}
	if got := infos[1].UsesVars; len(got) != 1 || got[0] != "userId" {
		t.Errorf("step 2 uses = %v, want [userId]", got)
	}
	if infos[2].Method != "DELETE" {
		t.Errorf("step 3 method = %q, want DELETE", infos[2].Method)
	}
}

func TestCorrelations(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       string
	}{
		{"exact match is high", 1.0, "high"},
		{"case insensitive is high", 0.9, "high"},
		{"nested is medium", 0.7, "medium"},
		{"fallback is low", 0.5, "low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corr := userFlowCorrelations()
			corr.Mappings[0].Confidence = tt.confidence
			infos := Correlations(userFlowScenario(), corr)
			if len(infos) != 1 {
				t.Fatalf("Correlations() returned %d entries, want 1", len(infos))
			}
			if infos[0].Confidence != tt.want {
				t.Errorf("confidence label = %q, want %q", infos[0].Confidence, tt.want)
			}
		})
	}
}

func TestMermaidEscaping(t *testing.T) {
	sc := &scenario.Scenario{
		Name: "Escapes",
		Steps: []scenario.Step{
			{Name: `Say "hi" <now>`, Endpoint: "greet", Kind: scenario.KindOperationID, Enabled: true},
		},
	}
	diagram := Mermaid(sc, nil)
	if !strings.Contains(diagram, "Say &quot;hi&quot; &lt;now&gt;") {
		t.Errorf("Mermaid() did not escape special characters:\n%s", diagram)
	}
}
