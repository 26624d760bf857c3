package llm

import (
	"context"
	"strings"
	"testing"

	"jmxgen/internal/spec"
)

// fakeClient returns a canned completion and records the prompts it saw.
type fakeClient struct {
	response   string
	err        error
	userPrompt string
}

func (f *fakeClient) Complete(_ context.Context, _, userPrompt string) (string, error) {
	f.userPrompt = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func draftTestDoc() *spec.Document {
	return &spec.Document{
		Title:   "User API",
		Version: "1.0.0",
		Endpoints: []spec.Endpoint{
			{Path: "/users", Method: "POST", OperationID: "createUser", Summary: "Create a user"},
			{Path: "/users/{id}", Method: "GET", OperationID: "getUser"},
		},
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", "name: test", "name: test"},
		{"plain fence", "```\nname: test\n```", "name: test"},
		{"yaml fence", "```yaml\nname: test\n```", "name: test"},
		{"surrounding whitespace", "\n\n```yaml\nname: test\n```\n", "name: test"},
		{"unclosed fence", "```yaml\nname: test", "name: test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.input); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDraftParsesModelOutput(t *testing.T) {
	client := &fakeClient{response: "```yaml\n" +
		"name: User flow\n" +
		"scenario:\n" +
		"  - name: Create user\n" +
		"    endpoint: createUser\n" +
		"    capture:\n" +
		"      - userId: id\n" +
		"  - name: Fetch user\n" +
		"    endpoint: getUser\n" +
		"    params:\n" +
		"      id: ${userId}\n" +
		"```"}

	draft, err := NewDrafter(client).Draft(context.Background(), draftTestDoc(), "create then fetch a user")
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	if draft.Scenario.Name != "User flow" {
		t.Errorf("scenario name = %q, want %q", draft.Scenario.Name, "User flow")
	}
	if len(draft.Scenario.Steps) != 2 {
		t.Errorf("steps = %d, want 2", len(draft.Scenario.Steps))
	}
	if strings.Contains(draft.YAML, "```") {
		t.Error("draft YAML still contains code fences")
	}

	// The prompt must carry the endpoint table so the model can only
	// reference real operations.
	if !strings.Contains(client.userPrompt, "createUser") || !strings.Contains(client.userPrompt, "GET /users/{id}") {
		t.Errorf("prompt is missing the endpoint table:\n%s", client.userPrompt)
	}
}

func TestDraftRejectsInvalidScenario(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not yaml at all", "Sure! Here is your scenario: do step one, then step two."},
		{"missing scenario list", "name: broken\n"},
		{"undefined variable", "name: broken\nscenario:\n  - name: Fetch\n    endpoint: getUser\n    params:\n      id: ${neverCaptured}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{response: tt.response}
			_, err := NewDrafter(client).Draft(context.Background(), draftTestDoc(), "goal")
			if err == nil {
				t.Fatal("Draft() accepted an invalid scenario")
			}
		})
	}
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	config := NewDefaultConfig()
	config.Provider = "anthropic"
	config.APIKey = "key"
	if _, err := NewClient(config, nil); err == nil {
		t.Fatal("NewClient() accepted an unsupported provider")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	config := NewDefaultConfig()
	if _, err := NewClient(config, nil); err == nil {
		t.Fatal("NewClient() accepted an empty API key")
	}
}
