package wizard

import (
	"bytes"
	"strings"
	"testing"

	"jmxgen/internal/spec"

	"github.com/getkin/kin-openapi/openapi3"
)

func wizardTestDoc() *spec.Document {
	idSchema := &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"id": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
		},
	}
	return &spec.Document{
		Title:   "User API",
		Version: "1.0.0",
		Endpoints: []spec.Endpoint{
			{
				Path: "/users/{id}", Method: "GET", OperationID: "getUser",
				Parameters:            []spec.Parameter{{Name: "id", In: "path", Required: true}},
				ExpectedResponseCodes: []string{"200"},
			},
			{
				Path: "/users", Method: "POST", OperationID: "createUser",
				ExpectedResponseCodes: []string{"201"},
				Responses:             map[string]spec.Response{"201": {Schema: idSchema}},
			},
		},
	}
}

// script joins prompt answers into the input stream the wizard reads.
func script(answers ...string) *strings.Reader {
	return strings.NewReader(strings.Join(answers, "\n") + "\n")
}

func TestWizardBuildsScenario(t *testing.T) {
	input := script(
		"Checkout Flow", // scenario name
		"",              // description
		"",              // threads (default 10)
		"",              // rampup (default 5)
		"loops",         // run by
		"2",             // loops per thread
		"",              // action (default add request)
		"2",             // endpoint: POST /users
		"Create user",   // step name
		"y",             // capture id as userId
		"",              // custom capture: none
		"",              // assert 201 (default yes)
		"",              // headers: none
		"add request",   // action
		"1",             // endpoint: GET /users/{id}
		"",              // step name (default)
		"",              // custom capture: none
		"n",             // assert 200: decline
		"",              // headers: none
		"done",          // action
	)
	var out bytes.Buffer

	doc, err := New(wizardTestDoc(), input, &out).Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if doc.Name != "Checkout Flow" {
		t.Errorf("name = %q, want %q", doc.Name, "Checkout Flow")
	}
	if doc.Settings.Threads != 10 || doc.Settings.Rampup != 5 || doc.Settings.Loops != 2 {
		t.Errorf("settings = %+v, want threads 10, rampup 5, loops 2", doc.Settings)
	}
	if len(doc.Scenario) != 2 {
		t.Fatalf("scenario has %d steps, want 2", len(doc.Scenario))
	}

	create := doc.Scenario[0]
	if create.Endpoint != "POST /users" {
		t.Errorf("step 1 endpoint = %q", create.Endpoint)
	}
	if len(create.Capture) != 1 {
		t.Fatalf("step 1 captures = %v, want one entry", create.Capture)
	}
	// A bare "id" field is renamed after the resource so the mapped form
	// is used.
	mapped, ok := create.Capture[0].(map[string]interface{})
	if !ok || mapped["userId"] != "id" {
		t.Errorf("step 1 capture = %v, want map userId->id", create.Capture[0])
	}
	if create.Assert["status"] != 201 {
		t.Errorf("step 1 assert = %v, want status 201", create.Assert)
	}

	get := doc.Scenario[1]
	if get.Endpoint != "GET /users/{id}" {
		t.Errorf("step 2 endpoint = %q", get.Endpoint)
	}
	// The captured userId must be auto-wired into the {id} path parameter.
	if get.Params["id"] != "${userId}" {
		t.Errorf("step 2 params = %v, want id -> ${userId}", get.Params)
	}
	if get.Assert != nil {
		t.Errorf("step 2 assert = %v, want none", get.Assert)
	}

	if !strings.Contains(out.String(), "Auto-using ${userId} for {id}") {
		t.Error("wizard did not announce the auto-wired path parameter")
	}
}

func TestWizardOutputParsesAsScenario(t *testing.T) {
	input := script(
		"Smoke", "", "", "", "loops", "1",
		"", "2", "", "y", "", "", "",
		"done",
	)
	var out bytes.Buffer

	doc, err := New(wizardTestDoc(), input, &out).Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	sc, err := Validate(doc)
	if err != nil {
		t.Fatalf("wizard produced a document the parser rejects: %v", err)
	}
	if sc.Name != "Smoke" {
		t.Errorf("parsed name = %q", sc.Name)
	}
	if len(sc.Steps) != 1 {
		t.Errorf("parsed steps = %d, want 1", len(sc.Steps))
	}
	if len(sc.Steps[0].Captures) != 1 || sc.Steps[0].Captures[0].VariableName != "userId" {
		t.Errorf("parsed captures = %+v", sc.Steps[0].Captures)
	}
}

func TestWizardRequiresSteps(t *testing.T) {
	// "done" with no steps is refused; input ends, which is an error.
	input := script("Empty", "", "", "", "duration", "60", "done")
	var out bytes.Buffer

	if _, err := New(wizardTestDoc(), input, &out).Run(); err == nil {
		t.Fatal("Run() succeeded with zero steps")
	}
	if !strings.Contains(out.String(), "Add at least one step") {
		t.Error("wizard did not explain why 'done' was refused")
	}
}

func TestWizardRequiresEndpoints(t *testing.T) {
	doc := &spec.Document{Title: "Empty"}
	if _, err := New(doc, strings.NewReader(""), &bytes.Buffer{}).Run(); err == nil {
		t.Fatal("Run() succeeded with an empty contract")
	}
}
