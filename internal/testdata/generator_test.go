package testdata

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"jmxgen/internal/spec"
)

func TestGenerateTemplate(t *testing.T) {
	endpoints := []spec.Endpoint{
		{
			Path:   "/users/{id}",
			Method: "GET",
			Parameters: []spec.Parameter{
				{Name: "id", In: "path", Schema: formatSchema("string", "uuid")},
				{Name: "expand", In: "query", Schema: typedSchema("string")},
				{Name: "X-Tenant", In: "header", Schema: typedSchema("string")},
			},
		},
		{
			Path:           "/users",
			Method:         "POST",
			HasRequestBody: true,
			RequestBodySchema: objectSchema(map[string]*openapi3.Schema{
				"name":  typedSchema("string"),
				"email": formatSchema("string", "email"),
			}),
		},
	}

	dir := t.TempDir()
	gen := NewGenerator(dir)
	path, err := gen.GenerateTemplate(endpoints)
	if err != nil {
		t.Fatalf("GenerateTemplate failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read template: %v", err)
	}

	var template TestDataTemplate
	if err := json.Unmarshal(data, &template); err != nil {
		t.Fatalf("template is not valid JSON: %v", err)
	}

	getData, ok := template.Endpoints["GET /users/{id}"]
	if !ok {
		t.Fatalf("missing GET endpoint entry, got keys %v", templateKeys(template))
	}
	if getData.PathParams["id"] != "123e4567-e89b-12d3-a456-426614174000" {
		t.Errorf("path param id = %v, want uuid sample", getData.PathParams["id"])
	}
	if getData.QueryParams["expand"] != "sample_string" {
		t.Errorf("query param expand = %v, want sample_string", getData.QueryParams["expand"])
	}
	if getData.Headers["X-Tenant"] != "sample_string" {
		t.Errorf("header X-Tenant = %v, want sample_string", getData.Headers["X-Tenant"])
	}
	if getData.Headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", getData.Headers["Content-Type"])
	}

	postData, ok := template.Endpoints["POST /users"]
	if !ok {
		t.Fatal("missing POST endpoint entry")
	}
	body, ok := postData.Body.(map[string]interface{})
	if !ok {
		t.Fatalf("POST body = %T, want object", postData.Body)
	}
	if body["email"] != "test@example.com" {
		t.Errorf("body email = %v, want test@example.com", body["email"])
	}
}

func templateKeys(template TestDataTemplate) []string {
	keys := make([]string, 0, len(template.Endpoints))
	for k := range template.Endpoints {
		keys = append(keys, k)
	}
	return keys
}
