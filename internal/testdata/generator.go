package testdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"jmxgen/internal/spec"
)

// TestDataTemplate represents the structure of the generated test data file
type TestDataTemplate struct {
	Endpoints map[string]EndpointTestData `json:"endpoints"`
}

// EndpointTestData represents test data for a specific endpoint and method
type EndpointTestData struct {
	PathParams  map[string]interface{} `json:"path_params,omitempty"`
	QueryParams map[string]interface{} `json:"query_params,omitempty"`
	Body        interface{}            `json:"body,omitempty"`
	Headers     map[string]string      `json:"headers,omitempty"`
}

// Generator handles the generation of test data templates
type Generator struct {
	outputDir string
}

// NewGenerator creates a new instance of Generator
func NewGenerator(outputDir string) *Generator {
	return &Generator{
		outputDir: outputDir,
	}
}

// GenerateTemplate generates a test data template file based on endpoints
func (g *Generator) GenerateTemplate(endpoints []spec.Endpoint) (string, error) {
	template := TestDataTemplate{
		Endpoints: make(map[string]EndpointTestData),
	}

	for _, endpoint := range endpoints {
		testData := g.generateEndpointTestData(endpoint)
		key := fmt.Sprintf("%s %s", endpoint.Method, endpoint.Path)
		template.Endpoints[key] = testData
	}

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %v", err)
	}

	outputPath := filepath.Join(g.outputDir, "testdata_template.json")
	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %v", err)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write template file: %v", err)
	}

	return outputPath, nil
}

// generateEndpointTestData generates test data for a specific endpoint
func (g *Generator) generateEndpointTestData(endpoint spec.Endpoint) EndpointTestData {
	testData := EndpointTestData{
		PathParams:  make(map[string]interface{}),
		QueryParams: make(map[string]interface{}),
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}

	for _, param := range endpoint.Parameters {
		switch param.In {
		case "path":
			testData.PathParams[param.Name] = ValueForParameter(param)
		case "query":
			testData.QueryParams[param.Name] = ValueForParameter(param)
		case "header":
			if value := ValueForParameter(param); value != nil {
				testData.Headers[param.Name] = fmt.Sprint(value)
			}
		}
	}

	if endpoint.HasRequestBody {
		testData.Body = ExampleForSchema(endpoint.RequestBodySchema)
	}

	return testData
}
