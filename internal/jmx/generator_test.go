package jmx

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"jmxgen/internal/jmx/dom"
	"jmxgen/internal/jmxerr"
	"jmxgen/internal/spec"
)

func flatTestDoc() *spec.Document {
	return &spec.Document{
		Title:   "Widget API",
		Version: "1.0.0",
		BaseURL: "https://api.example.com:8443",
		Endpoints: []spec.Endpoint{
			{
				Path: "/widgets", Method: "GET", OperationID: "listWidgets",
				Parameters: []spec.Parameter{
					{Name: "limit", In: "query", Example: 25},
					{Name: "X-Tenant", In: "header"},
				},
				ExpectedResponseCodes: []string{"200"},
			},
			{
				Path: "/widgets", Method: "POST", OperationID: "createWidget",
				HasRequestBody:         true,
				RequestBodyContentType: "application/json",
				ExpectedResponseCodes:  []string{"201"},
			},
			{
				Path: "/widgets/{widgetId}", Method: "GET", OperationID: "getWidget",
				Parameters: []spec.Parameter{
					{Name: "widgetId", In: "path", Required: true},
				},
			},
		},
	}
}

func generateFlatPlan(t *testing.T, doc *spec.Document, cfg Config) (*Result, *dom.Element) {
	t.Helper()
	jmxPath := filepath.Join(t.TempDir(), "plan.jmx")
	result, err := NewGenerator(doc).Generate(jmxPath, cfg)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	root, err := parsePlan(jmxPath)
	if err != nil {
		t.Fatalf("parsing generated plan: %v", err)
	}
	return result, root
}

// checkHashTreePairing verifies that inside every hashTree, each JMeter node
// is immediately followed by a hashTree sibling.
func checkHashTreePairing(t *testing.T, elem *dom.Element, path string) {
	t.Helper()
	for i, child := range elem.Children {
		if child.Tag == "hashTree" {
			checkHashTreePairing(t, child, path+"/hashTree")
			continue
		}
		if elem.Tag != "jmeterTestPlan" && elem.Tag != "hashTree" {
			continue
		}
		if i+1 >= len(elem.Children) || elem.Children[i+1].Tag != "hashTree" {
			t.Errorf("%s/%s is not followed by a hashTree sibling", path, child.Tag)
		}
	}
}

func TestGenerateFlatPlanStructure(t *testing.T) {
	result, root := generateFlatPlan(t, flatTestDoc(), Config{Threads: 5, Rampup: 10})

	if result.SamplersCreated != 3 {
		t.Errorf("SamplersCreated = %d, want 3", result.SamplersCreated)
	}
	if result.Threads != 5 {
		t.Errorf("Threads = %d, want 5", result.Threads)
	}
	if !strings.Contains(result.Summary, "3 HTTP samplers") {
		t.Errorf("Summary = %q, want sampler count mentioned", result.Summary)
	}

	checkHashTreePairing(t, root, "jmeterTestPlan")

	plan := root.Find("TestPlan")
	if plan == nil {
		t.Fatal("generated plan has no TestPlan element")
	}
	if got := plan.Attr("testname"); got != "Widget API v1.0.0" {
		t.Errorf("TestPlan testname = %q, want %q", got, "Widget API v1.0.0")
	}

	if got := len(root.FindAll("ThreadGroup")); got != 1 {
		t.Fatalf("ThreadGroup count = %d, want 1", got)
	}
	group := root.Find("ThreadGroup")
	if threads, _ := group.Prop("stringProp", "ThreadGroup.num_threads"); threads != "5" {
		t.Errorf("num_threads = %q, want 5", threads)
	}
	if rampup, _ := group.Prop("stringProp", "ThreadGroup.ramp_time"); rampup != "10" {
		t.Errorf("ramp_time = %q, want 10", rampup)
	}
	if scheduler, _ := group.Prop("boolProp", "ThreadGroup.scheduler"); scheduler != "false" {
		t.Errorf("scheduler = %q, want false without duration", scheduler)
	}
}

func TestGenerateSingleHTTPDefaults(t *testing.T) {
	_, root := generateFlatPlan(t, flatTestDoc(), Config{})

	defaults := root.FindAll("ConfigTestElement")
	if len(defaults) != 1 {
		t.Fatalf("ConfigTestElement count = %d, want 1", len(defaults))
	}
	if got := defaults[0].Attr("testname"); got != "HTTP Request Defaults" {
		t.Errorf("defaults testname = %q", got)
	}
	if domain, _ := defaults[0].Prop("stringProp", "HTTPSampler.domain"); domain != "api.example.com" {
		t.Errorf("defaults domain = %q, want api.example.com", domain)
	}
	if port, _ := defaults[0].Prop("stringProp", "HTTPSampler.port"); port != "8443" {
		t.Errorf("defaults port = %q, want 8443", port)
	}
	if protocol, _ := defaults[0].Prop("stringProp", "HTTPSampler.protocol"); protocol != "https" {
		t.Errorf("defaults protocol = %q, want https", protocol)
	}

	for _, sampler := range root.FindAll("HTTPSamplerProxy") {
		name := sampler.Attr("testname")
		if domain, _ := sampler.Prop("stringProp", "HTTPSampler.domain"); domain != "" {
			t.Errorf("sampler %q domain = %q, want empty (defaults carry it)", name, domain)
		}
		if port, _ := sampler.Prop("stringProp", "HTTPSampler.port"); port != "" {
			t.Errorf("sampler %q port = %q, want empty", name, port)
		}
	}
}

func TestGeneratePathParamsAndAssertions(t *testing.T) {
	_, root := generateFlatPlan(t, flatTestDoc(), Config{})

	byID := root.FindByAttr("HTTPSamplerProxy", "testname", "getWidget")
	if byID == nil {
		t.Fatal("getWidget sampler not found")
	}
	if path, _ := byID.Prop("stringProp", "HTTPSampler.path"); path != "/widgets/${widgetId}" {
		t.Errorf("path = %q, want /widgets/${widgetId}", path)
	}

	assertions := root.FindAll("ResponseAssertion")
	if len(assertions) != 3 {
		t.Fatalf("assertion count = %d, want 3 (one per sampler)", len(assertions))
	}
	names := make(map[string]bool, len(assertions))
	for _, a := range assertions {
		names[a.Attr("testname")] = true
	}
	for _, want := range []string{"Response Code 200", "Response Code 201"} {
		if !names[want] {
			t.Errorf("missing assertion %q (got %v)", want, names)
		}
	}
}

func TestGenerateQueryAndHeaderParameters(t *testing.T) {
	_, root := generateFlatPlan(t, flatTestDoc(), Config{})

	list := root.FindByAttr("HTTPSamplerProxy", "testname", "listWidgets")
	if list == nil {
		t.Fatal("listWidgets sampler not found")
	}
	rendered := string(dom.Render(list))
	if !strings.Contains(rendered, ">25<") {
		t.Error("query parameter example value 25 not found in sampler arguments")
	}
	if strings.Contains(rendered, "X-Tenant") {
		t.Error("header parameter leaked into the sampler arguments")
	}

	managers := root.FindAll("HeaderManager")
	if len(managers) != 2 {
		t.Fatalf("HeaderManager count = %d, want 2", len(managers))
	}
	var haveTenant, haveContentType bool
	for _, m := range managers {
		text := string(dom.Render(m))
		if strings.Contains(text, "X-Tenant") {
			haveTenant = true
		}
		if strings.Contains(text, "Content-Type") && strings.Contains(text, "application/json") {
			haveContentType = true
		}
	}
	if !haveTenant {
		t.Error("header parameter X-Tenant missing from header managers")
	}
	if !haveContentType {
		t.Error("Content-Type header missing for the body-carrying endpoint")
	}
}

func TestGenerateDurationEnablesScheduler(t *testing.T) {
	duration := 60
	result, root := generateFlatPlan(t, flatTestDoc(), Config{Duration: &duration})

	group := root.Find("ThreadGroup")
	if scheduler, _ := group.Prop("boolProp", "ThreadGroup.scheduler"); scheduler != "true" {
		t.Errorf("scheduler = %q, want true", scheduler)
	}
	if got, _ := group.Prop("stringProp", "ThreadGroup.duration"); got != "60" {
		t.Errorf("duration = %q, want 60", got)
	}
	if loops, _ := group.Prop("stringProp", "LoopController.loops"); loops != "-1" {
		t.Errorf("loops = %q, want -1 under a scheduler", loops)
	}
	if !strings.Contains(result.Summary, "60s duration") {
		t.Errorf("Summary = %q, want duration mentioned", result.Summary)
	}
}

func TestGenerateEndpointFilter(t *testing.T) {
	result, root := generateFlatPlan(t, flatTestDoc(), Config{Endpoints: []string{"createWidget"}})

	if result.SamplersCreated != 1 {
		t.Errorf("SamplersCreated = %d, want 1", result.SamplersCreated)
	}
	samplers := root.FindAll("HTTPSamplerProxy")
	if len(samplers) != 1 || samplers[0].Attr("testname") != "createWidget" {
		t.Errorf("filtered plan has wrong samplers: %d", len(samplers))
	}
}

func TestGenerateUnknownEndpointFails(t *testing.T) {
	jmxPath := filepath.Join(t.TempDir(), "plan.jmx")
	_, err := NewGenerator(flatTestDoc()).Generate(jmxPath, Config{Endpoints: []string{"nope"}})
	if err == nil {
		t.Fatal("Generate() accepted an unknown operationId")
	}
	if !errors.Is(err, jmxerr.ErrGeneration) {
		t.Errorf("error %v does not wrap ErrGeneration", err)
	}
	if !strings.Contains(err.Error(), "listWidgets") {
		t.Errorf("error %q should list the available operationIds", err)
	}
}

func TestGenerateCSVFeed(t *testing.T) {
	cfg := Config{CSVFeed: &CSVFeed{File: "users.csv", Variables: []string{"username", "password"}}}
	_, root := generateFlatPlan(t, flatTestDoc(), cfg)

	csv := root.Find("CSVDataSet")
	if csv == nil {
		t.Fatal("CSVDataSet missing from plan with a configured feed")
	}
	if file, _ := csv.Prop("stringProp", "filename"); file != "users.csv" {
		t.Errorf("filename = %q, want users.csv", file)
	}
	if vars, _ := csv.Prop("stringProp", "variableNames"); vars != "username,password" {
		t.Errorf("variableNames = %q, want username,password", vars)
	}
	if recycle, _ := csv.Prop("boolProp", "recycle"); recycle != "true" {
		t.Errorf("recycle = %q, want true", recycle)
	}
}

func TestGenerateBaseURLFallbacks(t *testing.T) {
	doc := flatTestDoc()
	doc.BaseURL = ""
	_, root := generateFlatPlan(t, doc, Config{})

	defaults := root.Find("ConfigTestElement")
	if domain, _ := defaults.Prop("stringProp", "HTTPSampler.domain"); domain != "localhost" {
		t.Errorf("domain = %q, want localhost fallback", domain)
	}
	if port, _ := defaults.Prop("stringProp", "HTTPSampler.port"); port != "8080" {
		t.Errorf("port = %q, want 8080 fallback", port)
	}
}

func TestSplitBaseURL(t *testing.T) {
	tests := []struct {
		in                     string
		protocol, domain, port string
	}{
		{"http://localhost:8080", "http", "localhost", "8080"},
		{"https://api.example.com", "https", "api.example.com", ""},
		{"http://10.0.0.5:3000/api/v1", "http", "10.0.0.5", "3000"},
		{"", "http", "localhost", ""},
	}
	for _, tt := range tests {
		protocol, domain, port := splitBaseURL(tt.in)
		if protocol != tt.protocol || domain != tt.domain || port != tt.port {
			t.Errorf("splitBaseURL(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.in, protocol, domain, port, tt.protocol, tt.domain, tt.port)
		}
	}
}
