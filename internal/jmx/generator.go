package jmx

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"jmxgen/internal/jmx/dom"
	"jmxgen/internal/jmxerr"
	"jmxgen/internal/spec"
	"jmxgen/internal/testdata"
)

// Config controls flat-mode generation: one sampler per endpoint under a
// single thread group.
type Config struct {
	// BaseURL overrides the server URL from the contract. Empty means use
	// the contract's, falling back to http://localhost:8080.
	BaseURL string
	// Endpoints filters generation to the given operationIds. Empty means
	// all endpoints.
	Endpoints []string
	Threads   int
	Rampup    int
	// Duration in seconds enables the scheduler; nil runs one iteration.
	Duration *int
	// CSVFeed wires a CSV Data Set Config into the plan, typically one
	// exported by the feeder package.
	CSVFeed *CSVFeed
}

// CSVFeed points a plan at a CSV file whose columns become test variables.
type CSVFeed struct {
	File      string
	Variables []string
}

// Result summarizes a generated plan.
type Result struct {
	Success         bool   `json:"success"`
	JMXPath         string `json:"jmx_path"`
	SamplersCreated int    `json:"samplers_created"`
	HeadersAdded    int    `json:"headers_added"`
	AssertionsAdded int    `json:"assertions_added"`
	Threads         int    `json:"threads"`
	Rampup          int    `json:"rampup"`
	Duration        *int   `json:"duration"`
	Summary         string `json:"summary"`
}

// Generator builds flat JMX test plans from a parsed API contract.
type Generator struct {
	doc *spec.Document
}

// NewGenerator creates a new instance of Generator.
func NewGenerator(doc *spec.Document) *Generator {
	return &Generator{doc: doc}
}

// Generate writes a flat test plan for the configured endpoints to
// outputPath and reports what was created.
func (g *Generator) Generate(outputPath string, cfg Config) (*Result, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = g.doc.BaseURL
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	protocol, domain, port := splitBaseURL(baseURL)

	endpoints := g.filterEndpoints(cfg.Endpoints)
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints found to generate (available: %s): %w",
			strings.Join(g.doc.OperationIDs(), ", "), jmxerr.ErrGeneration)
	}

	root, main := newRoot()
	plan := newTestPlan(g.doc.Title, g.doc.Version)
	planHash := hashTree()
	main.Add(plan, planHash)

	planHash.Add(newHTTPDefaults(domain, port, protocol), hashTree())
	if cfg.CSVFeed != nil {
		planHash.Add(newCSVDataSetConfig(cfg.CSVFeed.File, cfg.CSVFeed.Variables), hashTree())
	}
	planHash.Add(newViewResultsTreeListener(), hashTree())
	planHash.Add(newAggregateReportListener(), hashTree())

	group := newThreadGroup("Thread Group", threads, cfg.Rampup, cfg.Duration, nil)
	groupHash := hashTree()
	planHash.Add(group, groupHash)

	result := &Result{
		Success:  true,
		Threads:  threads,
		Rampup:   cfg.Rampup,
		Duration: cfg.Duration,
	}

	for i := range endpoints {
		ep := &endpoints[i]

		sampler, err := g.buildSampler(ep)
		if err != nil {
			return nil, err
		}
		samplerHash := hashTree()
		groupHash.Add(sampler, samplerHash)
		result.SamplersCreated++

		if headers := endpointHeaders(ep); len(headers) > 0 {
			samplerHash.Add(newHeaderManager(headers), hashTree())
			result.HeadersAdded++
		}

		for _, code := range expectedCodes(ep) {
			name := fmt.Sprintf("Response Code %s", code)
			samplerHash.Add(newResponseCodeAssertion(name, code), hashTree())
			result.AssertionsAdded++
		}
	}

	absPath, err := writePlan(outputPath, root)
	if err != nil {
		return nil, err
	}
	result.JMXPath = absPath

	profile := "1 iteration"
	if cfg.Duration != nil {
		profile = fmt.Sprintf("%ds duration", *cfg.Duration)
	}
	result.Summary = fmt.Sprintf(
		"Generated JMX test plan with %d HTTP samplers, %d header managers, and %d assertions. Load profile: %d threads, %ds ramp-up, %s.",
		result.SamplersCreated, result.HeadersAdded, result.AssertionsAdded,
		threads, cfg.Rampup, profile)

	return result, nil
}

func (g *Generator) filterEndpoints(operationIDs []string) []spec.Endpoint {
	if len(operationIDs) == 0 {
		return g.doc.Endpoints
	}
	wanted := make(map[string]bool, len(operationIDs))
	for _, id := range operationIDs {
		wanted[id] = true
	}
	var filtered []spec.Endpoint
	for _, ep := range g.doc.Endpoints {
		if wanted[ep.OperationID] {
			filtered = append(filtered, ep)
		}
	}
	return filtered
}

func (g *Generator) buildSampler(ep *spec.Endpoint) (*dom.Element, error) {
	sampler := testElement("HTTPSamplerProxy", "HttpTestSampleGui", "HTTPSamplerProxy", readableOperationName(ep))

	sampler.Add(queryArguments(ep.Parameters))
	sampler.Add(stringProp("HTTPSampler.domain", ""))
	sampler.Add(stringProp("HTTPSampler.port", ""))
	sampler.Add(stringProp("HTTPSampler.protocol", ""))
	sampler.Add(stringProp("HTTPSampler.path", convertDeclaredPathParams(ep.Path, ep.Parameters)))
	sampler.Add(stringProp("HTTPSampler.method", ep.Method))
	sampler.Add(boolProp("HTTPSampler.follow_redirects", true))
	sampler.Add(boolProp("HTTPSampler.use_keepalive", true))
	sampler.Add(boolProp("HTTPSampler.auto_redirects", false))

	if ep.HasRequestBody && ep.RequestBodyContentType != "" {
		sample := testdata.ExampleForSchema(ep.RequestBodySchema)
		payload, err := json.MarshalIndent(sample, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to build request body for %s %s: %v: %w",
				ep.Method, ep.Path, err, jmxerr.ErrGeneration)
		}
		sampler.Add(bodyArguments(string(payload))...)
	}

	return sampler, nil
}

// queryArguments builds the sampler arguments element from query parameters.
func queryArguments(params []spec.Parameter) *dom.Element {
	args := emptyArgumentsProp()
	coll := args.Child("collectionProp")
	for _, p := range params {
		if p.In != "query" {
			continue
		}
		coll.Add(httpArgument(p.Name, parameterValue(p)))
	}
	return args
}

// endpointHeaders collects header parameters, with Content-Type first when
// the endpoint posts a body.
func endpointHeaders(ep *spec.Endpoint) []headerPair {
	var headers []headerPair
	if ep.HasRequestBody && ep.RequestBodyContentType != "" {
		headers = append(headers, headerPair{"Content-Type", ep.RequestBodyContentType})
	}
	for _, p := range ep.Parameters {
		if p.In != "header" {
			continue
		}
		headers = append(headers, headerPair{p.Name, parameterValue(p)})
	}
	return headers
}

// parameterValue uses the declared example or default, falling back to a
// JMeter variable reference so the value is visible and overridable.
func parameterValue(p spec.Parameter) string {
	if p.Example != nil {
		return fmt.Sprint(p.Example)
	}
	if p.Default != nil {
		return fmt.Sprint(p.Default)
	}
	return fmt.Sprintf("${%s}", p.Name)
}

// expectedCodes returns the endpoint's declared 2xx codes, or a sensible
// default for the method when the contract declares none.
func expectedCodes(ep *spec.Endpoint) []string {
	if len(ep.ExpectedResponseCodes) > 0 {
		return ep.ExpectedResponseCodes
	}
	if ep.Method == "POST" {
		return []string{"201"}
	}
	return []string{"200"}
}

// convertDeclaredPathParams rewrites {param} to ${param} for parameters the
// contract declares in the path; undeclared braces stay untouched.
func convertDeclaredPathParams(path string, params []spec.Parameter) string {
	for _, p := range params {
		if p.In != "path" {
			continue
		}
		path = strings.ReplaceAll(path, "{"+p.Name+"}", "${"+p.Name+"}")
	}
	return path
}

// splitBaseURL breaks a base URL into the protocol/domain/port triple the
// request defaults element wants.
func splitBaseURL(baseURL string) (protocol, domain, port string) {
	protocol, domain, port = "http", "localhost", ""
	u, err := url.Parse(baseURL)
	if err != nil {
		return
	}
	if u.Scheme != "" {
		protocol = u.Scheme
	}
	if u.Hostname() != "" {
		domain = u.Hostname()
	}
	port = u.Port()
	return
}

// writePlan renders the tree and writes it to outputPath, creating parent
// directories as needed. Returns the absolute path.
func writePlan(outputPath string, root *dom.Element) (string, error) {
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %v: %w", err, jmxerr.ErrGeneration)
		}
	}
	if err := os.WriteFile(outputPath, dom.Render(root), 0o644); err != nil {
		return "", fmt.Errorf("failed to write JMX file: %v: %w", err, jmxerr.ErrGeneration)
	}
	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		return outputPath, nil
	}
	return absPath, nil
}
