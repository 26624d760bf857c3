package jmx

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"jmxgen/internal/correlate"
	"jmxgen/internal/jmx/dom"
	"jmxgen/internal/jmxerr"
	"jmxgen/internal/scenario"
	"jmxgen/internal/spec"
	"jmxgen/internal/testdata"
)

// conditionFieldRe pulls the field name out of a while condition like
// "$.status != 'done'".
var conditionFieldRe = regexp.MustCompile(`\$\.([a-zA-Z_][a-zA-Z0-9_]*)`)

// conditionOperators in match order. Two-character operators come first so
// "<=" is not read as "<" followed by a stray "=".
var conditionOperators = []string{"<=", ">=", "!=", "==", "<", ">"}

// ScenarioResult summarizes a generated scenario plan.
type ScenarioResult struct {
	Success             bool     `json:"success"`
	JMXPath             string   `json:"jmx_path"`
	SamplersCreated     int      `json:"samplers_created"`
	ExtractorsCreated   int      `json:"extractors_created"`
	AssertionsCreated   int      `json:"assertions_created"`
	LoopsCreated        int      `json:"loops_created"`
	TransactionsCreated int      `json:"transactions_created"`
	TimersCreated       int      `json:"timers_created"`
	CorrelationWarnings []string `json:"correlation_warnings"`
	CorrelationErrors   []string `json:"correlation_errors"`
}

// ScenarioGenerator builds multi-step JMX test plans from a parsed scenario,
// wiring in extractors from correlation analysis so captured values flow
// between steps.
type ScenarioGenerator struct {
	doc *spec.Document
}

// NewScenarioGenerator creates a new instance of ScenarioGenerator. doc may
// be nil when no contract is available; payload auto-generation is then
// skipped for steps without an explicit payload.
func NewScenarioGenerator(doc *spec.Document) *ScenarioGenerator {
	return &ScenarioGenerator{doc: doc}
}

// Generate writes a scenario test plan to outputPath. baseURL overrides the
// scenario's settings, which override http://localhost:8080. corr may be nil
// when correlation analysis was not run; captures then get no extractors.
func (g *ScenarioGenerator) Generate(sc *scenario.Scenario, outputPath, baseURL string, corr *correlate.Result) (*ScenarioResult, error) {
	if baseURL == "" {
		baseURL = sc.Settings.BaseURL
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	protocol, domain, port := splitBaseURL(baseURL)

	b := &scenarioBuilder{
		doc:      g.doc,
		result:   &ScenarioResult{Success: true, CorrelationWarnings: []string{}, CorrelationErrors: []string{}},
		captured: make(map[string]bool, len(sc.Variables)),
	}
	for name := range sc.Variables {
		b.captured[name] = true
	}
	if corr != nil {
		b.mappings = corr.Mappings
		b.result.CorrelationWarnings = corr.Warnings
		b.result.CorrelationErrors = corr.Errors
	}

	root, main := newRoot()
	plan := newTestPlan(sc.Name, "1.0")
	planHash := hashTree()
	main.Add(plan, planHash)

	planHash.Add(newHTTPDefaults(domain, port, protocol), hashTree())
	if len(sc.Variables) > 0 {
		planHash.Add(newUserDefinedVariables(sc.Variables), hashTree())
	}
	planHash.Add(newViewResultsTreeListener(), hashTree())
	planHash.Add(newAggregateReportListener(), hashTree())

	duration := sc.Settings.Duration
	if duration != nil && *duration <= 0 {
		duration = nil
	}
	group := newThreadGroup("Scenario Thread Group", sc.Settings.Threads, sc.Settings.Rampup, duration, sc.Settings.Loops)
	groupHash := hashTree()
	planHash.Add(group, groupHash)

	for i := range sc.Steps {
		step := &sc.Steps[i]
		if !step.Enabled {
			continue
		}
		if err := b.emitStep(step, i+1, groupHash); err != nil {
			return nil, err
		}
	}

	absPath, err := writePlan(outputPath, root)
	if err != nil {
		return nil, err
	}
	b.result.JMXPath = absPath

	return b.result, nil
}

// scenarioBuilder carries per-generation state: counters and the set of
// variable names available for payload substitution, which grows as steps
// capture values.
type scenarioBuilder struct {
	doc      *spec.Document
	result   *ScenarioResult
	mappings []correlate.Mapping
	captured map[string]bool
}

// emitStep appends the elements for one step to parent. number is the step's
// 1-based position among its top-level siblings; nested steps report their
// block's number.
func (b *scenarioBuilder) emitStep(step *scenario.Step, number int, parent *dom.Element) error {
	switch step.Kind {
	case scenario.KindThinkTime:
		parent.Add(newConstantTimer(step.Name, step.ThinkTime), hashTree())
		b.result.TimersCreated++
		return nil
	case scenario.KindLoopBlock:
		return b.emitLoopBlock(step, number, parent)
	}
	if step.Loop != nil {
		return b.emitLoopedStep(step, number, parent)
	}
	_, err := b.emitEndpointStep(step, number, parent)
	return err
}

// emitLoopedStep wraps a single endpoint step in a loop or while controller.
func (b *scenarioBuilder) emitLoopedStep(step *scenario.Step, number int, parent *dom.Element) error {
	loopHash := b.emitLoopController(step.Name, step.Loop, parent)

	samplerHash, err := b.emitEndpointStep(step, number, loopHash)
	if err != nil {
		return err
	}
	b.emitConditionExtractor(step.Loop, samplerHash)
	return nil
}

// emitLoopBlock wraps the block's nested steps in a shared controller. The
// while-condition extractor attaches to the last request in the block so the
// condition sees fresh data each iteration.
func (b *scenarioBuilder) emitLoopBlock(step *scenario.Step, number int, parent *dom.Element) error {
	if step.Loop == nil {
		return nil
	}
	loopHash := b.emitLoopController(step.Name, step.Loop, parent)

	var lastSamplerHash *dom.Element
	for i := range step.NestedSteps {
		nested := &step.NestedSteps[i]
		if !nested.Enabled {
			continue
		}
		if nested.Kind == scenario.KindThinkTime {
			loopHash.Add(newConstantTimer(nested.Name, nested.ThinkTime), hashTree())
			b.result.TimersCreated++
			continue
		}
		samplerHash, err := b.emitEndpointStep(nested, number, loopHash)
		if err != nil {
			return err
		}
		lastSamplerHash = samplerHash
	}

	if lastSamplerHash != nil {
		b.emitConditionExtractor(step.Loop, lastSamplerHash)
	}
	return nil
}

// emitLoopController appends the controller for a loop spec and returns its
// hashTree, with the interval timer already placed so it applies to every
// sampler in loop scope.
func (b *scenarioBuilder) emitLoopController(name string, loop *scenario.Loop, parent *dom.Element) *dom.Element {
	var controller *dom.Element
	if loop.Count > 0 {
		controller = newLoopController(fmt.Sprintf("%s Loop", name), loop.Count)
	} else {
		controller = newWhileController(name, groovyCondition(loop.While, loop.MaxIterations))
	}
	loopHash := hashTree()
	parent.Add(controller, loopHash)
	b.result.LoopsCreated++

	if loop.Interval != nil && *loop.Interval > 0 {
		loopHash.Add(newConstantTimer("Loop Interval", *loop.Interval), hashTree())
		b.result.TimersCreated++
	}
	return loopHash
}

// emitConditionExtractor adds the extractor that refreshes the while
// condition's variable after each request.
func (b *scenarioBuilder) emitConditionExtractor(loop *scenario.Loop, samplerHash *dom.Element) {
	if loop.While == "" {
		return
	}
	m := conditionFieldRe.FindStringSubmatch(loop.While)
	if m == nil {
		return
	}
	field := m[1]
	name := fmt.Sprintf("Extract %s for condition", field)
	samplerHash.Add(newJSONExtractor(name, field, "$."+field, "1"), hashTree())
	b.result.ExtractorsCreated++
}

// emitEndpointStep writes the transaction controller and sampler for an
// endpoint step and returns the sampler's hashTree so loop handling can
// append the condition extractor.
func (b *scenarioBuilder) emitEndpointStep(step *scenario.Step, number int, parent *dom.Element) (*dom.Element, error) {
	tc := newTransactionController(fmt.Sprintf("Step %d: %s", number, step.Name), false, true)
	tcHash := hashTree()
	parent.Add(tc, tcHash)
	b.result.TransactionsCreated++

	method, path, endpoint := b.resolveEndpoint(step)

	sampler, err := b.buildStepSampler(step, number, method, path, endpoint)
	if err != nil {
		return nil, err
	}
	samplerHash := hashTree()
	tcHash.Add(sampler, samplerHash)
	b.result.SamplersCreated++

	if len(step.Headers) > 0 {
		samplerHash.Add(newHeaderManager(sortedHeaders(step.Headers)), hashTree())
	}

	for _, m := range b.stepMappings(step, number) {
		name := fmt.Sprintf("Extract %s", m.VariableName)
		match := matchNumbers(captureMatch(step, m.VariableName))
		samplerHash.Add(newJSONExtractor(name, m.VariableName, m.JSONPath, match), hashTree())
		b.result.ExtractorsCreated++
	}

	b.emitAssertions(step, method, samplerHash)

	for _, c := range step.Captures {
		b.captured[c.VariableName] = true
	}

	return samplerHash, nil
}

// resolveEndpoint determines the request method and path for a step, plus
// the contract endpoint when one matches (used for payload auto-generation).
func (b *scenarioBuilder) resolveEndpoint(step *scenario.Step) (method, path string, endpoint *spec.Endpoint) {
	if step.Kind == scenario.KindOperationID {
		if b.doc != nil {
			if ep, ok := b.doc.EndpointByOperationID(step.Endpoint); ok {
				return ep.Method, ep.Path, ep
			}
		}
		return "GET", "/" + step.Endpoint, nil
	}

	method, path = step.Method, step.Path
	if method == "" {
		method = "GET"
	}
	if path == "" {
		path = "/"
	}
	if b.doc != nil {
		if ep, ok := b.doc.EndpointByMethodPath(method, path); ok {
			endpoint = ep
		}
	}
	return method, path, endpoint
}

func (b *scenarioBuilder) buildStepSampler(step *scenario.Step, number int, method, path string, endpoint *spec.Endpoint) (*dom.Element, error) {
	sampler := testElement("HTTPSamplerProxy", "HttpTestSampleGui", "HTTPSamplerProxy",
		fmt.Sprintf("[%d] %s", number, step.Name))

	sampler.Add(stepQueryArguments(step.Params))
	sampler.Add(stringProp("HTTPSampler.domain", ""))
	sampler.Add(stringProp("HTTPSampler.port", ""))
	sampler.Add(stringProp("HTTPSampler.protocol", ""))
	sampler.Add(stringProp("HTTPSampler.path", stepPath(path, step.Params)))
	sampler.Add(stringProp("HTTPSampler.method", method))
	sampler.Add(boolProp("HTTPSampler.follow_redirects", true))
	sampler.Add(boolProp("HTTPSampler.use_keepalive", true))
	sampler.Add(boolProp("HTTPSampler.auto_redirects", false))

	payload, err := b.stepPayload(step, method, endpoint)
	if err != nil {
		return nil, err
	}
	if payload != "" {
		sampler.Add(bodyArguments(payload)...)
	}

	if len(step.Files) > 0 {
		sampler.Add(newFileArgs(step.Files))
	}

	return sampler, nil
}

// stepPayload marshals the step's explicit payload, or auto-generates one
// from the request body schema with captured variables substituted in.
func (b *scenarioBuilder) stepPayload(step *scenario.Step, method string, endpoint *spec.Endpoint) (string, error) {
	var body interface{}
	switch {
	case step.Payload != nil:
		body = step.Payload
	case methodHasBody(method) && endpoint != nil && endpoint.HasRequestBody:
		sample := testdata.ExampleForSchema(endpoint.RequestBodySchema)
		body = substituteCapturedVars(sample, b.captured)
	default:
		return "", nil
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to build request body for step %q: %v: %w",
			step.Name, err, jmxerr.ErrGeneration)
	}
	return string(data), nil
}

// stepMappings returns the correlation mappings for this step's captures.
// Mapping step numbers alone are not unique inside a loop block, so matches
// are narrowed by the step's own capture names.
func (b *scenarioBuilder) stepMappings(step *scenario.Step, number int) []correlate.Mapping {
	if len(step.Captures) == 0 {
		return nil
	}
	names := make(map[string]bool, len(step.Captures))
	for _, c := range step.Captures {
		names[c.VariableName] = true
	}
	var out []correlate.Mapping
	for _, m := range b.mappings {
		if m.SourceStep == number && names[m.VariableName] {
			out = append(out, m)
		}
	}
	return out
}

func (b *scenarioBuilder) emitAssertions(step *scenario.Step, method string, samplerHash *dom.Element) {
	a := step.Assertions
	if a == nil {
		code := "200"
		if method == "POST" {
			code = "201"
		}
		name := fmt.Sprintf("Assert Status %s", code)
		samplerHash.Add(newResponseCodeAssertion(name, code), hashTree())
		b.result.AssertionsCreated++
		return
	}

	if a.Status != 0 {
		code := fmt.Sprint(a.Status)
		name := fmt.Sprintf("Assert Status %s", code)
		samplerHash.Add(newResponseCodeAssertion(name, code), hashTree())
		b.result.AssertionsCreated++
	}

	fields := make([]string, 0, len(a.Body))
	for field := range a.Body {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		samplerHash.Add(newJSONPathAssertion(field, a.Body[field]), hashTree())
		b.result.AssertionsCreated++
	}

	if len(a.BodyContains) > 0 {
		samplerHash.Add(newBodyContainsAssertion(a.BodyContains), hashTree())
		b.result.AssertionsCreated++
	}
}

// captureMatch returns the match mode declared for a variable's capture.
func captureMatch(step *scenario.Step, varName string) string {
	for _, c := range step.Captures {
		if c.VariableName == varName {
			return c.Match
		}
	}
	return ""
}

// matchNumbers converts a capture match mode to JMeter's match_numbers
// value: 1 = first, -1 = all, N = nth.
func matchNumbers(match string) string {
	switch match {
	case "", "first":
		return "1"
	case "all":
		return "-1"
	}
	if n, err := strconv.Atoi(match); err == nil && n > 0 {
		return match
	}
	return "1"
}

func methodHasBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// stepPath fills {param} placeholders from the step's params, then converts
// any remaining placeholder to a JMeter variable reference so captured
// values can flow into the path. Placeholders already substituted with a
// ${var} reference must not be converted again, hence the no-preceding-$
// guard in the pattern.
func stepPath(path string, params map[string]interface{}) string {
	for name, value := range params {
		path = strings.ReplaceAll(path, "{"+name+"}", fmt.Sprint(value))
	}
	// $$ is a literal dollar sign in the replacement template.
	return pathParamRe.ReplaceAllString(path, "$1$${$2}")
}

var pathParamRe = regexp.MustCompile(`(^|[^$])\{([^}]+)\}`)

// stepQueryArguments builds the sampler arguments from a step's params.
// Values that reference variables or placeholders belong to the path, not
// the query string, and are skipped.
func stepQueryArguments(params map[string]interface{}) *dom.Element {
	args := emptyArgumentsProp()
	coll := args.Child("collectionProp")

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := params[name]
		if s, ok := value.(string); ok && (strings.HasPrefix(s, "${") || strings.Contains(s, "{")) {
			continue
		}
		coll.Add(httpArgument(name, fmt.Sprint(value)))
	}
	return args
}

func sortedHeaders(headers map[string]string) []headerPair {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]headerPair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, headerPair{name, headers[name]})
	}
	return pairs
}

// substituteCapturedVars walks an auto-generated payload and replaces the
// value of any field whose name matches a captured variable with that
// variable's reference, wiring the correlation chain into the request body.
func substituteCapturedVars(value interface{}, captured map[string]bool) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			if captured[key] {
				out[key] = fmt.Sprintf("${%s}", key)
			} else {
				out[key] = substituteCapturedVars(val, captured)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = substituteCapturedVars(item, captured)
		}
		return out
	default:
		return value
	}
}

// groovyCondition converts a while condition like "$.status != 'done'" into
// a Groovy expression with an iteration ceiling so the loop always
// terminates. Conditions that cannot be parsed fall back to the ceiling
// alone.
func groovyCondition(condition string, maxIterations int) string {
	m := conditionFieldRe.FindStringSubmatch(condition)
	if m == nil {
		return fmt.Sprintf("${__groovy(vars.getIteration() <= %d)}", maxIterations)
	}
	field := m[1]

	var operator, value string
	for _, op := range conditionOperators {
		if idx := strings.Index(condition, op); idx >= 0 {
			operator = op
			value = strings.TrimSpace(condition[idx+len(op):])
			value = strings.Trim(value, `'"`)
			break
		}
	}

	if operator == "" || value == "" {
		return fmt.Sprintf("${__groovy(vars.getIteration() <= %d)}", maxIterations)
	}
	return fmt.Sprintf(`${__groovy(vars.get("%s") %s "%s" && vars.getIteration() <= %d)}`,
		field, operator, value, maxIterations)
}

// newFileArgs builds the multipart file list for an upload step.
func newFileArgs(files []scenario.FileUpload) *dom.Element {
	elem := dom.New("elementProp").
		SetAttr("name", "HTTPsampler.Files").
		SetAttr("elementType", "HTTPFileArgs")
	coll := dom.New("collectionProp").SetAttr("name", "HTTPFileArgs.files")

	for _, f := range files {
		mime := f.MimeType
		if mime == "" {
			mime = mimeByExtension(f.Path)
		}
		entry := dom.New("elementProp").
			SetAttr("name", f.Path).
			SetAttr("elementType", "HTTPFileArg")
		entry.Add(stringProp("File.path", f.Path))
		entry.Add(stringProp("File.paramname", f.Param))
		entry.Add(stringProp("File.mimetype", mime))
		coll.Add(entry)
	}

	elem.Add(coll)
	return elem
}

func mimeByExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".xml":
		return "application/xml"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
