package jmx

import (
	"fmt"
	"os"
	"strconv"

	"jmxgen/internal/jmx/dom"
	"jmxgen/internal/jmxerr"
)

// ValidationReport is the outcome of validating a JMX file. Issues mark the
// plan invalid; recommendations never do.
type ValidationReport struct {
	Valid           bool     `json:"valid"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Validator checks JMX test plans for structural problems, configuration
// mistakes and improvement opportunities. It accepts plans from any source,
// not just ones this package generated.
type Validator struct{}

// NewValidator creates a new instance of Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the JMX file at jmxPath and reports issues and
// recommendations.
func (v *Validator) Validate(jmxPath string) (*ValidationReport, error) {
	data, err := os.ReadFile(jmxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("JMX file not found: %s: %w", jmxPath, jmxerr.ErrValidation)
		}
		return nil, fmt.Errorf("failed to read JMX file: %v: %w", err, jmxerr.ErrValidation)
	}

	root, err := dom.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid XML in JMX file: %v: %w", err, jmxerr.ErrValidation)
	}

	report := &ValidationReport{Issues: []string{}, Recommendations: []string{}}

	report.Issues = append(report.Issues, checkStructure(root)...)
	if root.Tag == "jmeterTestPlan" {
		report.Issues = append(report.Issues, checkConfiguration(root)...)
		report.Issues = append(report.Issues, checkSamplers(root)...)
		report.Recommendations = buildRecommendations(root)
	}

	report.Valid = len(report.Issues) == 0
	return report, nil
}

func checkStructure(root *dom.Element) []string {
	var issues []string

	if root.Tag != "jmeterTestPlan" {
		issues = append(issues, "Root element must be 'jmeterTestPlan'")
		return issues
	}

	if root.Find("TestPlan") == nil {
		issues = append(issues, "Missing TestPlan element")
	}
	if root.Find("ThreadGroup") == nil {
		issues = append(issues, "Missing ThreadGroup element")
	}
	if root.Child("hashTree") == nil {
		issues = append(issues, "Missing main hashTree element after jmeterTestPlan")
	}

	return issues
}

func checkConfiguration(root *dom.Element) []string {
	var issues []string

	group := root.Find("ThreadGroup")
	if group == nil {
		return issues
	}

	if threadsText, ok := group.Prop("stringProp", "ThreadGroup.num_threads"); !ok {
		issues = append(issues, "ThreadGroup missing 'num_threads' configuration")
	} else if threadsText == "" {
		issues = append(issues, "ThreadGroup 'num_threads' must be > 0 (found: 0)")
	} else if threads, err := strconv.Atoi(threadsText); err != nil {
		issues = append(issues, fmt.Sprintf("ThreadGroup 'num_threads' must be a valid number (found: '%s')", threadsText))
	} else if threads <= 0 {
		issues = append(issues, fmt.Sprintf("ThreadGroup 'num_threads' must be > 0 (found: %d)", threads))
	}

	if _, ok := group.Prop("stringProp", "ThreadGroup.ramp_time"); !ok {
		issues = append(issues, "ThreadGroup missing 'ramp_time' configuration")
	}

	schedulerText, _ := group.Prop("boolProp", "ThreadGroup.scheduler")
	schedulerEnabled := schedulerText == "true"
	_, hasDuration := group.Prop("stringProp", "ThreadGroup.duration")
	_, hasLoops := group.Prop("stringProp", "LoopController.loops")

	if !schedulerEnabled && !hasLoops {
		issues = append(issues, "ThreadGroup must have either scheduler enabled or loop count configured")
	}
	if schedulerEnabled && !hasDuration {
		issues = append(issues, "ThreadGroup has scheduler enabled but missing 'duration' configuration")
	}

	return issues
}

func checkSamplers(root *dom.Element) []string {
	var issues []string

	samplers := root.FindAll("HTTPSamplerProxy")
	if len(samplers) == 0 {
		issues = append(issues, "No HTTP samplers found in test plan")
		return issues
	}

	for i, sampler := range samplers {
		name := sampler.Attr("testname")
		if name == "" {
			name = fmt.Sprintf("Sampler #%d", i+1)
		}

		if path, ok := sampler.Prop("stringProp", "HTTPSampler.path"); !ok || path == "" {
			issues = append(issues, fmt.Sprintf("Sampler '%s' missing path configuration", name))
		}
		if method, ok := sampler.Prop("stringProp", "HTTPSampler.method"); !ok || method == "" {
			issues = append(issues, fmt.Sprintf("Sampler '%s' missing HTTP method", name))
		}

		domain, _ := sampler.Prop("stringProp", "HTTPSampler.domain")
		if domain == "" && root.FindByAttr("ConfigTestElement", "testclass", "ConfigTestElement") == nil {
			issues = append(issues, fmt.Sprintf("Sampler '%s' has no domain and no HTTP Request Defaults found", name))
		}
	}

	return issues
}

func buildRecommendations(root *dom.Element) []string {
	recommendations := []string{}

	if root.Find("CSVDataSet") == nil {
		recommendations = append(recommendations, "Consider adding CSV Data Set Config for parameterized test data")
	}
	if len(root.FindAll("ResultCollector")) == 0 {
		recommendations = append(recommendations, "Consider adding listeners (View Results Tree, Summary Report) for result analysis")
	}
	if len(root.FindAll("ConstantTimer"))+len(root.FindAll("UniformRandomTimer")) == 0 {
		recommendations = append(recommendations, "Consider adding timers to simulate realistic user think time")
	}

	assertions := len(root.FindAll("ResponseAssertion"))
	if assertions > 0 && len(root.FindAll("DurationAssertion")) == 0 {
		recommendations = append(recommendations, "Consider adding Duration Assertions for performance validation")
	}

	if root.FindByAttr("ConfigTestElement", "testclass", "ConfigTestElement") == nil {
		recommendations = append(recommendations, "Consider using HTTP Request Defaults to centralize server configuration")
	}
	if root.Find("HeaderManager") == nil {
		recommendations = append(recommendations, "Consider adding Header Manager for Content-Type and other headers")
	}

	if group := root.Find("ThreadGroup"); group != nil {
		if text, ok := group.Prop("stringProp", "ThreadGroup.num_threads"); ok && text != "" {
			if threads, err := strconv.Atoi(text); err == nil && threads < 10 {
				recommendations = append(recommendations,
					fmt.Sprintf("Thread count is low (%d). Consider increasing for realistic load testing", threads))
			}
		}
	}

	if len(root.FindAll("HTTPSamplerProxy")) > 0 && assertions == 0 {
		recommendations = append(recommendations, "No assertions found. Consider adding assertions to validate responses")
	}

	return recommendations
}
