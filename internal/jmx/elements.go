// Package jmx generates, validates and updates JMeter test plans.
//
// Plans are built on the dom element tree. Every JMeter node must be
// immediately followed by its (possibly empty) hashTree sibling or JMeter
// refuses to load the file.
package jmx

import (
	"fmt"
	"sort"
	"strings"

	"jmxgen/internal/jmx/dom"
)

func hashTree() *dom.Element {
	return dom.New("hashTree")
}

func stringProp(name, value string) *dom.Element {
	return dom.New("stringProp").SetAttr("name", name).SetText(value)
}

func boolProp(name string, value bool) *dom.Element {
	text := "false"
	if value {
		text = "true"
	}
	return dom.New("boolProp").SetAttr("name", name).SetText(text)
}

func intProp(name string, value int) *dom.Element {
	return dom.New("intProp").SetAttr("name", name).SetText(fmt.Sprint(value))
}

// testElement creates a JMeter test element with the standard attribute set.
func testElement(tag, guiclass, testclass, testname string) *dom.Element {
	return dom.New(tag).
		SetAttr("guiclass", guiclass).
		SetAttr("testclass", testclass).
		SetAttr("testname", testname).
		SetAttr("enabled", "true")
}

// javaStringHash mirrors java.lang.String#hashCode, which JMeter uses as the
// name attribute of assertion test strings.
func javaStringHash(s string) int32 {
	var h int32
	for _, r := range s {
		h = 31*h + int32(r)
	}
	return h
}

func newRoot() (*dom.Element, *dom.Element) {
	root := dom.New("jmeterTestPlan").
		SetAttr("version", "1.2").
		SetAttr("properties", "5.0").
		SetAttr("jmeter", "5.0")
	main := hashTree()
	root.Add(main)
	return root, main
}

func newTestPlan(title, version string) *dom.Element {
	plan := testElement("TestPlan", "TestPlanGui", "TestPlan", fmt.Sprintf("%s v%s", title, version))
	plan.Add(boolProp("TestPlan.functional_mode", false))
	plan.Add(boolProp("TestPlan.serialize_threadgroups", false))

	args := dom.New("elementProp").
		SetAttr("name", "TestPlan.user_defined_variables").
		SetAttr("elementType", "Arguments").
		SetAttr("guiclass", "ArgumentsPanel").
		SetAttr("testclass", "Arguments").
		SetAttr("testname", "User Defined Variables").
		SetAttr("enabled", "true")
	args.Add(dom.New("collectionProp").SetAttr("name", "Arguments.arguments"))
	plan.Add(args)

	return plan
}

// newThreadGroup builds a thread group. A duration enables the scheduler
// with unlimited loops so the duration bounds execution; otherwise loops
// sets the iteration count (nil means 1, zero or negative means infinite).
func newThreadGroup(testname string, threads, rampup int, duration, loops *int) *dom.Element {
	group := testElement("ThreadGroup", "ThreadGroupGui", "ThreadGroup", testname)

	group.Add(stringProp("ThreadGroup.num_threads", fmt.Sprint(threads)))
	group.Add(stringProp("ThreadGroup.ramp_time", fmt.Sprint(rampup)))

	loopCount := "1"
	switch {
	case duration != nil:
		loopCount = "-1"
	case loops != nil && *loops <= 0:
		loopCount = "-1"
	case loops != nil:
		loopCount = fmt.Sprint(*loops)
	}

	if duration != nil {
		group.Add(stringProp("ThreadGroup.duration", fmt.Sprint(*duration)))
		group.Add(stringProp("ThreadGroup.delay", "0"))
		group.Add(boolProp("ThreadGroup.scheduler", true))
	} else {
		group.Add(stringProp("ThreadGroup.duration", ""))
		group.Add(stringProp("ThreadGroup.delay", ""))
		group.Add(boolProp("ThreadGroup.scheduler", false))
	}

	controller := dom.New("elementProp").
		SetAttr("name", "ThreadGroup.main_controller").
		SetAttr("elementType", "LoopController").
		SetAttr("guiclass", "LoopControlPanel").
		SetAttr("testclass", "LoopController").
		SetAttr("testname", "Loop Controller").
		SetAttr("enabled", "true")
	controller.Add(stringProp("LoopController.loops", loopCount))
	controller.Add(boolProp("LoopController.continue_forever", false))
	group.Add(controller)

	return group
}

// newHTTPDefaults centralizes domain/port/protocol so samplers can leave
// their own connection fields empty and stay re-targetable.
func newHTTPDefaults(domain, port, protocol string) *dom.Element {
	config := testElement("ConfigTestElement", "HttpDefaultsGui", "ConfigTestElement", "HTTP Request Defaults")
	config.Add(emptyArgumentsProp())
	config.Add(stringProp("HTTPSampler.domain", domain))
	config.Add(stringProp("HTTPSampler.port", port))
	config.Add(stringProp("HTTPSampler.protocol", protocol))
	return config
}

// newCSVDataSetConfig feeds CSV rows into test variables, one row per
// iteration, recycling at EOF.
func newCSVDataSetConfig(filename string, variables []string) *dom.Element {
	config := testElement("CSVDataSet", "TestBeanGUI", "CSVDataSet", "CSV Data Set Config")
	config.Add(stringProp("filename", filename))
	config.Add(stringProp("fileEncoding", "UTF-8"))
	config.Add(stringProp("variableNames", strings.Join(variables, ",")))
	config.Add(boolProp("ignoreFirstLine", true))
	config.Add(stringProp("delimiter", ","))
	config.Add(boolProp("quotedData", true))
	config.Add(boolProp("recycle", true))
	config.Add(boolProp("stopThread", false))
	config.Add(stringProp("shareMode", "shareMode.all"))
	return config
}

// emptyArgumentsProp is the empty HTTPsampler.Arguments element every
// sampler and the request defaults carry.
func emptyArgumentsProp() *dom.Element {
	args := dom.New("elementProp").
		SetAttr("name", "HTTPsampler.Arguments").
		SetAttr("elementType", "Arguments").
		SetAttr("guiclass", "HTTPArgumentsPanel").
		SetAttr("testclass", "Arguments").
		SetAttr("testname", "User Defined Variables").
		SetAttr("enabled", "true")
	args.Add(dom.New("collectionProp").SetAttr("name", "Arguments.arguments"))
	return args
}

// httpArgument builds one query argument entry.
func httpArgument(name, value string) *dom.Element {
	arg := dom.New("elementProp").
		SetAttr("name", name).
		SetAttr("elementType", "HTTPArgument")
	arg.Add(boolProp("HTTPArgument.always_encode", false))
	arg.Add(stringProp("Argument.name", name))
	arg.Add(stringProp("Argument.value", value))
	arg.Add(stringProp("Argument.metadata", "="))
	arg.Add(boolProp("HTTPArgument.use_equals", true))
	return arg
}

// bodyArguments wraps a raw request body so it posts as-is.
func bodyArguments(payloadJSON string) []*dom.Element {
	elem := dom.New("elementProp").
		SetAttr("name", "HTTPsampler.Arguments").
		SetAttr("elementType", "Arguments")
	coll := dom.New("collectionProp").SetAttr("name", "Arguments.arguments")
	arg := dom.New("elementProp").
		SetAttr("name", "").
		SetAttr("elementType", "HTTPArgument")
	arg.Add(boolProp("HTTPArgument.always_encode", false))
	arg.Add(stringProp("Argument.value", payloadJSON))
	arg.Add(stringProp("Argument.metadata", "="))
	coll.Add(arg)
	elem.Add(coll)

	return []*dom.Element{boolProp("HTTPSampler.postBodyRaw", true), elem}
}

type headerPair struct {
	name  string
	value string
}

func newHeaderManager(headers []headerPair) *dom.Element {
	manager := testElement("HeaderManager", "HeaderPanel", "HeaderManager", "HTTP Header Manager")
	coll := dom.New("collectionProp").SetAttr("name", "HeaderManager.headers")

	for _, h := range headers {
		entry := dom.New("elementProp").
			SetAttr("name", "").
			SetAttr("elementType", "Header")
		entry.Add(stringProp("Header.name", h.name))
		entry.Add(stringProp("Header.value", h.value))
		coll.Add(entry)
	}

	manager.Add(coll)
	return manager
}

func newUserDefinedVariables(variables map[string]interface{}) *dom.Element {
	udv := testElement("Arguments", "ArgumentsPanel", "Arguments", "User Defined Variables")
	coll := dom.New("collectionProp").SetAttr("name", "Arguments.arguments")

	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := dom.New("elementProp").
			SetAttr("name", name).
			SetAttr("elementType", "Argument")
		entry.Add(stringProp("Argument.name", name))
		entry.Add(stringProp("Argument.value", fmt.Sprint(variables[name])))
		entry.Add(stringProp("Argument.metadata", "="))
		coll.Add(entry)
	}

	udv.Add(coll)
	return udv
}

func newLoopController(testname string, count int) *dom.Element {
	controller := testElement("LoopController", "LoopControlPanel", "LoopController", testname)
	controller.Add(boolProp("LoopController.continue_forever", false))
	controller.Add(stringProp("LoopController.loops", fmt.Sprint(count)))
	return controller
}

func newWhileController(testname, groovyCondition string) *dom.Element {
	controller := testElement("WhileController", "WhileControllerGui", "WhileController", testname)
	controller.Add(stringProp("WhileController.condition", groovyCondition))
	return controller
}

func newTransactionController(testname string, includeTimers, generateParent bool) *dom.Element {
	controller := testElement("TransactionController", "TransactionControllerGui", "TransactionController", testname)
	controller.Add(boolProp("TransactionController.includeTimers", includeTimers))
	controller.Add(boolProp("TransactionController.parent", generateParent))
	return controller
}

func newConstantTimer(testname string, delayMS int) *dom.Element {
	timer := testElement("ConstantTimer", "ConstantTimerGui", "ConstantTimer", testname)
	timer.Add(stringProp("ConstantTimer.delay", fmt.Sprint(delayMS)))
	return timer
}

func newJSONExtractor(testname, refName, jsonPath, matchNumbers string) *dom.Element {
	extractor := testElement("JSONPostProcessor", "JSONPostProcessorGui", "JSONPostProcessor", testname)
	extractor.Add(stringProp("JSONPostProcessor.referenceNames", refName))
	extractor.Add(stringProp("JSONPostProcessor.jsonPathExprs", jsonPath))
	extractor.Add(stringProp("JSONPostProcessor.match_numbers", matchNumbers))
	extractor.Add(stringProp("JSONPostProcessor.defaultValues", "NOT_FOUND"))
	return extractor
}

// newResponseCodeAssertion asserts the response code equals the given value.
// The collection name carries JMeter's historical "Asserion" typo.
func newResponseCodeAssertion(testname, code string) *dom.Element {
	assertion := testElement("ResponseAssertion", "AssertionGui", "ResponseAssertion", testname)
	assertion.Add(stringProp("Assertion.test_field", "Assertion.response_code"))
	assertion.Add(intProp("Assertion.test_type", 8))

	coll := dom.New("collectionProp").SetAttr("name", "Asserion.test_strings")
	coll.Add(stringProp(fmt.Sprint(javaStringHash(code)), code))
	assertion.Add(coll)

	return assertion
}

// newBodyContainsAssertion asserts the response body contains every value
// (test type 16 = substring).
func newBodyContainsAssertion(values []string) *dom.Element {
	assertion := testElement("ResponseAssertion", "AssertionGui", "ResponseAssertion", "Assert Body Contains")
	assertion.Add(stringProp("Assertion.test_field", "Assertion.response_data"))
	assertion.Add(intProp("Assertion.test_type", 16))

	coll := dom.New("collectionProp").SetAttr("name", "Asserion.test_strings")
	for _, value := range values {
		coll.Add(stringProp(fmt.Sprint(javaStringHash(value)), value))
	}
	assertion.Add(coll)

	return assertion
}

func newJSONPathAssertion(field string, expected interface{}) *dom.Element {
	assertion := testElement("JSONPathAssertion", "JSONPathAssertionGui", "JSONPathAssertion", fmt.Sprintf("Assert %s", field))
	assertion.Add(stringProp("JSON_PATH", "$."+field))
	assertion.Add(stringProp("EXPECTED_VALUE", fmt.Sprint(expected)))
	assertion.Add(boolProp("JSONVALIDATION", true))
	assertion.Add(boolProp("EXPECT_NULL", false))
	assertion.Add(boolProp("INVERT", false))
	return assertion
}

// saveConfigFields is the sample-save configuration both listeners embed,
// in the order JMeter writes it.
var saveConfigFields = []headerPair{
	{"time", "true"},
	{"latency", "true"},
	{"timestamp", "true"},
	{"success", "true"},
	{"label", "true"},
	{"code", "true"},
	{"message", "true"},
	{"threadName", "true"},
	{"dataType", "true"},
	{"encoding", "false"},
	{"assertions", "true"},
	{"subresults", "true"},
	{"responseData", "false"},
	{"samplerData", "false"},
	{"xml", "false"},
	{"fieldNames", "true"},
	{"responseHeaders", "false"},
	{"requestHeaders", "false"},
	{"responseDataOnError", "false"},
	{"saveAssertionResultsFailureMessage", "true"},
	{"assertionsResultsToSave", "0"},
	{"bytes", "true"},
	{"sentBytes", "true"},
	{"url", "true"},
	{"threadCounts", "true"},
	{"idleTime", "true"},
	{"connectTime", "true"},
}

func newResultCollector(guiclass, testname string) *dom.Element {
	listener := testElement("ResultCollector", guiclass, "ResultCollector", testname)
	listener.Add(boolProp("ResultCollector.error_logging", false))

	objProp := dom.New("objProp")
	objProp.Add(dom.New("name").SetText("saveConfig"))
	value := dom.New("value").SetAttr("class", "SampleSaveConfiguration")
	for _, field := range saveConfigFields {
		value.Add(dom.New(field.name).SetText(field.value))
	}
	objProp.Add(value)
	listener.Add(objProp)

	return listener
}

func newViewResultsTreeListener() *dom.Element {
	return newResultCollector("ViewResultsFullVisualizer", "View Results Tree")
}

func newAggregateReportListener() *dom.Element {
	return newResultCollector("StatVisualizer", "Aggregate Report")
}
