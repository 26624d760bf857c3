package jmx

import (
	"fmt"
	"regexp"
	"strings"

	"jmxgen/internal/spec"
)

// Sampler naming: machine-generated operationIds (the long snake_case kind
// that Swagger codegen emits from the route) make unreadable test plans, so
// samplers fall back to a name derived from the last path segment. The
// detector is heuristic on purpose and kept separate so it can be swapped
// out without touching the generators.

var versionSegmentRe = regexp.MustCompile(`_v?\d+\.?\d*_`)

// isUglyOperationID reports whether an operationId looks machine-generated.
func isUglyOperationID(operationID, method string) bool {
	if len(operationID) <= 20 {
		return false
	}
	// Hand-written ids tend to be camelCase; generated ones are all lowercase.
	if strings.ToLower(operationID) != operationID || strings.ToUpper(operationID) == operationID {
		return false
	}
	if versionSegmentRe.MatchString(operationID) {
		return true
	}
	if strings.Count(operationID, "_")+strings.Count(operationID, "-") > 5 {
		return true
	}
	lowerMethod := strings.ToLower(method)
	if strings.HasPrefix(operationID, lowerMethod+"_") && len(operationID) > 35 {
		return true
	}
	if !strings.Contains(operationID, "_") && !strings.Contains(operationID, "-") &&
		strings.HasPrefix(operationID, lowerMethod) {
		return true
	}
	return false
}

// nameFromPath derives a sampler name from the last non-parameter path
// segment, e.g. "/api/user-profiles/{id}" -> "UserProfiles".
func nameFromPath(path, method string) string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" && !strings.HasPrefix(s, "{") {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return fmt.Sprintf("%s_request", strings.ToUpper(method))
	}

	last := strings.ReplaceAll(segments[len(segments)-1], "-", "_")
	words := strings.Split(last, "_")
	for i, word := range words {
		words[i] = capitalize(word)
	}
	name := strings.Join(words, "")
	if name == "" {
		return fmt.Sprintf("%s_request", strings.ToUpper(method))
	}
	return name
}

// capitalize upper-cases the first byte and lower-cases the rest.
func capitalize(word string) string {
	if word == "" {
		return ""
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

// readableOperationName picks the sampler testname for an endpoint: the
// operationId when it reads well, a path-derived name otherwise, with the
// summary appended when it adds information.
func readableOperationName(ep *spec.Endpoint) string {
	display := ep.OperationID
	if display == "" || isUglyOperationID(display, ep.Method) {
		display = nameFromPath(ep.Path, ep.Method)
	}
	if ep.Summary != "" && ep.Summary != display {
		return fmt.Sprintf("%s - %s", display, ep.Summary)
	}
	return display
}
