package jmxerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the generation pipeline. Call sites wrap these with
// fmt.Errorf("...: %w", Err...) so callers can classify failures with
// errors.Is while keeping the human-readable detail.
var (
	ErrInvalidSpec        = errors.New("invalid spec")
	ErrUnsupportedVersion = errors.New("unsupported spec version")
	ErrGeneration         = errors.New("jmx generation failed")
	ErrValidation         = errors.New("jmx validation failed")
	ErrComparison         = errors.New("spec comparison failed")
	ErrUpdate             = errors.New("jmx update failed")
	ErrParse              = errors.New("jmx parse failed")
	ErrBackup             = errors.New("jmx backup failed")
	ErrSnapshot           = errors.New("snapshot operation failed")
	ErrScenarioParse      = errors.New("scenario parse failed")
	ErrScenarioValidation = errors.New("scenario validation failed")
	ErrEndpointNotFound   = errors.New("endpoint not found")
	ErrInvalidEndpoint    = errors.New("invalid endpoint format")
	ErrUndefinedVariable  = errors.New("undefined variable")
	ErrAmbiguousPath      = errors.New("ambiguous path")
	ErrCorrelation        = errors.New("correlation failed")
)

// AmbiguousPathError reports a short endpoint path that matched more than
// one path in the spec. Candidates holds every matching full path.
type AmbiguousPathError struct {
	ShortPath  string
	Candidates []string
}

func (e *AmbiguousPathError) Error() string {
	return fmt.Sprintf("ambiguous path %q matches multiple endpoints: %s. Use a longer path to disambiguate",
		e.ShortPath, strings.Join(e.Candidates, ", "))
}

// Is reports a match against ErrAmbiguousPath so errors.Is works on the
// wrapped sentinel.
func (e *AmbiguousPathError) Is(target error) bool { return target == ErrAmbiguousPath }

// typeNames maps sentinels to the stable identifiers surfaced in MCP
// responses and diagnostics.
var typeNames = []struct {
	err  error
	name string
}{
	{ErrUnsupportedVersion, "UnsupportedVersion"},
	{ErrInvalidSpec, "InvalidSpec"},
	{ErrUndefinedVariable, "UndefinedVariable"},
	{ErrAmbiguousPath, "AmbiguousPath"},
	{ErrEndpointNotFound, "EndpointNotFound"},
	{ErrInvalidEndpoint, "InvalidEndpointFormat"},
	{ErrScenarioValidation, "ScenarioValidation"},
	{ErrScenarioParse, "ScenarioParse"},
	{ErrCorrelation, "Correlation"},
	{ErrBackup, "JMXBackup"},
	{ErrParse, "JMXParse"},
	{ErrUpdate, "JMXUpdate"},
	{ErrComparison, "SpecComparison"},
	{ErrSnapshot, "Snapshot"},
	{ErrValidation, "JMXValidation"},
	{ErrGeneration, "JMXGeneration"},
}

// TypeName returns the stable identifier for the first matching sentinel in
// err's chain, or "Internal" when none matches.
func TypeName(err error) string {
	for _, t := range typeNames {
		if errors.Is(err, t.err) {
			return t.name
		}
	}
	return "Internal"
}
