package spec

import (
	"fmt"
	"sort"
	"strings"

	"jmxgen/internal/jmxerr"

	"github.com/getkin/kin-openapi/openapi3"
)

// Supported HTTP methods, in the order endpoints are extracted per path.
var SupportedMethods = []string{"get", "post", "put", "delete", "patch"}

// Endpoint represents one (path, method) operation extracted from the API contract.
type Endpoint struct {
	Path                   string // raw path with {param} placeholders, basePath already prepended for Swagger 2.0
	Method                 string // uppercase
	OperationID            string
	Summary                string
	Description            string
	Parameters             []Parameter
	HasRequestBody         bool
	RequestBodyContentType string
	RequestBodySchema      *openapi3.Schema  // fully resolved, nil when no schema is declared
	ExpectedResponseCodes  []string          // declared 2xx codes only, sorted; empty means none declared
	Responses              map[string]Response
}

// Parameter represents a path, query or header parameter of an endpoint.
type Parameter struct {
	Name     string
	In       string
	Required bool
	Example  interface{}
	Default  interface{}
	Schema   *openapi3.Schema
}

// Response represents a declared response with its resolved body schema.
type Response struct {
	Description string
	Schema      *openapi3.Schema
}

// ResolvedPath is the result of resolving a shortened endpoint path.
type ResolvedPath struct {
	FullPath  string
	Method    string
	MatchType string // "exact" or "suffix"
}

// Document is the parsed API contract: metadata plus the endpoint table.
// It is immutable after Parse and owned by the caller for one compilation.
type Document struct {
	Title          string
	Version        string
	BaseURL        string
	Dialect        string // "openapi" or "swagger"
	DialectVersion string
	PathPrefix     string // Swagger 2.0 basePath, already applied to endpoint paths
	Endpoints      []Endpoint
	Raw            map[string]interface{} // normalized document, used for snapshots and diffs
}

// EndpointByOperationID returns the endpoint with the given operationId.
func (d *Document) EndpointByOperationID(operationID string) (*Endpoint, bool) {
	for i := range d.Endpoints {
		if d.Endpoints[i].OperationID == operationID {
			return &d.Endpoints[i], true
		}
	}
	return nil, false
}

// EndpointByMethodPath returns the endpoint matching the method and path.
func (d *Document) EndpointByMethodPath(method, path string) (*Endpoint, bool) {
	method = strings.ToUpper(method)
	for i := range d.Endpoints {
		if d.Endpoints[i].Method == method && d.Endpoints[i].Path == path {
			return &d.Endpoints[i], true
		}
	}
	return nil, false
}

// OperationIDs returns every operationId in the document.
func (d *Document) OperationIDs() []string {
	ids := make([]string, 0, len(d.Endpoints))
	for i := range d.Endpoints {
		ids = append(ids, d.Endpoints[i].OperationID)
	}
	return ids
}

// PathMethods returns every path mapped to its supported methods.
func (d *Document) PathMethods() map[string][]string {
	result := make(map[string][]string)
	for i := range d.Endpoints {
		e := &d.Endpoints[i]
		result[e.Path] = append(result[e.Path], e.Method)
	}
	return result
}

// ResponseSchema returns the resolved response body schema for the endpoint,
// trying the requested status code first, then 201, 200 and default.
func (e *Endpoint) ResponseSchema(statusCode string) *openapi3.Schema {
	if statusCode == "" {
		statusCode = "200"
	}
	for _, code := range []string{statusCode, "201", "200", "default"} {
		if resp, ok := e.Responses[code]; ok && resp.Schema != nil {
			return resp.Schema
		}
	}
	return nil
}

// PathParameters returns the names of the declared path parameters.
func (e *Endpoint) PathParameters() []string {
	var names []string
	for _, p := range e.Parameters {
		if p.In == "path" {
			names = append(names, p.Name)
		}
	}
	return names
}

// ResolveShortPath resolves a shortened path like "/trigger" to the full
// path declared in the spec. Exact matches win; otherwise a unique suffix
// match is accepted and multiple matches fail with the candidate list.
func (d *Document) ResolveShortPath(method, shortPath string) (*ResolvedPath, error) {
	methodUpper := strings.ToUpper(method)
	if _, ok := d.EndpointByMethodPath(methodUpper, shortPath); ok {
		return &ResolvedPath{FullPath: shortPath, Method: methodUpper, MatchType: "exact"}, nil
	}

	matches := d.SuffixMatches(method, shortPath)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no endpoint found matching %s %s: %w", methodUpper, shortPath, jmxerr.ErrEndpointNotFound)
	}
	if len(matches) == 1 {
		return &ResolvedPath{FullPath: matches[0], Method: methodUpper, MatchType: "suffix"}, nil
	}
	return nil, &jmxerr.AmbiguousPathError{ShortPath: shortPath, Candidates: matches}
}

// SuffixMatches returns every declared path for the method that equals or
// ends with the given suffix, sorted for stable output.
func (d *Document) SuffixMatches(method, suffix string) []string {
	methodUpper := strings.ToUpper(method)
	var matches []string
	for i := range d.Endpoints {
		e := &d.Endpoints[i]
		if e.Method != methodUpper {
			continue
		}
		if e.Path == suffix || strings.HasSuffix(e.Path, suffix) {
			matches = append(matches, e.Path)
		}
	}
	sort.Strings(matches)
	return matches
}
