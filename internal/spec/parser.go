package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"jmxgen/internal/jmxerr"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Supported Swagger versions.
var supportedSwaggerVersions = []string{"2.0"}

// Parser parses OpenAPI 3.x and Swagger 2.0 specifications.
type Parser struct{}

// NewParser creates a new instance of Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads and parses an API contract file in YAML or JSON format,
// validates the declared version and extracts metadata and endpoints.
// Parsing the same file twice produces an equal Document.
func (p *Parser) Parse(specPath string) (*Document, error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file %s: %w", specPath, err)
	}

	raw, err := decodeDocument(specPath, data)
	if err != nil {
		return nil, err
	}

	return p.ParseData(raw, specPath)
}

// ParseData parses an already-decoded contract document. specPath is used
// only in error messages.
func (p *Parser) ParseData(raw map[string]interface{}, specPath string) (*Document, error) {
	dialect, version, err := detectDialect(raw, specPath)
	if err != nil {
		return nil, err
	}

	if _, ok := raw["info"]; !ok {
		return nil, fmt.Errorf("missing required field 'info' in spec %s: %w", specPath, jmxerr.ErrInvalidSpec)
	}
	if _, ok := raw["paths"]; !ok {
		return nil, fmt.Errorf("missing required field 'paths' in spec %s: %w", specPath, jmxerr.ErrInvalidSpec)
	}

	// info.version may have been parsed as a YAML number; the typed
	// loaders require a string.
	stringifyInfoVersion(raw)

	doc := &Document{
		Dialect:        dialect,
		DialectVersion: version,
		Raw:            raw,
	}
	if info, ok := raw["info"].(map[string]interface{}); ok {
		doc.Title = stringOr(info["title"], "Untitled API")
		doc.Version = stringOr(info["version"], "1.0.0")
	}

	switch dialect {
	case "openapi":
		if err := p.parseOpenAPI3(doc); err != nil {
			return nil, err
		}
	case "swagger":
		if err := p.parseSwagger2(doc); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// decodeDocument decodes spec file bytes based on the file extension.
func decodeDocument(specPath string, data []byte) (map[string]interface{}, error) {
	ext := strings.ToLower(filepath.Ext(specPath))
	switch ext {
	case ".yaml", ".yml":
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse YAML in %s: %w", specPath, err)
		}
		raw, ok := normalizeYAML(v).(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("spec root must be a mapping in %s: %w", specPath, jmxerr.ErrInvalidSpec)
		}
		return raw, nil
	case ".json":
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON in %s: %w", specPath, err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported file format %q, expected .yaml, .yml, or .json: %w", ext, jmxerr.ErrInvalidSpec)
	}
}

// detectDialect determines whether the document is OpenAPI 3.x or Swagger 2.0.
func detectDialect(raw map[string]interface{}, specPath string) (dialect, version string, err error) {
	if v, ok := raw["openapi"]; ok {
		version = fmt.Sprint(v)
		if !isSupportedOpenAPIVersion(version) {
			return "", "", fmt.Errorf("unsupported OpenAPI version %q, supported versions: 3.x: %w",
				version, jmxerr.ErrUnsupportedVersion)
		}
		return "openapi", version, nil
	}
	if v, ok := raw["swagger"]; ok {
		version = fmt.Sprint(v)
		for _, supported := range supportedSwaggerVersions {
			if version == supported {
				return "swagger", version, nil
			}
		}
		return "", "", fmt.Errorf("unsupported Swagger version %q, supported versions: %s: %w",
			version, strings.Join(supportedSwaggerVersions, ", "), jmxerr.ErrUnsupportedVersion)
	}
	return "", "", fmt.Errorf("missing version field in spec %s, expected 'openapi' (3.x) or 'swagger' (2.0): %w",
		specPath, jmxerr.ErrInvalidSpec)
}

// isSupportedOpenAPIVersion accepts any 3.x version (3.0.0 through 3.1.x).
func isSupportedOpenAPIVersion(version string) bool {
	parts := strings.Split(version, ".")
	if len(parts) < 1 {
		return false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	return major == 3
}

// parseOpenAPI3 loads the document with kin-openapi and extracts endpoints.
func (p *Parser) parseOpenAPI3(doc *Document) error {
	data, err := json.Marshal(doc.Raw)
	if err != nil {
		return fmt.Errorf("failed to re-encode spec: %w", err)
	}

	loader := openapi3.NewLoader()
	t, err := loader.LoadFromData(data)
	if err != nil {
		return fmt.Errorf("failed to parse OpenAPI doc: %v: %w", err, jmxerr.ErrInvalidSpec)
	}

	doc.BaseURL = baseURLFromServers(t.Servers)
	resolver := newComponentsResolver(t)

	paths := t.Paths.Map()
	pathKeys := make([]string, 0, len(paths))
	for path := range paths {
		pathKeys = append(pathKeys, path)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		pathItem := paths[path]
		operations := pathItem.Operations()

		for _, method := range SupportedMethods {
			operation, ok := operations[strings.ToUpper(method)]
			if !ok || operation == nil {
				continue
			}

			endpoint := Endpoint{
				Path:        path,
				Method:      strings.ToUpper(method),
				OperationID: operation.OperationID,
				Summary:     operation.Summary,
				Description: operation.Description,
				Responses:   make(map[string]Response),
			}
			if endpoint.OperationID == "" {
				endpoint.OperationID = defaultOperationID(method, path)
			}

			// Extract parameters
			for _, paramRef := range operation.Parameters {
				if paramRef == nil || paramRef.Value == nil {
					continue
				}
				param := paramRef.Value
				var schema *openapi3.Schema
				var def interface{}
				if param.Schema != nil {
					schema = resolver.resolve(param.Schema, 0)
					if schema != nil {
						def = schema.Default
					}
				}
				endpoint.Parameters = append(endpoint.Parameters, Parameter{
					Name:     param.Name,
					In:       param.In,
					Required: param.Required,
					Example:  param.Example,
					Default:  def,
					Schema:   schema,
				})
			}

			// Extract request body if present
			if operation.RequestBody != nil && operation.RequestBody.Value != nil {
				endpoint.HasRequestBody = true
				contentType, mediaType := preferredContent(operation.RequestBody.Value.Content)
				endpoint.RequestBodyContentType = contentType
				if mediaType != nil && mediaType.Schema != nil {
					endpoint.RequestBodySchema = resolver.resolve(mediaType.Schema, 0)
				}
			}

			// Extract responses and the declared 2xx codes
			responses := operation.Responses.Map()
			for statusCode, responseRef := range responses {
				if responseRef == nil || responseRef.Value == nil {
					continue
				}
				response := responseRef.Value

				description := ""
				if response.Description != nil {
					description = *response.Description
				}

				var schema *openapi3.Schema
				if _, mediaType := preferredContent(response.Content); mediaType != nil && mediaType.Schema != nil {
					schema = resolver.resolve(mediaType.Schema, 0)
				}
				endpoint.Responses[statusCode] = Response{Description: description, Schema: schema}

				if code, err := strconv.Atoi(statusCode); err == nil && code >= 200 && code < 300 {
					endpoint.ExpectedResponseCodes = append(endpoint.ExpectedResponseCodes, statusCode)
				}
			}
			sort.Strings(endpoint.ExpectedResponseCodes)

			doc.Endpoints = append(doc.Endpoints, endpoint)
		}
	}

	return nil
}

// baseURLFromServers selects the base URL from the servers array, preferring
// a localhost server, then the first declared server.
func baseURLFromServers(servers openapi3.Servers) string {
	if len(servers) == 0 {
		return "http://localhost:8080"
	}
	for _, server := range servers {
		if server != nil && strings.Contains(strings.ToLower(server.URL), "localhost") {
			return server.URL
		}
	}
	if servers[0] != nil && servers[0].URL != "" {
		return servers[0].URL
	}
	return "http://localhost:8080"
}

// preferredContent picks a media type, preferring application/json, then
// */*, then the first content type in sorted order.
func preferredContent(content openapi3.Content) (string, *openapi3.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	for _, contentType := range []string{"application/json", "*/*"} {
		if mediaType, ok := content[contentType]; ok {
			return contentType, mediaType
		}
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], content[keys[0]]
}

// defaultOperationID derives a stable operationId from method and path,
// e.g. GET /users/{id} becomes get_users_{id}.
func defaultOperationID(method, path string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(method), strings.Trim(strings.ReplaceAll(path, "/", "_"), "_"))
}

// stringifyInfoVersion rewrites info.version to a string when YAML parsed it
// as a number, so the typed loaders accept it.
func stringifyInfoVersion(raw map[string]interface{}) {
	info, ok := raw["info"].(map[string]interface{})
	if !ok {
		return
	}
	if v, ok := info["version"]; ok {
		if _, isString := v.(string); !isString {
			info["version"] = fmt.Sprint(v)
		}
	}
}

// stringOr returns v as a string, or fallback when v is nil or empty.
func stringOr(v interface{}, fallback string) string {
	if v == nil {
		return fallback
	}
	s := fmt.Sprint(v)
	if s == "" {
		return fallback
	}
	return s
}
