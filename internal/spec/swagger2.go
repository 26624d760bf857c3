package spec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"jmxgen/internal/jmxerr"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
)

// parseSwagger2 decodes the document into the typed Swagger 2.0 model and
// extracts endpoints. basePath is prepended to every endpoint path but is
// never part of the base URL, because the target format keeps domain and
// path separate.
func (p *Parser) parseSwagger2(doc *Document) error {
	data, err := json.Marshal(doc.Raw)
	if err != nil {
		return fmt.Errorf("failed to re-encode spec: %w", err)
	}

	var t openapi2.T
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to parse Swagger doc: %v: %w", err, jmxerr.ErrInvalidSpec)
	}

	doc.BaseURL = baseURLFromSwagger(t.Host, t.Schemes)
	doc.PathPrefix = t.BasePath
	resolver := newDefinitionsResolver(t.Definitions)

	pathKeys := make([]string, 0, len(t.Paths))
	for path := range t.Paths {
		pathKeys = append(pathKeys, path)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		pathItem := t.Paths[path]
		if pathItem == nil {
			continue
		}
		fullPath := t.BasePath + path

		for _, method := range SupportedMethods {
			operation := swaggerOperation(pathItem, method)
			if operation == nil {
				continue
			}

			endpoint := Endpoint{
				Path:        fullPath,
				Method:      strings.ToUpper(method),
				OperationID: operation.OperationID,
				Summary:     operation.Summary,
				Description: operation.Description,
				Responses:   make(map[string]Response),
			}
			if endpoint.OperationID == "" {
				endpoint.OperationID = defaultOperationID(method, path)
			}

			// Body and formData parameters describe the request body;
			// everything else is a regular parameter.
			for _, param := range operation.Parameters {
				if param == nil {
					continue
				}
				switch param.In {
				case "body":
					endpoint.HasRequestBody = true
					endpoint.RequestBodyContentType = "application/json"
					if param.Schema != nil {
						endpoint.RequestBodySchema = resolver.resolve(openapi2conv.ToV3SchemaRef(param.Schema), 0)
					}
				case "formData":
					if !endpoint.HasRequestBody {
						endpoint.HasRequestBody = true
						endpoint.RequestBodyContentType = "application/x-www-form-urlencoded"
					}
				default:
					endpoint.Parameters = append(endpoint.Parameters, Parameter{
						Name:     param.Name,
						In:       param.In,
						Required: param.Required,
						Default:  param.Default,
					})
				}
			}

			for statusCode, response := range operation.Responses {
				if response == nil {
					continue
				}
				resp := Response{Description: response.Description}
				if response.Schema != nil {
					resp.Schema = resolver.resolve(openapi2conv.ToV3SchemaRef(response.Schema), 0)
				}
				endpoint.Responses[statusCode] = resp

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

// swaggerOperation returns the operation for the method, or nil.
func swaggerOperation(pathItem *openapi2.PathItem, method string) *openapi2.Operation {
	switch method {
	case "get":
		return pathItem.Get
	case "post":
		return pathItem.Post
	case "put":
		return pathItem.Put
	case "delete":
		return pathItem.Delete
	case "patch":
		return pathItem.Patch
	}
	return nil
}

// baseURLFromSwagger builds scheme://host from the Swagger 2.0 fields,
// preferring https when declared.
func baseURLFromSwagger(host string, schemes []string) string {
	if host == "" {
		host = "localhost:8080"
	}
	scheme := "http"
	if len(schemes) > 0 {
		scheme = schemes[0]
		for _, s := range schemes {
			if s == "https" {
				scheme = "https"
				break
			}
		}
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}
