// Package project discovers API contracts in a project tree, snapshots them
// for change detection, and diffs contract versions so existing test plans
// can be updated instead of regenerated.
package project

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"jmxgen/internal/jmxerr"
	"jmxgen/internal/spec"
)

// Endpoint change types.
const (
	ChangeAdded    = "added"
	ChangeRemoved  = "removed"
	ChangeModified = "modified"
)

// NormalizedParameter is a parameter reduced to the fields that matter for
// change detection.
type NormalizedParameter struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Required bool   `json:"required"`
}

// NormalizedEndpoint is an endpoint reduced to a stable, comparable shape:
// volatile schema fields (examples, descriptions, defaults) are stripped and
// everything order-dependent is sorted, so equal contracts produce equal
// fingerprints across runs.
type NormalizedEndpoint struct {
	Path              string                `json:"path"`
	Method            string                `json:"method"`
	OperationID       string                `json:"operation_id"`
	RequestBody       bool                  `json:"request_body"`
	RequestBodySchema interface{}           `json:"request_body_schema"`
	Parameters        []NormalizedParameter `json:"parameters"`
	Responses         []string              `json:"responses"`
}

// Fingerprint returns the endpoint's SHA256 over its canonical JSON form.
func (e *NormalizedEndpoint) Fingerprint() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// FieldChange holds the before/after values of one changed field.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// ParameterRef identifies a parameter by name and location.
type ParameterRef struct {
	Name string `json:"name"`
	In   string `json:"in"`
}

// ParameterDiff describes a parameter whose definition changed.
type ParameterDiff struct {
	Name string              `json:"name"`
	In   string              `json:"in"`
	Old  NormalizedParameter `json:"old"`
	New  NormalizedParameter `json:"new"`
}

// ParameterChanges groups parameter additions, removals and modifications.
type ParameterChanges struct {
	Added    []ParameterRef  `json:"added"`
	Removed  []ParameterRef  `json:"removed"`
	Modified []ParameterDiff `json:"modified"`
}

// ResponseChanges lists response codes that appeared or disappeared.
type ResponseChanges struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// EndpointChanges details what changed on a modified endpoint. Nil fields
// did not change.
type EndpointChanges struct {
	RequestBody       *FieldChange      `json:"request_body,omitempty"`
	Parameters        *ParameterChanges `json:"parameters,omitempty"`
	Responses         *ResponseChanges  `json:"responses,omitempty"`
	OperationID       *FieldChange      `json:"operation_id,omitempty"`
	RequestBodySchema *FieldChange      `json:"request_body_schema,omitempty"`
}

// EndpointChange records one endpoint that was added, removed or modified
// between two contract versions.
type EndpointChange struct {
	Path        string           `json:"path"`
	Method      string           `json:"method"`
	OperationID string           `json:"operation_id"`
	ChangeType  string           `json:"change_type"`
	Changes     *EndpointChanges `json:"changes,omitempty"`
	Fingerprint string           `json:"fingerprint"`
}

// SpecDiff is the structured difference between two contract versions.
type SpecDiff struct {
	OldVersion        string           `json:"old_version"`
	NewVersion        string           `json:"new_version"`
	OldHash           string           `json:"old_hash"`
	NewHash           string           `json:"new_hash"`
	AddedEndpoints    []EndpointChange `json:"added_endpoints"`
	RemovedEndpoints  []EndpointChange `json:"removed_endpoints"`
	ModifiedEndpoints []EndpointChange `json:"modified_endpoints"`
	Timestamp         string           `json:"timestamp"`
}

// HasChanges reports whether the diff contains any endpoint change.
func (d *SpecDiff) HasChanges() bool {
	return len(d.AddedEndpoints)+len(d.RemovedEndpoints)+len(d.ModifiedEndpoints) > 0
}

// Summary returns change counts by type.
func (d *SpecDiff) Summary() map[string]int {
	return map[string]int{
		"added":    len(d.AddedEndpoints),
		"removed":  len(d.RemovedEndpoints),
		"modified": len(d.ModifiedEndpoints),
	}
}

// Comparator diffs two normalized endpoint sets.
type Comparator struct{}

// NewComparator creates a new instance of Comparator.
func NewComparator() *Comparator {
	return &Comparator{}
}

// Compare matches endpoints by (path, method) and classifies every endpoint
// as unchanged, added, removed or modified.
func (c *Comparator) Compare(oldVersion, newVersion string, oldEndpoints, newEndpoints []NormalizedEndpoint) (*SpecDiff, error) {
	oldIndex := indexEndpoints(oldEndpoints)
	newIndex := indexEndpoints(newEndpoints)

	diff := &SpecDiff{
		OldVersion:        oldVersion,
		NewVersion:        newVersion,
		OldHash:           EndpointsHash(oldEndpoints),
		NewHash:           EndpointsHash(newEndpoints),
		AddedEndpoints:    []EndpointChange{},
		RemovedEndpoints:  []EndpointChange{},
		ModifiedEndpoints: []EndpointChange{},
		Timestamp:         time.Now().Format(time.RFC3339),
	}

	for i := range newEndpoints {
		ep := &newEndpoints[i]
		old, ok := oldIndex[endpointKey(ep)]
		if !ok {
			diff.AddedEndpoints = append(diff.AddedEndpoints, EndpointChange{
				Path:        ep.Path,
				Method:      ep.Method,
				OperationID: ep.OperationID,
				ChangeType:  ChangeAdded,
				Fingerprint: ep.Fingerprint(),
			})
			continue
		}
		if changes := detectModifications(old, ep); changes != nil {
			diff.ModifiedEndpoints = append(diff.ModifiedEndpoints, EndpointChange{
				Path:        ep.Path,
				Method:      ep.Method,
				OperationID: ep.OperationID,
				ChangeType:  ChangeModified,
				Changes:     changes,
				Fingerprint: ep.Fingerprint(),
			})
		}
	}

	for i := range oldEndpoints {
		ep := &oldEndpoints[i]
		if _, ok := newIndex[endpointKey(ep)]; !ok {
			diff.RemovedEndpoints = append(diff.RemovedEndpoints, EndpointChange{
				Path:        ep.Path,
				Method:      ep.Method,
				OperationID: ep.OperationID,
				ChangeType:  ChangeRemoved,
				Fingerprint: ep.Fingerprint(),
			})
		}
	}

	return diff, nil
}

// CompareDocuments normalizes and diffs two parsed contracts.
func (c *Comparator) CompareDocuments(oldDoc, newDoc *spec.Document) (*SpecDiff, error) {
	if oldDoc == nil || newDoc == nil {
		return nil, fmt.Errorf("both documents are required for comparison: %w", jmxerr.ErrComparison)
	}
	return c.Compare(oldDoc.Version, newDoc.Version, NormalizeEndpoints(oldDoc), NormalizeEndpoints(newDoc))
}

func endpointKey(ep *NormalizedEndpoint) string {
	return ep.Method + " " + ep.Path
}

func indexEndpoints(endpoints []NormalizedEndpoint) map[string]*NormalizedEndpoint {
	index := make(map[string]*NormalizedEndpoint, len(endpoints))
	for i := range endpoints {
		index[endpointKey(&endpoints[i])] = &endpoints[i]
	}
	return index
}

// NormalizeEndpoints converts a parsed contract's endpoints to their
// comparable form.
func NormalizeEndpoints(doc *spec.Document) []NormalizedEndpoint {
	out := make([]NormalizedEndpoint, 0, len(doc.Endpoints))
	for i := range doc.Endpoints {
		out = append(out, NormalizeEndpoint(&doc.Endpoints[i]))
	}
	return out
}

// NormalizeEndpoint reduces one endpoint to its comparable form. The same
// normalization runs when snapshots are written and when fresh contracts are
// compared against them, so sensitive-field filtering never produces
// spurious diffs.
func NormalizeEndpoint(ep *spec.Endpoint) NormalizedEndpoint {
	params := make([]NormalizedParameter, 0, len(ep.Parameters))
	for _, p := range ep.Parameters {
		params = append(params, NormalizedParameter{Name: p.Name, In: p.In, Required: p.Required})
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].In != params[j].In {
			return params[i].In < params[j].In
		}
		return params[i].Name < params[j].Name
	})

	codes := make([]string, 0, len(ep.Responses))
	for code := range ep.Responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return NormalizedEndpoint{
		Path:              ep.Path,
		Method:            ep.Method,
		OperationID:       ep.OperationID,
		RequestBody:       ep.HasRequestBody,
		RequestBodySchema: normalizeSchema(schemaTree(ep)),
		Parameters:        params,
		Responses:         codes,
	}
}

// schemaTree converts the resolved request body schema to a plain JSON tree.
func schemaTree(ep *spec.Endpoint) interface{} {
	if ep.RequestBodySchema == nil {
		return nil
	}
	data, err := json.Marshal(ep.RequestBodySchema)
	if err != nil {
		return nil
	}
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil
	}
	return tree
}

// volatileSchemaFields do not affect request structure and are excluded from
// comparison; this also keeps example payloads out of committed snapshots.
var volatileSchemaFields = map[string]bool{
	"example":     true,
	"examples":    true,
	"description": true,
	"title":       true,
	"default":     true,
}

// normalizeSchema strips volatile and sensitive fields from a schema tree
// and sorts primitive lists (required, enum) for stable hashing.
func normalizeSchema(tree interface{}) interface{} {
	switch v := tree.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if volatileSchemaFields[key] || isSensitiveField(key) {
				continue
			}
			out[key] = normalizeSchema(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		allStrings := len(v) > 0
		for i, item := range v {
			out[i] = normalizeSchema(item)
			if _, ok := item.(string); !ok {
				allStrings = false
			}
		}
		if allStrings {
			sort.Slice(out, func(i, j int) bool { return out[i].(string) < out[j].(string) })
		}
		return out
	default:
		return tree
	}
}

// EndpointsHash returns a prefixed SHA256 over the canonical JSON of the
// normalized endpoint list, for quick whole-contract comparison.
func EndpointsHash(endpoints []NormalizedEndpoint) string {
	data, err := json.Marshal(endpoints)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}

func detectModifications(old, current *NormalizedEndpoint) *EndpointChanges {
	if old.Fingerprint() == current.Fingerprint() {
		return nil
	}

	changes := &EndpointChanges{}
	changed := false

	if old.RequestBody != current.RequestBody {
		changes.RequestBody = &FieldChange{Old: old.RequestBody, New: current.RequestBody}
		changed = true
	}
	if pc := compareParameters(old.Parameters, current.Parameters); pc != nil {
		changes.Parameters = pc
		changed = true
	}
	if rc := compareResponses(old.Responses, current.Responses); rc != nil {
		changes.Responses = rc
		changed = true
	}
	if old.OperationID != current.OperationID {
		changes.OperationID = &FieldChange{Old: old.OperationID, New: current.OperationID}
		changed = true
	}
	if !schemaEqual(old.RequestBodySchema, current.RequestBodySchema) {
		changes.RequestBodySchema = &FieldChange{Old: old.RequestBodySchema, New: current.RequestBodySchema}
		changed = true
	}

	if !changed {
		return nil
	}
	return changes
}

func schemaEqual(a, b interface{}) bool {
	da, errA := json.Marshal(a)
	db, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(da) == string(db)
}

func compareParameters(old, current []NormalizedParameter) *ParameterChanges {
	oldIndex := make(map[ParameterRef]NormalizedParameter, len(old))
	for _, p := range old {
		oldIndex[ParameterRef{p.Name, p.In}] = p
	}
	newIndex := make(map[ParameterRef]NormalizedParameter, len(current))
	for _, p := range current {
		newIndex[ParameterRef{p.Name, p.In}] = p
	}

	changes := &ParameterChanges{Added: []ParameterRef{}, Removed: []ParameterRef{}, Modified: []ParameterDiff{}}

	for _, p := range current {
		ref := ParameterRef{p.Name, p.In}
		oldParam, ok := oldIndex[ref]
		if !ok {
			changes.Added = append(changes.Added, ref)
			continue
		}
		if oldParam != p {
			changes.Modified = append(changes.Modified, ParameterDiff{Name: p.Name, In: p.In, Old: oldParam, New: p})
		}
	}
	for _, p := range old {
		ref := ParameterRef{p.Name, p.In}
		if _, ok := newIndex[ref]; !ok {
			changes.Removed = append(changes.Removed, ref)
		}
	}

	if len(changes.Added)+len(changes.Removed)+len(changes.Modified) == 0 {
		return nil
	}
	return changes
}

func compareResponses(old, current []string) *ResponseChanges {
	oldSet := make(map[string]bool, len(old))
	for _, code := range old {
		oldSet[code] = true
	}
	newSet := make(map[string]bool, len(current))
	for _, code := range current {
		newSet[code] = true
	}

	changes := &ResponseChanges{Added: []string{}, Removed: []string{}}
	for _, code := range current {
		if !oldSet[code] {
			changes.Added = append(changes.Added, code)
		}
	}
	for _, code := range old {
		if !newSet[code] {
			changes.Removed = append(changes.Removed, code)
		}
	}

	if len(changes.Added)+len(changes.Removed) == 0 {
		return nil
	}
	return changes
}
