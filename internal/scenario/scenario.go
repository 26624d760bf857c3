// Package scenario parses and validates step-DSL scenario files
// (pt_scenario.yaml) describing multi-step API flows.
package scenario

// Step kinds.
const (
	KindOperationID = "operation_id"
	KindMethodPath  = "method_path"
	KindThinkTime   = "think_time"
	KindLoopBlock   = "loop_block"
)

// Settings represents the execution settings of a scenario.
type Settings struct {
	Threads  int    // concurrent threads, default 1
	Rampup   int    // ramp-up seconds, default 0
	Loops    *int   // iterations per thread; nil=auto, 0 or -1=infinite
	Duration *int   // test duration in seconds
	BaseURL  string // overrides the base URL from the spec
}

// Capture represents a variable captured from a step response.
type Capture struct {
	VariableName string
	SourceField  string // response field to capture (mapped syntax)
	JSONPath     string // explicit JSONPath (explicit syntax)
	Match        string // "first", "all", or a 1-based index
}

// Assert represents the response assertions of a step.
type Assert struct {
	Status       int // expected HTTP status, 0 when unset
	Body         map[string]interface{}
	Headers      map[string]string
	BodyContains []string
}

// Loop represents step-level looping, either a fixed count or a while
// condition with a safety iteration limit.
type Loop struct {
	Count         int    // iterations, 0 when unset
	While         string // JSONPath condition, "" when unset
	MaxIterations int    // safety limit for while loops, default 100
	Interval      *int   // milliseconds between iterations
}

// FileUpload represents one file attached to a multipart upload step.
type FileUpload struct {
	Path     string
	Param    string
	MimeType string // auto-detected from the extension when empty
}

// Step represents a single step in the scenario.
type Step struct {
	Name        string
	Endpoint    string // operationId or "METHOD /path" as written
	Kind        string // operation_id, method_path, think_time or loop_block
	Method      string // method_path steps only
	Path        string // method_path steps only
	Enabled     bool
	Params      map[string]interface{}
	Headers     map[string]string
	Payload     interface{}
	Files       []FileUpload
	Captures    []Capture
	Assertions  *Assert
	Loop        *Loop
	ThinkTime   int    // milliseconds, think_time steps only
	NestedSteps []Step // loop_block steps only
}

// Scenario represents a parsed step-DSL document.
type Scenario struct {
	Name        string
	Description string
	Settings    Settings
	Variables   map[string]interface{}
	Steps       []Step
}

// IsEndpointStep reports whether the step calls an API endpoint.
func (s *Step) IsEndpointStep() bool {
	return s.Kind == KindOperationID || s.Kind == KindMethodPath
}
