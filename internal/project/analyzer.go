package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"jmxgen/internal/spec"
)

// Spec files are searched for by these names, in priority order.
var commonSpecNames = []string{
	"openapi.yaml",
	"openapi.yml",
	"openapi.json",
	"swagger.yaml",
	"swagger.yml",
	"swagger.json",
	"api-spec.yaml",
	"api.yaml",
}

var commonScenarioNames = []string{
	"pt_scenario.yaml",
	"pt_scenario.yml",
}

// maxSearchDepth bounds the directory walk so large monorepos stay cheap to scan.
const maxSearchDepth = 3

var skipDirNames = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	"env":          true,
	".git":         true,
}

// SpecCandidate is one API contract file discovered in a project tree.
type SpecCandidate struct {
	Path   string `json:"spec_path"`
	Format string `json:"format"`
	InRoot bool   `json:"in_root"`
}

// EndpointInfo is the condensed endpoint listing included in an Analysis.
type EndpointInfo struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	OperationID string `json:"operation_id"`
	Summary     string `json:"summary,omitempty"`
}

// Analysis is the result of inspecting a project directory for API contracts.
type Analysis struct {
	SpecFound          bool            `json:"openapi_spec_found"`
	Message            string          `json:"message,omitempty"`
	SpecPath           string          `json:"spec_path,omitempty"`
	SpecFormat         string          `json:"spec_format,omitempty"`
	APITitle           string          `json:"api_title,omitempty"`
	RecommendedJMXName string          `json:"recommended_jmx_name,omitempty"`
	EndpointsCount     int             `json:"endpoints_count"`
	Endpoints          []EndpointInfo  `json:"endpoints,omitempty"`
	BaseURL            string          `json:"base_url,omitempty"`
	ScenarioPath       string          `json:"scenario_path,omitempty"`
	AvailableSpecs     []SpecCandidate `json:"available_specs"`
	MultipleSpecsFound bool            `json:"multiple_specs_found"`
	ChangesDetected    bool            `json:"changes_detected"`
	SpecDiff           *SpecDiff       `json:"spec_diff,omitempty"`
	SnapshotExists     bool            `json:"snapshot_exists"`
	SnapshotPath       string          `json:"snapshot_path,omitempty"`
}

// Analyzer locates API contracts and scenario files inside a project directory.
type Analyzer struct {
	parser *spec.Parser
}

// NewAnalyzer creates a new instance of Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{parser: spec.NewParser()}
}

// FindAllSpecs returns every candidate contract file under projectPath,
// ordered so that the most likely primary spec comes first.
func (a *Analyzer) FindAllSpecs(projectPath string) []SpecCandidate {
	var candidates []SpecCandidate
	seen := make(map[string]bool)

	add := func(path string, inRoot bool) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		candidates = append(candidates, SpecCandidate{
			Path:   abs,
			Format: specFormat(abs),
			InRoot: inRoot,
		})
	}

	for _, name := range commonSpecNames {
		path := filepath.Join(projectPath, name)
		if fileExists(path) {
			add(path, true)
		}
	}

	walkForSpecs(projectPath, 0, func(path string) { add(path, false) })

	// Root files beat nested ones, names mentioning "openapi" beat the
	// rest, and YAML beats JSON. The sort is stable so the name priority
	// established above survives as the final tie-breaker.
	sort.SliceStable(candidates, func(i, j int) bool {
		return specRank(candidates[i]) < specRank(candidates[j])
	})
	return candidates
}

func specRank(c SpecCandidate) int {
	rank := 0
	if !c.InRoot {
		rank += 4
	}
	if !strings.Contains(strings.ToLower(c.Path), "openapi") {
		rank += 2
	}
	if c.Format == "json" {
		rank++
	}
	return rank
}

func walkForSpecs(dir string, depth int, found func(path string)) {
	if depth >= maxSearchDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || skipDirNames[name] {
			continue
		}
		sub := filepath.Join(dir, name)
		for _, specName := range commonSpecNames {
			path := filepath.Join(sub, specName)
			if fileExists(path) {
				found(path)
			}
		}
		walkForSpecs(sub, depth+1, found)
	}
}

// FindSpec returns the highest-priority contract file, or false when the
// project has none.
func (a *Analyzer) FindSpec(projectPath string) (SpecCandidate, bool) {
	specs := a.FindAllSpecs(projectPath)
	if len(specs) == 0 {
		return SpecCandidate{}, false
	}
	return specs[0], true
}

// FindScenarioFile returns the first scenario definition found in the project
// root, checking the conventional names before falling back to a glob.
func (a *Analyzer) FindScenarioFile(projectPath string) (string, bool) {
	for _, name := range commonScenarioNames {
		path := filepath.Join(projectPath, name)
		if fileExists(path) {
			return path, true
		}
	}
	for _, pattern := range []string{"*_scenario.yaml", "*_scenario.yml"} {
		matches, err := filepath.Glob(filepath.Join(projectPath, pattern))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[0], true
	}
	return "", false
}

// AnalyzeProject inspects projectPath and reports what it found. Discovery
// problems are reported inside the Analysis rather than as errors so callers
// can always surface the result to the user.
func (a *Analyzer) AnalyzeProject(projectPath string) *Analysis {
	analysis, _ := a.analyze(projectPath)
	return analysis
}

func (a *Analyzer) analyze(projectPath string) (*Analysis, *spec.Document) {
	specs := a.FindAllSpecs(projectPath)
	analysis := &Analysis{
		AvailableSpecs:     specs,
		MultipleSpecsFound: len(specs) > 1,
	}
	if len(specs) == 0 {
		analysis.Message = fmt.Sprintf("No OpenAPI specification found in %s", projectPath)
		return analysis, nil
	}

	best := specs[0]
	doc, err := a.parser.Parse(best.Path)
	if err != nil {
		analysis.Message = fmt.Sprintf("Error analyzing spec at %s: %v", best.Path, err)
		return analysis, nil
	}

	title := doc.Title
	if title == "" {
		title = "Unknown API"
	}

	analysis.SpecFound = true
	analysis.SpecPath = best.Path
	analysis.SpecFormat = best.Format
	analysis.APITitle = title
	analysis.RecommendedJMXName = recommendedJMXName(title)
	analysis.EndpointsCount = len(doc.Endpoints)
	analysis.Endpoints = endpointInfos(doc)
	analysis.BaseURL = doc.BaseURL
	if scenarioPath, ok := a.FindScenarioFile(projectPath); ok {
		analysis.ScenarioPath = scenarioPath
	}
	return analysis, doc
}

// AnalyzeWithChangeDetection runs AnalyzeProject and, when a snapshot of the
// discovered spec exists, diffs the snapshot against the current contract.
func (a *Analyzer) AnalyzeWithChangeDetection(projectPath string) *Analysis {
	analysis, doc := a.analyze(projectPath)
	if !analysis.SpecFound || doc == nil {
		return analysis
	}

	// Snapshots live next to the spec they capture, not next to the
	// directory the analysis was started from.
	manager := NewSnapshotManager(filepath.Dir(analysis.SpecPath))
	snapshot, snapshotPath, err := manager.FindSnapshotForSpec(analysis.SpecPath)
	if err != nil || snapshot == nil {
		return analysis
	}

	analysis.SnapshotExists = true
	analysis.SnapshotPath = snapshotPath

	diff, err := NewComparator().Compare(snapshot.Spec.APIVersion, doc.Version, snapshot.Endpoints, NormalizeEndpoints(doc))
	if err != nil {
		return analysis
	}
	if diff.HasChanges() {
		analysis.ChangesDetected = true
		analysis.SpecDiff = diff
	}
	return analysis
}

func endpointInfos(doc *spec.Document) []EndpointInfo {
	infos := make([]EndpointInfo, 0, len(doc.Endpoints))
	for _, ep := range doc.Endpoints {
		infos = append(infos, EndpointInfo{
			Path:        ep.Path,
			Method:      ep.Method,
			OperationID: ep.OperationID,
			Summary:     ep.Summary,
		})
	}
	return infos
}

// recommendedJMXName derives an output file name from the API title, for
// example "Pet Store API" becomes "pet-store-api-test.jmx".
func recommendedJMXName(title string) string {
	name := strings.ToLower(title)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, ".", "-")

	var b strings.Builder
	for _, r := range name {
		if r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	name = b.String()
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	name = strings.Trim(name, "-")
	if name == "" {
		return "test.jmx"
	}
	return name + "-test.jmx"
}

func specFormat(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return "json"
	}
	return "yaml"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
