package jmx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jmxgen/internal/jmx/dom"
	"jmxgen/internal/jmxerr"
	"jmxgen/internal/project"
	"jmxgen/internal/spec"
)

// UpdateResult summarizes the changes applied to an existing JMX file.
type UpdateResult struct {
	Success        bool           `json:"success"`
	JMXPath        string         `json:"jmx_path"`
	BackupPath     string         `json:"backup_path"`
	ChangesApplied map[string]int `json:"changes_applied"` // added, disabled, updated
	Errors         []string       `json:"errors"`
	Warnings       []string       `json:"warnings"`
}

// Updater applies contract diffs to an existing JMX file in place: new
// endpoints get samplers, removed ones are disabled rather than deleted, and
// renamed operationIds are retitled. User customizations on untouched
// samplers survive because the plan is edited, never regenerated.
type Updater struct {
	snapshots *project.SnapshotManager
}

// NewUpdater creates a new instance of Updater rooted at projectPath, which
// determines where backups are written.
func NewUpdater(projectPath string) *Updater {
	return &Updater{snapshots: project.NewSnapshotManager(projectPath)}
}

// Update backs up the JMX file, applies every change in diff, and writes the
// plan back. On an unexpected failure the backup is restored and an error
// returned; per-endpoint problems are collected into the result instead.
func (u *Updater) Update(jmxPath string, diff *project.SpecDiff, doc *spec.Document) (*UpdateResult, error) {
	result := &UpdateResult{
		JMXPath:        jmxPath,
		ChangesApplied: map[string]int{"added": 0, "disabled": 0, "updated": 0},
		Errors:         []string{},
		Warnings:       []string{},
	}

	backupPath, err := u.createBackup(jmxPath)
	if err != nil {
		return nil, err
	}
	result.BackupPath = backupPath

	root, err := parsePlan(jmxPath)
	if err != nil {
		return nil, err
	}

	index := samplerIndex(root, &result.Warnings)

	groupHash := threadGroupHashTree(root)
	if groupHash == nil {
		return nil, fmt.Errorf("no ThreadGroup hashTree found in JMX file: %w", jmxerr.ErrUpdate)
	}

	gen := &Generator{doc: doc}
	for _, change := range diff.AddedEndpoints {
		ep, ok := doc.EndpointByMethodPath(change.Method, change.Path)
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Added endpoint %s %s not found in current spec, skipping", change.Method, change.Path))
			continue
		}
		sampler, err := gen.buildSampler(ep)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Failed to add %s %s: %v", change.Method, change.Path, err))
			continue
		}
		samplerHash := hashTree()
		for _, code := range expectedCodes(ep) {
			samplerHash.Add(newResponseCodeAssertion(fmt.Sprintf("Response Code %s", code), code), hashTree())
		}
		groupHash.Add(sampler, samplerHash)
		result.ChangesApplied["added"]++
	}

	for _, change := range diff.RemovedEndpoints {
		sampler, ok := index[samplerKey(change.Path, change.Method)]
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Could not find sampler for removed endpoint: %s %s", change.Method, change.Path))
			continue
		}
		disableSampler(sampler)
		result.ChangesApplied["disabled"]++
	}

	for _, change := range diff.ModifiedEndpoints {
		sampler, ok := index[samplerKey(change.Path, change.Method)]
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Could not find sampler for modified endpoint: %s %s", change.Method, change.Path))
			continue
		}
		retitleSampler(sampler, change)
		result.ChangesApplied["updated"]++
	}

	if _, err := writePlan(jmxPath, root); err != nil {
		if restoreErr := copyFile(backupPath, jmxPath); restoreErr != nil {
			return nil, fmt.Errorf("update failed and backup restore failed: %v (restore: %v): %w",
				err, restoreErr, jmxerr.ErrUpdate)
		}
		return nil, fmt.Errorf("update failed, restored from backup: %v: %w", err, jmxerr.ErrUpdate)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// parsePlan reads and parses a JMX file, checking the root element.
func parsePlan(jmxPath string) (*dom.Element, error) {
	data, err := os.ReadFile(jmxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("JMX file not found: %s: %w", jmxPath, jmxerr.ErrParse)
		}
		return nil, fmt.Errorf("failed to read JMX file: %v: %w", err, jmxerr.ErrParse)
	}
	root, err := dom.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JMX file: %v: %w", err, jmxerr.ErrParse)
	}
	if root.Tag != "jmeterTestPlan" {
		return nil, fmt.Errorf("invalid JMX file: root element is '%s', expected 'jmeterTestPlan': %w",
			root.Tag, jmxerr.ErrParse)
	}
	return root, nil
}

func (u *Updater) createBackup(jmxPath string) (string, error) {
	if err := os.MkdirAll(u.snapshots.BackupDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %v: %w", err, jmxerr.ErrBackup)
	}

	base := filepath.Base(jmxPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	timestamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(u.snapshots.BackupDir(), fmt.Sprintf("%s.jmx.backup.%s", stem, timestamp))

	if err := copyFile(jmxPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to create backup: %v: %w", err, jmxerr.ErrBackup)
	}
	if err := u.snapshots.RotateBackups(stem); err != nil {
		return "", err
	}
	return backupPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func samplerKey(path, method string) string {
	return strings.ToUpper(method) + " " + path
}

// samplerIndex maps (method, path) to sampler elements. Samplers without
// both properties, and duplicates, produce warnings.
func samplerIndex(root *dom.Element, warnings *[]string) map[string]*dom.Element {
	index := make(map[string]*dom.Element)
	for _, sampler := range root.FindAll("HTTPSamplerProxy") {
		path, okPath := sampler.Prop("stringProp", "HTTPSampler.path")
		method, okMethod := sampler.Prop("stringProp", "HTTPSampler.method")
		if !okPath || !okMethod {
			*warnings = append(*warnings,
				fmt.Sprintf("Could not extract path/method from sampler: %s", sampler.Attr("testname")))
			continue
		}
		key := samplerKey(path, method)
		if _, exists := index[key]; exists {
			*warnings = append(*warnings,
				fmt.Sprintf("Duplicate sampler for %s, keeping first", key))
			continue
		}
		index[key] = sampler
	}
	return index
}

// threadGroupHashTree finds the hashTree sibling immediately after the first
// ThreadGroup, which is where samplers live.
func threadGroupHashTree(root *dom.Element) *dom.Element {
	var walk func(e *dom.Element) *dom.Element
	walk = func(e *dom.Element) *dom.Element {
		for i, child := range e.Children {
			if child.Tag == "ThreadGroup" && i+1 < len(e.Children) && e.Children[i+1].Tag == "hashTree" {
				return e.Children[i+1]
			}
			if found := walk(child); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(root)
}

// disableSampler marks a sampler disabled and records why in its comments,
// so the plan keeps a visible trace of the removed endpoint.
func disableSampler(sampler *dom.Element) {
	sampler.SetAttr("enabled", "false")
	if comment := sampler.FindByAttr("stringProp", "name", "TestPlan.comments"); comment != nil {
		comment.SetText("Disabled - endpoint removed from OpenAPI spec")
		return
	}
	sampler.Add(stringProp("TestPlan.comments", "Disabled - endpoint removed from OpenAPI spec"))
}

// retitleSampler applies an operationId rename to the sampler's display
// name. Parameter and body changes need schema-aware edits and are left to
// regeneration.
func retitleSampler(sampler *dom.Element, change project.EndpointChange) {
	if change.Changes == nil || change.Changes.OperationID == nil {
		return
	}
	if newID, ok := change.Changes.OperationID.New.(string); ok && newID != "" {
		sampler.SetAttr("testname", newID)
	}
}
