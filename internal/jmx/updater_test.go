package jmx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jmxgen/internal/project"
	"jmxgen/internal/spec"
)

func updaterTestDoc() *spec.Document {
	return &spec.Document{
		Title:   "Pet API",
		Version: "1.0.0",
		BaseURL: "http://localhost:8080",
		Endpoints: []spec.Endpoint{
			{Path: "/pets", Method: "GET", OperationID: "listPets", ExpectedResponseCodes: []string{"200"}},
			{Path: "/pets", Method: "POST", OperationID: "createPet", ExpectedResponseCodes: []string{"201"}},
		},
	}
}

func generateUpdaterPlan(t *testing.T, doc *spec.Document) string {
	t.Helper()
	dir := t.TempDir()
	jmxPath := filepath.Join(dir, "pets.jmx")
	if _, err := NewGenerator(doc).Generate(jmxPath, Config{Threads: 1}); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	return jmxPath
}

func TestUpdaterAddsSampler(t *testing.T) {
	doc := updaterTestDoc()
	jmxPath := generateUpdaterPlan(t, doc)

	newDoc := updaterTestDoc()
	newDoc.Endpoints = append(newDoc.Endpoints, spec.Endpoint{
		Path: "/pets/{petId}", Method: "DELETE", OperationID: "deletePet",
		ExpectedResponseCodes: []string{"204"},
	})

	diff := &project.SpecDiff{
		AddedEndpoints: []project.EndpointChange{
			{Path: "/pets/{petId}", Method: "DELETE", OperationID: "deletePet", ChangeType: project.ChangeAdded},
		},
	}

	result, err := NewUpdater(filepath.Dir(jmxPath)).Update(jmxPath, diff, newDoc)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if !result.Success {
		t.Fatalf("Update() failed: %v", result.Errors)
	}
	if result.ChangesApplied["added"] != 1 {
		t.Errorf("added = %d, want 1", result.ChangesApplied["added"])
	}
	if result.BackupPath == "" {
		t.Error("Update() did not record a backup path")
	}
	if _, err := os.Stat(result.BackupPath); err != nil {
		t.Errorf("backup file missing: %v", err)
	}

	data, err := os.ReadFile(jmxPath)
	if err != nil {
		t.Fatalf("reading updated plan: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "/pets/{petId}") {
		t.Error("updated plan is missing the added endpoint path")
	}
	if !strings.Contains(content, "Response Code 204") {
		t.Error("added sampler is missing its response code assertion")
	}
}

func TestUpdaterDisablesRemovedSampler(t *testing.T) {
	doc := updaterTestDoc()
	jmxPath := generateUpdaterPlan(t, doc)

	diff := &project.SpecDiff{
		RemovedEndpoints: []project.EndpointChange{
			{Path: "/pets", Method: "POST", OperationID: "createPet", ChangeType: project.ChangeRemoved},
		},
	}

	result, err := NewUpdater(filepath.Dir(jmxPath)).Update(jmxPath, diff, doc)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if result.ChangesApplied["disabled"] != 1 {
		t.Errorf("disabled = %d, want 1", result.ChangesApplied["disabled"])
	}

	root, err := parsePlan(jmxPath)
	if err != nil {
		t.Fatalf("parsing updated plan: %v", err)
	}
	var disabled *int
	for i, sampler := range root.FindAll("HTTPSamplerProxy") {
		if method, _ := sampler.Prop("stringProp", "HTTPSampler.method"); method == "POST" {
			if sampler.Attr("enabled") != "false" {
				t.Error("removed sampler was not disabled")
			}
			if comment, ok := sampler.Prop("stringProp", "TestPlan.comments"); !ok || !strings.Contains(comment, "removed") {
				t.Errorf("removed sampler comment = %q, want removal note", comment)
			}
			disabled = &i
		} else if sampler.Attr("enabled") == "false" {
			t.Error("an unrelated sampler was disabled")
		}
	}
	if disabled == nil {
		t.Fatal("POST sampler not found in updated plan")
	}
}

func TestUpdaterRetitlesModifiedSampler(t *testing.T) {
	doc := updaterTestDoc()
	jmxPath := generateUpdaterPlan(t, doc)

	diff := &project.SpecDiff{
		ModifiedEndpoints: []project.EndpointChange{
			{
				Path: "/pets", Method: "GET", ChangeType: project.ChangeModified,
				Changes: &project.EndpointChanges{
					OperationID: &project.FieldChange{Old: "listPets", New: "getAllPets"},
				},
			},
		},
	}

	result, err := NewUpdater(filepath.Dir(jmxPath)).Update(jmxPath, diff, doc)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if result.ChangesApplied["updated"] != 1 {
		t.Errorf("updated = %d, want 1", result.ChangesApplied["updated"])
	}

	root, err := parsePlan(jmxPath)
	if err != nil {
		t.Fatalf("parsing updated plan: %v", err)
	}
	if root.FindByAttr("HTTPSamplerProxy", "testname", "getAllPets") == nil {
		t.Error("modified sampler was not retitled")
	}
}

func TestUpdaterWarnsOnMissingSampler(t *testing.T) {
	doc := updaterTestDoc()
	jmxPath := generateUpdaterPlan(t, doc)

	diff := &project.SpecDiff{
		RemovedEndpoints: []project.EndpointChange{
			{Path: "/unknown", Method: "GET", ChangeType: project.ChangeRemoved},
		},
	}

	result, err := NewUpdater(filepath.Dir(jmxPath)).Update(jmxPath, diff, doc)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if !result.Success {
		t.Error("a missing sampler should produce a warning, not a failure")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning about the missing sampler")
	}
}

func TestUpdaterRejectsNonJMXFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-plan.jmx")
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewUpdater(dir).Update(path, &project.SpecDiff{}, updaterTestDoc())
	if err == nil {
		t.Fatal("Update() accepted a non-JMX file")
	}
	if !strings.Contains(err.Error(), "jmeterTestPlan") {
		t.Errorf("error %q should name the expected root element", err)
	}
}
