package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	m := NewSnapshotManager(dir)

	jmxPath := filepath.Join(dir, "pets.jmx")
	if err := os.WriteFile(jmxPath, []byte("<jmeterTestPlan/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := compareTestDoc()
	snapshotPath, err := m.SaveSnapshot(filepath.Join(dir, "openapi.yaml"), jmxPath, doc)
	if err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}
	if !strings.HasSuffix(snapshotPath, filepath.Join("snapshots", "pets.spec.json")) {
		t.Errorf("snapshot path = %q, want pets.spec.json under snapshots", snapshotPath)
	}

	snapshot, err := m.LoadSnapshot(jmxPath)
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if snapshot == nil {
		t.Fatal("LoadSnapshot() returned nil for a saved snapshot")
	}
	if snapshot.ID == "" {
		t.Error("snapshot has no ID")
	}
	if snapshot.Spec.APITitle != "Pet API" {
		t.Errorf("APITitle = %q, want Pet API", snapshot.Spec.APITitle)
	}
	if snapshot.Spec.EndpointsCount != 2 {
		t.Errorf("EndpointsCount = %d, want 2", snapshot.Spec.EndpointsCount)
	}
	if len(snapshot.Endpoints) != 2 {
		t.Errorf("Endpoints = %d, want 2", len(snapshot.Endpoints))
	}
	if !snapshot.Security.Filtered {
		t.Error("snapshot is not marked as filtered")
	}
	if snapshot.JMX.Hash == "" {
		t.Error("snapshot is missing the JMX hash")
	}

	// Distinct runs get distinct IDs.
	if _, err := m.SaveSnapshot(filepath.Join(dir, "openapi.yaml"), jmxPath, doc); err != nil {
		t.Fatalf("second SaveSnapshot() error: %v", err)
	}
	second, err := m.LoadSnapshot(jmxPath)
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if second.ID == snapshot.ID {
		t.Error("re-saved snapshot kept the old ID")
	}
}

func TestLoadSnapshotMissingReturnsNil(t *testing.T) {
	m := NewSnapshotManager(t.TempDir())
	snapshot, err := m.LoadSnapshot("nothing.jmx")
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if snapshot != nil {
		t.Error("LoadSnapshot() returned a snapshot for a file that was never saved")
	}
}

func TestLoadSnapshotCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	m := NewSnapshotManager(dir)

	snapshotDir := filepath.Join(dir, ".jmxgen", "snapshots")
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snapshotDir, "bad.spec.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.LoadSnapshot("bad.jmx"); err == nil {
		t.Error("LoadSnapshot() accepted a corrupted snapshot file")
	}
}

func TestFindSnapshotForSpec(t *testing.T) {
	dir := t.TempDir()
	m := NewSnapshotManager(dir)

	specPath := filepath.Join(dir, "openapi.yaml")
	jmxPath := filepath.Join(dir, "pets.jmx")
	if _, err := m.SaveSnapshot(specPath, jmxPath, compareTestDoc()); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}

	snapshot, path, err := m.FindSnapshotForSpec(specPath)
	if err != nil {
		t.Fatalf("FindSnapshotForSpec() error: %v", err)
	}
	if snapshot == nil {
		t.Fatal("FindSnapshotForSpec() found nothing for a saved contract")
	}
	if path == "" {
		t.Error("FindSnapshotForSpec() returned an empty path")
	}

	none, _, err := m.FindSnapshotForSpec(filepath.Join(dir, "other.yaml"))
	if err != nil {
		t.Fatalf("FindSnapshotForSpec() error: %v", err)
	}
	if none != nil {
		t.Error("FindSnapshotForSpec() matched an unrelated contract path")
	}
}

func TestSnapshotGitignore(t *testing.T) {
	dir := t.TempDir()
	m := NewSnapshotManager(dir)

	jmxPath := filepath.Join(dir, "pets.jmx")
	if _, err := m.SaveSnapshot(filepath.Join(dir, "openapi.yaml"), jmxPath, compareTestDoc()); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".jmxgen", ".gitignore"))
	if err != nil {
		t.Fatalf("gitignore not written: %v", err)
	}
	if !strings.Contains(string(data), "backups/") {
		t.Error("gitignore does not exclude backups")
	}
}

func TestRotateBackups(t *testing.T) {
	dir := t.TempDir()
	m := NewSnapshotManager(dir)

	if err := os.MkdirAll(m.BackupDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < maxBackups+3; i++ {
		name := fmt.Sprintf("pets.jmx.backup.2026-01-%02d_120000", i+1)
		if err := os.WriteFile(filepath.Join(m.BackupDir(), name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.RotateBackups("pets"); err != nil {
		t.Fatalf("RotateBackups() error: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(m.BackupDir(), "pets.jmx.backup.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != maxBackups {
		t.Errorf("backups remaining = %d, want %d", len(matches), maxBackups)
	}
	// The oldest backups go first.
	for _, path := range matches {
		if strings.HasSuffix(path, "01_120000") || strings.HasSuffix(path, "02_120000") || strings.HasSuffix(path, "03_120000") {
			t.Errorf("old backup %s survived rotation", path)
		}
	}
}
