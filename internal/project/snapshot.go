package project

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"jmxgen/internal/jmxerr"
	"jmxgen/internal/spec"

	"github.com/google/uuid"
)

// snapshotVersion is the on-disk snapshot format version.
const snapshotVersion = "1.0"

// maxBackups is how many timestamped backups are kept per JMX file.
const maxBackups = 10

// sensitivePatterns match field names that must never land in a committed
// snapshot.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api_secret)`),
	regexp.MustCompile(`(?i)(token|access[_-]?token|auth[_-]?token|bearer)`),
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret|client[_-]?secret)`),
	regexp.MustCompile(`(?i)(authorization|auth|credential|credentials)`),
	regexp.MustCompile(`(?i)(ssn|social[_-]?security|credit[_-]?card|cvv|cvv2)`),
	regexp.MustCompile(`(?i)(private[_-]?key|secret[_-]?key|encryption[_-]?key)`),
}

// sensitiveFields are dropped by exact (case-insensitive) name match.
var sensitiveFields = []string{"example", "examples", "default", "x-api-key", "x-auth-token"}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range sensitiveFields {
		if lower == f {
			return true
		}
	}
	for _, p := range sensitivePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// SnapshotSpecInfo describes the contract a snapshot was taken from.
type SnapshotSpecInfo struct {
	Path           string `json:"path"`
	Hash           string `json:"hash"`
	APIVersion     string `json:"api_version"`
	APITitle       string `json:"api_title"`
	BaseURL        string `json:"base_url"`
	EndpointsCount int    `json:"endpoints_count"`
}

// SnapshotJMXInfo links a snapshot to the test plan generated from it.
type SnapshotJMXInfo struct {
	Path string `json:"path"`
	Hash string `json:"hash,omitempty"`
}

// SnapshotSecurity documents that the snapshot was filtered before storage.
type SnapshotSecurity struct {
	Filtered bool   `json:"filtered"`
	Note     string `json:"note"`
}

// Snapshot is the committed record of a contract version, used to detect
// endpoint changes on later runs. Endpoints are stored pre-normalized so
// comparison does not depend on how the snapshot was produced.
type Snapshot struct {
	ID         string               `json:"id"`
	Version    string               `json:"version"`
	Format     string               `json:"format"`
	CapturedAt string               `json:"captured_at"`
	CapturedBy string               `json:"captured_by"`
	GitCommit  string               `json:"git_commit,omitempty"`
	GitBranch  string               `json:"git_branch,omitempty"`
	Spec       SnapshotSpecInfo     `json:"spec"`
	JMX        SnapshotJMXInfo      `json:"jmx"`
	Endpoints  []NormalizedEndpoint `json:"endpoints"`
	Security   SnapshotSecurity     `json:"security"`
}

// GitMetadata identifies the commit a snapshot was captured at.
type GitMetadata struct {
	Commit string
	Branch string
	Author string
}

// SnapshotManager saves and loads contract snapshots under
// <project>/.jmxgen/snapshots (committed) and manages the backups directory
// (gitignored).
type SnapshotManager struct {
	projectPath string
	snapshotDir string
	backupDir   string
}

// NewSnapshotManager creates a new instance of SnapshotManager rooted at
// projectPath.
func NewSnapshotManager(projectPath string) *SnapshotManager {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	base := filepath.Join(abs, ".jmxgen")
	return &SnapshotManager{
		projectPath: abs,
		snapshotDir: filepath.Join(base, "snapshots"),
		backupDir:   filepath.Join(base, "backups"),
	}
}

// BackupDir returns the directory JMX backups are written to.
func (m *SnapshotManager) BackupDir() string { return m.backupDir }

// SaveSnapshot writes a filtered snapshot of the contract next to the
// project and returns the snapshot path.
func (m *SnapshotManager) SaveSnapshot(specPath, jmxPath string, doc *spec.Document) (string, error) {
	if err := os.MkdirAll(m.snapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot save snapshot: %v: %w", err, jmxerr.ErrSnapshot)
	}

	endpoints := NormalizeEndpoints(doc)

	jmxHash := ""
	if data, err := os.ReadFile(jmxPath); err == nil {
		jmxHash = fmt.Sprintf("sha256:%x", sha256.Sum256(data))
	}

	git := m.GitMetadata()
	capturedBy := git.Author
	if capturedBy == "" {
		capturedBy = "unknown"
	}

	snapshot := &Snapshot{
		ID:         uuid.NewString(),
		Version:    snapshotVersion,
		Format:     "jmxgen-snapshot",
		CapturedAt: time.Now().UTC().Format(time.RFC3339),
		CapturedBy: capturedBy,
		GitCommit:  git.Commit,
		GitBranch:  git.Branch,
		Spec: SnapshotSpecInfo{
			Path:           specPath,
			Hash:           EndpointsHash(endpoints),
			APIVersion:     doc.Version,
			APITitle:       doc.Title,
			BaseURL:        doc.BaseURL,
			EndpointsCount: len(doc.Endpoints),
		},
		JMX:       SnapshotJMXInfo{Path: jmxPath, Hash: jmxHash},
		Endpoints: endpoints,
		Security:  SnapshotSecurity{Filtered: true, Note: "Sensitive data removed for git storage"},
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cannot save snapshot: %v: %w", err, jmxerr.ErrSnapshot)
	}

	snapshotPath := m.snapshotPath(jmxPath)
	if err := os.WriteFile(snapshotPath, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot save snapshot: %v: %w", err, jmxerr.ErrSnapshot)
	}

	if err := m.ensureGitignore(); err != nil {
		return "", err
	}

	return snapshotPath, nil
}

// LoadSnapshot reads the snapshot for a JMX file. Returns nil without error
// when no snapshot exists.
func (m *SnapshotManager) LoadSnapshot(jmxPath string) (*Snapshot, error) {
	return m.readSnapshot(m.snapshotPath(jmxPath))
}

// FindSnapshotForSpec locates a snapshot by the contract path it records,
// which survives API title changes. Returns nil when none matches.
func (m *SnapshotManager) FindSnapshotForSpec(specPath string) (*Snapshot, string, error) {
	entries, err := os.ReadDir(m.snapshotDir)
	if err != nil {
		return nil, "", nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".spec.json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(m.snapshotDir, name)
		snapshot, err := m.readSnapshot(path)
		if err != nil {
			return nil, "", err
		}
		if snapshot != nil && snapshot.Spec.Path == specPath {
			return snapshot, path, nil
		}
	}
	return nil, "", nil
}

func (m *SnapshotManager) readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file %s: %v: %w", path, err, jmxerr.ErrSnapshot)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupted snapshot file %s: %v: %w", path, err, jmxerr.ErrSnapshot)
	}
	return &snapshot, nil
}

// GitMetadata shells out to git for the current commit, branch and author.
// Fields are empty when the project is not a git repository.
func (m *SnapshotManager) GitMetadata() GitMetadata {
	if _, err := os.Stat(filepath.Join(m.projectPath, ".git")); err != nil {
		return GitMetadata{}
	}

	meta := GitMetadata{
		Commit: m.gitOutput("rev-parse", "HEAD"),
		Branch: m.gitOutput("rev-parse", "--abbrev-ref", "HEAD"),
		Author: m.gitOutput("config", "user.email"),
	}
	return meta
}

func (m *SnapshotManager) gitOutput(args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = m.projectPath
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// ensureGitignore keeps backups local while snapshots stay committed.
func (m *SnapshotManager) ensureGitignore() error {
	dir := filepath.Join(m.projectPath, ".jmxgen")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot save snapshot: %v: %w", err, jmxerr.ErrSnapshot)
	}

	content := `# jmxgen
# Backups are local only (not committed)
backups/

# Snapshots are committed for team collaboration
!snapshots/
`
	path := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("cannot save snapshot: %v: %w", err, jmxerr.ErrSnapshot)
	}
	return nil
}

// RotateBackups deletes the oldest backups of a JMX file beyond the
// retention limit. Backup filenames embed a sortable timestamp.
func (m *SnapshotManager) RotateBackups(jmxBasename string) error {
	matches, err := filepath.Glob(filepath.Join(m.backupDir, jmxBasename+".jmx.backup.*"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	for len(matches) > maxBackups {
		if err := os.Remove(matches[0]); err != nil {
			return fmt.Errorf("failed to rotate backups: %v: %w", err, jmxerr.ErrBackup)
		}
		matches = matches[1:]
	}
	return nil
}

func (m *SnapshotManager) snapshotPath(jmxPath string) string {
	base := filepath.Base(jmxPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(m.snapshotDir, stem+".spec.json")
}
