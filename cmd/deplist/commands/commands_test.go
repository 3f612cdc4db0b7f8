package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRepository = `
name: gentoo
packages:
  - name: app-editors/vim
    version: "9.1.0"
    depend: "sys-libs/ncurses ssl? ( dev-libs/openssl )"
  - name: sys-libs/ncurses
    version: "6.4"
  - name: dev-libs/openssl
    version: "3.0.13"
    license: "Apache-2.0"
  - name: app-misc/broken
    version: "1.0"
    depend: "app-misc/missing"
`

func setupWorkspace(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gentoo.yaml"), []byte(testRepository), 0o644); err != nil {
		t.Fatalf("Failed to write repository: %v", err)
	}
	cfg := `
repositories:
  - path: gentoo.yaml
database:
  path: deplist.db
environment:
  use: [ssl]
telemetry:
  logging:
    level: error
    format: json
  metrics:
    enabled: false
` + extra
	path := filepath.Join(dir, "deplist.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand("test", "none", "now")
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestResolve_Text(t *testing.T) {
	cfg := setupWorkspace(t, "")

	out, _, err := execute(t, "-c", cfg, "resolve", "app-editors/vim")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 3 {
		t.Fatalf("Expected merge list output, got %q", out)
	}
	if !strings.Contains(lines[len(lines)-1], "Total: 3 package(s)") {
		t.Errorf("Expected 3 packages, got %q", lines[len(lines)-1])
	}
	vim := strings.Index(out, "app-editors/vim-9.1.0")
	ncurses := strings.Index(out, "sys-libs/ncurses-6.4")
	if vim < 0 || ncurses < 0 || ncurses > vim {
		t.Errorf("Expected ncurses before vim, got %q", out)
	}
}

func TestResolve_JSONWithUseOverride(t *testing.T) {
	cfg := setupWorkspace(t, "")

	out, _, err := execute(t, "-c", cfg, "resolve", "--format", "json", "--use=-ssl", "app-editors/vim")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var result mergeListOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("Expected 2 entries without ssl, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.Name == "dev-libs/openssl" {
			t.Error("Expected openssl to be skipped when ssl is disabled")
		}
	}
}

func TestResolve_Dot(t *testing.T) {
	cfg := setupWorkspace(t, "")

	out, _, err := execute(t, "-c", cfg, "resolve", "--format", "dot", "app-editors/vim")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.HasPrefix(out, "digraph MergeList {") {
		t.Errorf("Expected DOT output, got %q", out)
	}
}

func TestResolve_Failure(t *testing.T) {
	cfg := setupWorkspace(t, "")

	_, stderr, err := execute(t, "-c", cfg, "resolve", "app-misc/broken")
	if err == nil {
		t.Fatal("Expected resolution failure")
	}
	if ExitCode(err) != 2 {
		t.Errorf("Expected exit code 2, got %d", ExitCode(err))
	}
	if !strings.Contains(stderr, "Resolution failed (all_masked)") {
		t.Errorf("Expected error kind in output, got %q", stderr)
	}
	if !strings.Contains(stderr, "When resolving package dependency 'app-misc/broken'") {
		t.Errorf("Expected resolution context in output, got %q", stderr)
	}
}

func TestResolve_InvalidFlags(t *testing.T) {
	cfg := setupWorkspace(t, "")

	tests := [][]string{
		{"resolve", "--format", "xml", "app-editors/vim"},
		{"resolve", "--rdepend-post", "sometimes", "app-editors/vim"},
		{"resolve", "--watch", "--db", "app-editors/vim"},
	}
	for _, args := range tests {
		_, _, err := execute(t, append([]string{"-c", cfg}, args...)...)
		if err == nil {
			t.Errorf("Expected error for %v", args)
			continue
		}
		if ExitCode(err) != 1 {
			t.Errorf("Expected exit code 1 for %v, got %d", args, ExitCode(err))
		}
	}
}

func TestImportResolveHistory(t *testing.T) {
	cfg := setupWorkspace(t, "")

	out, _, err := execute(t, "-c", cfg, "import")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, "Imported gentoo: 4 package(s)") {
		t.Errorf("Unexpected import output %q", out)
	}

	if _, _, err := execute(t, "-c", cfg, "resolve", "--db", "--record", "app-editors/vim"); err != nil {
		t.Fatalf("resolve --db failed: %v", err)
	}

	out, _, err = execute(t, "-c", cfg, "--json", "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var resolutions []struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		EntryCount int    `json:"entry_count"`
	}
	if err := json.Unmarshal([]byte(out), &resolutions); err != nil {
		t.Fatalf("Expected JSON history, got %q: %v", out, err)
	}
	if len(resolutions) != 1 {
		t.Fatalf("Expected 1 recorded resolution, got %d", len(resolutions))
	}
	if resolutions[0].Status != "succeeded" || resolutions[0].EntryCount != 3 {
		t.Errorf("Unexpected resolution %+v", resolutions[0])
	}

	out, _, err = execute(t, "-c", cfg, "history", "show", resolutions[0].ID)
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	if !strings.Contains(out, "app-editors/vim-9.1.0") {
		t.Errorf("Expected merge list in output, got %q", out)
	}
}

func TestValidate(t *testing.T) {
	cfg := setupWorkspace(t, "")

	out, _, err := execute(t, "-c", cfg, "validate")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "gentoo") || !strings.Contains(out, "0 problem(s)") {
		t.Errorf("Unexpected validate output %q", out)
	}
}

func TestValidate_Problems(t *testing.T) {
	dir := t.TempDir()
	repo := `
name: bad
packages:
  - name: app-misc/a
    version: "1"
    depend: "|| ( app-misc/b"
`
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(repo), 0o644); err != nil {
		t.Fatalf("Failed to write repository: %v", err)
	}
	cfg := filepath.Join(dir, "deplist.yaml")
	content := "repositories: [{path: bad.yaml}]\ntelemetry: {logging: {level: error}, metrics: {enabled: false}}\n"
	if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	out, _, err := execute(t, "-c", cfg, "validate")
	if err == nil {
		t.Fatal("Expected validation failure")
	}
	if ExitCode(err) != 2 {
		t.Errorf("Expected exit code 2, got %d", ExitCode(err))
	}
	if !strings.Contains(out, "DEPEND") {
		t.Errorf("Expected DEPEND problem in output, got %q", out)
	}
}
