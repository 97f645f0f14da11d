package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testRego = `# Flags every year.
# Used by loader tests.
# severity: info
package wfsim.test

deny contains "flagged"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "flag-all.rego")
	writeFile(t, path, testRego)

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(policies))
	}

	p := policies[0]
	if p.Name != "flag-all" {
		t.Errorf("Expected name 'flag-all', got '%s'", p.Name)
	}
	if p.Description != "Flags every year. Used by loader tests." {
		t.Errorf("Unexpected description %q", p.Description)
	}
	if p.Severity != SeverityInfo || !p.Enabled || p.Builtin {
		t.Errorf("Unexpected policy %+v", p)
	}
	if p.Rego != testRego || p.Metadata["source"] != path {
		t.Error("Rego content or source doesn't match")
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "single.json")
	writeFile(t, single, `{"name": "single", "enabled": true, "rego": "package wfsim.single\n"}`)

	bundle := filepath.Join(dir, "bundle.json")
	writeFile(t, bundle, `{
		"name": "plan-governance",
		"version": "1.0.0",
		"policies": [
			{"name": "a", "severity": "error", "enabled": true, "rego": "package wfsim.a\n"},
			{"name": "b", "enabled": false, "rego": "package wfsim.b\n"}
		]
	}`)

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{single, bundle})
	if err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}
	if len(policies) != 3 {
		t.Fatalf("Expected 3 policies, got %d", len(policies))
	}
	if policies[0].Name != "single" || policies[0].Severity != SeverityWarning {
		t.Errorf("Unexpected single policy %+v", policies[0])
	}
	if policies[1].Severity != SeverityError || policies[2].Enabled {
		t.Errorf("Unexpected bundle policies %+v %+v", policies[1], policies[2])
	}
	if policies[2].Metadata["source"] != bundle {
		t.Errorf("Missing source metadata: %+v", policies[2].Metadata)
	}

	unnamed := filepath.Join(dir, "unnamed.json")
	writeFile(t, unnamed, `{"rego": "package wfsim.x\n"}`)
	if _, err := loader.LoadFromPaths(context.Background(), []string{unnamed}); err == nil {
		t.Error("Expected error for policy without a name")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "one.rego"), testRego)
	writeFile(t, filepath.Join(sub, "two.rego"), testRego)
	writeFile(t, filepath.Join(dir, "README.md"), "not a policy")
	writeFile(t, filepath.Join(dir, "bad.json"), "{not json")

	policies, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(policies))
	}

	if _, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("Expected error for missing path")
	}
}

func TestLoaderCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cached.rego")
	writeFile(t, path, testRego)

	loader := NewLoader(zerolog.Nop())
	ctx := context.Background()
	if _, err := loader.LoadFromPaths(ctx, []string{path}); err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "# severity: error\npackage wfsim.test\n")
	policies, _ := loader.LoadFromPaths(ctx, []string{path})
	if policies[0].Severity != SeverityInfo {
		t.Error("Expected cached policy")
	}

	loader.ClearCache()
	policies, _ = loader.LoadFromPaths(ctx, []string{path})
	if policies[0].Severity != SeverityError {
		t.Error("Expected reloaded policy after ClearCache")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.rego"), testRego)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan int, 4)
	loader := NewLoader(zerolog.Nop())
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- len(policies)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeFile(t, filepath.Join(dir, "two.rego"), testRego)

	select {
	case n := <-reloaded:
		if n != 2 {
			t.Errorf("Expected 2 policies after reload, got %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}
}
