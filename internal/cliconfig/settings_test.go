package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettingsFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadSettingsMergesLaterFileOverPriorKeys(t *testing.T) {
	dir := t.TempDir()
	base := writeSettingsFile(t, dir, "base.json", `{"gopls":{"staticcheck":true},"rust-analyzer":{"checkOnSave":true}}`)
	override := writeSettingsFile(t, dir, "override.json", `{"gopls":{"staticcheck":false}}`)

	merged, err := LoadSettings([]string{base, override})
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	gopls, ok := merged["gopls"].(map[string]any)
	if !ok {
		t.Fatalf("expected gopls section to be an object, got %T", merged["gopls"])
	}
	if gopls["staticcheck"] != false {
		t.Errorf("expected overridden staticcheck=false, got %v", gopls["staticcheck"])
	}

	if _, ok := merged["rust-analyzer"]; !ok {
		t.Errorf("expected rust-analyzer section to survive from base, got %v", merged)
	}
}

func TestLoadSettingsSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	base := writeSettingsFile(t, dir, "base.json", `{"a":1}`)

	merged, err := LoadSettings([]string{filepath.Join(dir, "missing.json"), base})
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if merged["a"] != float64(1) {
		t.Errorf("expected a=1, got %v", merged["a"])
	}
}

func TestLoadSettingsEmptyPathsReturnsEmptyObject(t *testing.T) {
	merged, err := LoadSettings(nil)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(merged) != 0 {
		t.Errorf("expected empty map, got %v", merged)
	}
}
