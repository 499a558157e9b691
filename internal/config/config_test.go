package config

import "testing"

func TestDefault_DiagnosticsMaxSeverityIncludesEverything(t *testing.T) {
	cfg := Default()
	if cfg.DiagnosticsMaxSeverity != 4 {
		t.Errorf("DiagnosticsMaxSeverity = %d, want 4 (Hint, so everything is visible by default)", cfg.DiagnosticsMaxSeverity)
	}
}

func TestDefault_MapsAreNonNilWhereExpected(t *testing.T) {
	cfg := Default()
	if cfg.ServerCommands == nil {
		t.Error("ServerCommands should start as an empty map, not nil, so callers can range over it unconditionally")
	}
	if cfg.DiagnosticsDisplay == nil {
		t.Error("DiagnosticsDisplay should have default severity entries")
	}
	if len(cfg.DiagnosticsDisplay) != 4 {
		t.Errorf("expected 4 default severity entries, got %d", len(cfg.DiagnosticsDisplay))
	}
}

func TestDefault_RestartOnCrashEnabledByDefault(t *testing.T) {
	cfg := Default()
	if !cfg.RestartOnCrash {
		t.Error("expected RestartOnCrash to default to true")
	}
	if cfg.MaxRestartRetries != 5 {
		t.Errorf("MaxRestartRetries = %d, want 5", cfg.MaxRestartRetries)
	}
}

func TestDefault_SettingsPathDefault(t *testing.T) {
	cfg := Default()
	if len(cfg.SettingsPath) != 1 || cfg.SettingsPath[0] != ".vim/settings.json" {
		t.Errorf("SettingsPath = %+v, want [.vim/settings.json]", cfg.SettingsPath)
	}
	if cfg.LoadSettings {
		t.Error("expected LoadSettings to default to false")
	}
}

func TestDiagnosticsDisplayEntry_DefaultNames(t *testing.T) {
	display := defaultDiagnosticsDisplay()
	want := map[int]string{1: "Error", 2: "Warning", 3: "Information", 4: "Hint"}
	for sev, name := range want {
		if display[sev].Name != name {
			t.Errorf("severity %d name = %q, want %q", sev, display[sev].Name, name)
		}
	}
}
