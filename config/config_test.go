package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv removes every CODESTATE_* override for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"EDITOR", "AUTO_RESUME", "SETTLE_ATTEMPTS", "LISTEN_ADDR", "ALLOWED_ORIGINS", "DEBUG"} {
		t.Setenv("CODESTATE_"+k, "")
		os.Unsetenv("CODESTATE_" + k)
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.GetEditorCommand() != DefaultEditorCommand {
		t.Errorf("editor = %q", cfg.GetEditorCommand())
	}
	if !cfg.AutoResumeEnabled() {
		t.Error("auto resume should default to enabled")
	}
	if cfg.GetSettleAttempts() != DefaultSettleAttempts {
		t.Errorf("settle attempts = %d", cfg.GetSettleAttempts())
	}
	if cfg.GetSettleInitialDelay() != DefaultSettleInitialDelay {
		t.Errorf("settle delay = %v", cfg.GetSettleInitialDelay())
	}
	if cfg.GetListenAddr() != DefaultListenAddr || cfg.GetExportFormat() != "json" {
		t.Errorf("unexpected defaults: %v", cfg.Snapshot())
	}
}

func TestLoadFrom_FileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"editor_command":"cursor","auto_resume":false,"settle_attempts":3}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODESTATE_EDITOR", "zed")
	t.Setenv("CODESTATE_DEBUG", "true")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.GetEditorCommand() != "zed" {
		t.Errorf("env should override file editor, got %q", cfg.GetEditorCommand())
	}
	if cfg.AutoResumeEnabled() {
		t.Error("auto_resume false in file should disable auto resume")
	}
	if cfg.GetSettleAttempts() != 3 {
		t.Errorf("settle attempts = %d, want 3", cfg.GetSettleAttempts())
	}
	if !cfg.IsDebug() {
		t.Error("CODESTATE_DEBUG=true should enable debug")
	}
}

func TestLoadFrom_InvalidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{not json`), 0644)
	if _, err := LoadFrom(bad); err == nil {
		t.Error("expected parse error")
	}

	outOfRange := filepath.Join(dir, "range.json")
	os.WriteFile(outOfRange, []byte(`{"settle_attempts":99}`), 0644)
	if _, err := LoadFrom(outOfRange); err == nil {
		t.Error("expected validation error")
	}
}

func TestMerge_SavesAndValidates(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if err := cfg.Merge(json.RawMessage(`{"export_format":"yaml","settle_initial_delay_ms":50}`)); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if cfg.GetExportFormat() != "yaml" || cfg.GetSettleInitialDelay() != 50*time.Millisecond {
		t.Errorf("merge not applied: %v", cfg.Snapshot())
	}

	reloaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.GetExportFormat() != "yaml" {
		t.Errorf("merge not persisted, got %q", reloaded.GetExportFormat())
	}

	if err := cfg.Merge(json.RawMessage(`{"export_format":"xml"}`)); err == nil {
		t.Error("expected validation error for xml export format")
	}
	if cfg.GetExportFormat() != "yaml" {
		t.Error("failed merge must leave config unchanged")
	}
}

func TestSnapshot_Keys(t *testing.T) {
	cfg := &Config{}
	snap := cfg.Snapshot()
	for _, k := range []string{"editor_command", "auto_resume", "settle_attempts", "settle_initial_delay_ms", "listen_addr", "allowed_origins", "export_format", "debug"} {
		if _, ok := snap[k]; !ok {
			t.Errorf("snapshot missing %q", k)
		}
	}
}

func TestAllowedOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("CODESTATE_ALLOWED_ORIGINS", "vscode-webview://abc,https://ui.example.com")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	got := cfg.GetAllowedOrigins()
	if len(got) != 2 || got[0] != "vscode-webview://abc" || got[1] != "https://ui.example.com" {
		t.Errorf("GetAllowedOrigins() = %v", got)
	}

	got[0] = "mutated"
	if cfg.GetAllowedOrigins()[0] != "vscode-webview://abc" {
		t.Error("GetAllowedOrigins must return a copy")
	}

	for _, bad := range []string{`["*"]`, `["example.com"]`, `["https://example.com/app"]`} {
		if err := cfg.Merge(json.RawMessage(`{"allowed_origins":` + bad + `}`)); err == nil {
			t.Errorf("Merge(%s) should fail validation", bad)
		}
	}
}
