package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Resolution.LocalExact != 1.0 {
		t.Errorf("LocalExact = %v, want 1.0", cfg.Resolution.LocalExact)
	}
	if cfg.Resolution.CHABase != 0.8 {
		t.Errorf("CHABase = %v, want 0.8", cfg.Resolution.CHABase)
	}
	if cfg.Resolution.RTA != 0.9 {
		t.Errorf("RTA = %v, want 0.9", cfg.Resolution.RTA)
	}
	if cfg.Resolution.OptionalLocal != 0.95 {
		t.Errorf("OptionalLocal = %v, want 0.95", cfg.Resolution.OptionalLocal)
	}
	if cfg.Resolution.OptionalImport != 0.90 {
		t.Errorf("OptionalImport = %v, want 0.90", cfg.Resolution.OptionalImport)
	}
	if cfg.Resolution.CHAConcreteBonus != 0.05 {
		t.Errorf("CHAConcreteBonus = %v, want 0.05", cfg.Resolution.CHAConcreteBonus)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Output.Format)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auspex.toml")
	content := `
[resolution]
cha_base = 0.7
rta = 0.85
optional_local = 0.9

[output]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Resolution.CHABase != 0.7 {
		t.Errorf("CHABase = %v, want 0.7", cfg.Resolution.CHABase)
	}
	if cfg.Resolution.RTA != 0.85 {
		t.Errorf("RTA = %v, want 0.85", cfg.Resolution.RTA)
	}
	if cfg.Resolution.OptionalLocal != 0.9 {
		t.Errorf("OptionalLocal = %v, want 0.9", cfg.Resolution.OptionalLocal)
	}
	// Unset keys keep their defaults.
	if cfg.Resolution.LocalExact != 1.0 {
		t.Errorf("LocalExact = %v, want default 1.0", cfg.Resolution.LocalExact)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Output.Format)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auspex.yaml")
	content := `
resolution:
  import_exact: 0.9
trace:
  file: trace.json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Resolution.ImportExact != 0.9 {
		t.Errorf("ImportExact = %v, want 0.9", cfg.Resolution.ImportExact)
	}
	if cfg.Trace.File != "trace.json" {
		t.Errorf("Trace.File = %q, want trace.json", cfg.Trace.File)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/auspex.toml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		{"src/app.ts", false},
		{"node_modules/lib/index.js", true},
		{"src/app.test.ts", true},
		{"src/app.spec.ts", true},
		{"src/types.d.ts", true},
		{"dist/bundle.min.js", true},
		{"src/app.ts.map", true},
		{"src/deep/nested/handler.ts", false},
	}
	for _, tt := range tests {
		if got := cfg.ShouldExclude(tt.path); got != tt.want {
			t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
