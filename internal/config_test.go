package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.APIBase != "http://localhost:8080" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.DocqaBase != "http://localhost:5000" {
		t.Errorf("DocqaBase = %q", cfg.DocqaBase)
	}
	// Analytics lives alongside the doc backend by default
	if cfg.AnalyticsBase != cfg.DocqaBase {
		t.Errorf("AnalyticsBase = %q, want %q", cfg.AnalyticsBase, cfg.DocqaBase)
	}
	if cfg.SLOP90 != 0.8 {
		t.Errorf("SLOP90 = %v", cfg.SLOP90)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHATCTL_API_BASE", "https://api.example.com/")
	t.Setenv("CHATCTL_ANALYTICS_BASE", "https://metrics.example.com")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.APIBase != "https://api.example.com" {
		t.Errorf("APIBase = %q, want trailing slash trimmed", cfg.APIBase)
	}
	if cfg.AnalyticsBase != "https://metrics.example.com" {
		t.Errorf("AnalyticsBase = %q", cfg.AnalyticsBase)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	cfgPath := filepath.Join(dir, "config.yaml")
	content := "api_base: https://chat.example.com\nslo_p90: 1.5\ndata_dir: " + filepath.Join(dir, "data") + "\n"
	writeTestFile(t, cfgPath, content)

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.APIBase != "https://chat.example.com" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.SLOP90 != 1.5 {
		t.Errorf("SLOP90 = %v", cfg.SLOP90)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig() with a missing explicit file succeeded, want error")
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/x"}
	if got := cfg.TokenPath(); got != "/tmp/x/token" {
		t.Errorf("TokenPath() = %q", got)
	}
	if got := cfg.MetaDBPath(); got != "/tmp/x/meta.db" {
		t.Errorf("MetaDBPath() = %q", got)
	}
	if got := cfg.ConvCacheDir(); got != "/tmp/x/conversations" {
		t.Errorf("ConvCacheDir() = %q", got)
	}
}
