package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_WithDefaults(t *testing.T) {
	configContent := `
harness:
  timeout: ${TEST_TIMEOUT_DEFAULTS:-45}
services:
  galley:
    url: "${TEST_GALLEY_DEFAULTS:-http://127.0.0.1:9999}"
`

	// 1. Test Default Value
	t.Run("UseDefaultValue", func(t *testing.T) {
		dir := isolate(t)
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}
		t.Setenv("TEST_TIMEOUT_DEFAULTS", "")
		t.Setenv("TEST_GALLEY_DEFAULTS", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}

		if cfg.Harness.Timeout != 45 {
			t.Errorf("Expected timeout 45 (default), got %d", cfg.Harness.Timeout)
		}
		if got := cfg.Services["galley"].URL; got != "http://127.0.0.1:9999" {
			t.Errorf("Expected galley URL default, got %s", got)
		}
	})

	// 2. Test Env Var Override
	t.Run("OverrideDefaultValue", func(t *testing.T) {
		dir := isolate(t)
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}
		t.Setenv("TEST_TIMEOUT_DEFAULTS", "7")
		t.Setenv("TEST_GALLEY_DEFAULTS", "http://galley.internal:8080")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}

		if cfg.Harness.Timeout != 7 {
			t.Errorf("Expected timeout 7 (env override), got %d", cfg.Harness.Timeout)
		}
		if got := cfg.Services["galley"].URL; got != "http://galley.internal:8080" {
			t.Errorf("Expected galley URL from env, got %s", got)
		}
	})
}
