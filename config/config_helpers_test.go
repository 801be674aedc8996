package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExpandString tests the expandString function with various scenarios
func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "string without placeholders",
			input:    "simple-string",
			envVars:  map[string]string{},
			expected: "simple-string",
		},
		{
			name:     "simple variable expansion",
			input:    "${API_KEY}",
			envVars:  map[string]string{"API_KEY": "sk-12345"},
			expected: "sk-12345",
		},
		{
			name:     "variable in middle of string",
			input:    "prefix-${API_KEY}-suffix",
			envVars:  map[string]string{"API_KEY": "sk-12345"},
			expected: "prefix-sk-12345-suffix",
		},
		{
			name:     "multiple variables",
			input:    "${SCHEME}://${HOST}:${PORT}",
			envVars:  map[string]string{"SCHEME": "https", "HOST": "api.example.com", "PORT": "8080"},
			expected: "https://api.example.com:8080",
		},
		{
			name:     "variable with default value - env var exists",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{"API_KEY": "sk-real-key"},
			expected: "sk-real-key",
		},
		{
			name:     "variable with default value - env var missing",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{},
			expected: "default-key",
		},
		{
			name:     "variable with default value - env var empty",
			input:    "${API_KEY:-default-key}",
			envVars:  map[string]string{"API_KEY": ""},
			expected: "default-key",
		},
		{
			name:     "unresolved variable - no default",
			input:    "${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "${MISSING_VAR}",
		},
		{
			name:     "partially resolved string",
			input:    "${RESOLVED}-${UNRESOLVED}",
			envVars:  map[string]string{"RESOLVED": "value1"},
			expected: "value1-${UNRESOLVED}",
		},
		{
			name:     "mixed resolved and unresolved with defaults",
			input:    "${RESOLVED}:${UNRESOLVED:-fallback}:${MISSING}",
			envVars:  map[string]string{"RESOLVED": "value1"},
			expected: "value1:fallback:${MISSING}",
		},
		{
			name:     "default value with special characters",
			input:    "${GALLEY_URL:-http://galley.example.com/v2}",
			envVars:  map[string]string{},
			expected: "http://galley.example.com/v2",
		},
		{
			name:     "default value with colon in it",
			input:    "${URL:-http://localhost:8080}",
			envVars:  map[string]string{},
			expected: "http://localhost:8080",
		},
		{
			name:     "complex real-world example",
			input:    "${BRIG_URL:-http://127.0.0.1:8082}/i/users",
			envVars:  map[string]string{},
			expected: "http://127.0.0.1:8082/i/users",
		},
		{
			name:     "environment variable set to empty string (no default)",
			input:    "${EMPTY_VAR}",
			envVars:  map[string]string{"EMPTY_VAR": ""},
			expected: "${EMPTY_VAR}",
		},
		{
			name:     "empty default value - env var missing",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "empty default value - env var set",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{"OPTIONAL_VAR": "actual-value"},
			expected: "actual-value",
		},
		{
			name:     "empty default value - env var empty",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{"OPTIONAL_VAR": ""},
			expected: "",
		},
		{
			name:     "service url pattern - not set uses default",
			input:    "${GALLEY_HOST:-127.0.0.1}:${GALLEY_PORT:-8085}",
			envVars:  map[string]string{},
			expected: "127.0.0.1:8085",
		},
		{
			name:     "service url pattern - port assigned",
			input:    "${GALLEY_HOST:-127.0.0.1}:${GALLEY_PORT:-8085}",
			envVars:  map[string]string{"GALLEY_PORT": "41234"},
			expected: "127.0.0.1:41234",
		},
		{
			name:     "multiple placeholders some resolved some not",
			input:    "prefix-${VAR1}-${VAR2}-${VAR3}-suffix",
			envVars:  map[string]string{"VAR1": "a", "VAR3": "c"},
			expected: "prefix-a-${VAR2}-c-suffix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				_ = os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.envVars {
					_ = os.Unsetenv(k)
				}
			}()

			result := expandString(tt.input)
			if result != tt.expected {
				t.Errorf("expandString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestApplyEnvOverrides tests the applyEnvOverrides function
func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "service URL overrides",
			envVars: map[string]string{"GALLEY_URL": "http://galley:8080", "GALLEY_INTERNAL_URL": "http://galley-internal:8080"},
			check: func(t *testing.T, cfg *Config) {
				galley := cfg.Services["galley"]
				if galley.URL != "http://galley:8080" {
					t.Errorf("galley.URL = %q, want %q", galley.URL, "http://galley:8080")
				}
				if galley.InternalURL != "http://galley-internal:8080" {
					t.Errorf("galley.InternalURL = %q, want %q", galley.InternalURL, "http://galley-internal:8080")
				}
				if cfg.Services["brig"].URL != "http://127.0.0.1:8082" {
					t.Errorf("brig.URL changed unexpectedly: %q", cfg.Services["brig"].URL)
				}
			},
		},
		{
			name:    "harness overrides",
			envVars: map[string]string{"HARNESS_TIMEOUT": "5", "HARNESS_VERSION_HEADER": "Z-API-Version", "HARNESS_CLEANUP": "delete"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Harness.Timeout != 5 {
					t.Errorf("Harness.Timeout = %d, want 5", cfg.Harness.Timeout)
				}
				if cfg.Harness.VersionHeader != "Z-API-Version" {
					t.Errorf("Harness.VersionHeader = %q, want %q", cfg.Harness.VersionHeader, "Z-API-Version")
				}
				if cfg.Harness.Cleanup != CleanupDelete {
					t.Errorf("Harness.Cleanup = %q, want %q", cfg.Harness.Cleanup, CleanupDelete)
				}
			},
		},
		{
			name:    "storage overrides",
			envVars: map[string]string{"STORAGE_TYPE": "postgresql", "POSTGRES_URL": "postgres://localhost/test", "POSTGRES_MAX_CONNS": "20"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage.Type != "postgresql" {
					t.Errorf("Storage.Type = %q, want %q", cfg.Storage.Type, "postgresql")
				}
				if cfg.Storage.PostgreSQL.URL != "postgres://localhost/test" {
					t.Errorf("Storage.PostgreSQL.URL = %q, want %q", cfg.Storage.PostgreSQL.URL, "postgres://localhost/test")
				}
				if cfg.Storage.PostgreSQL.MaxConns != 20 {
					t.Errorf("Storage.PostgreSQL.MaxConns = %d, want %d", cfg.Storage.PostgreSQL.MaxConns, 20)
				}
			},
		},
		{
			name:    "results and baseline overrides",
			envVars: map[string]string{"RESULTS_ENABLED": "false", "BASELINE_TYPE": "redis", "REDIS_URL": "redis://localhost:6379", "REDIS_TTL": "3600"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Results.Enabled {
					t.Error("Results.Enabled should be false")
				}
				if cfg.Baseline.Type != "redis" {
					t.Errorf("Baseline.Type = %q, want %q", cfg.Baseline.Type, "redis")
				}
				if cfg.Baseline.Redis.URL != "redis://localhost:6379" {
					t.Errorf("Baseline.Redis.URL = %q", cfg.Baseline.Redis.URL)
				}
				if cfg.Baseline.Redis.TTL != 3600 {
					t.Errorf("Baseline.Redis.TTL = %d, want 3600", cfg.Baseline.Redis.TTL)
				}
			},
		},
		{
			name:    "HTTP timeout overrides",
			envVars: map[string]string{"HTTP_TIMEOUT": "30", "HTTP_RESPONSE_HEADER_TIMEOUT": "60"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.HTTP.Timeout != 30 {
					t.Errorf("HTTP.Timeout = %d, want 30", cfg.HTTP.Timeout)
				}
				if cfg.HTTP.ResponseHeaderTimeout != 60 {
					t.Errorf("HTTP.ResponseHeaderTimeout = %d, want 60", cfg.HTTP.ResponseHeaderTimeout)
				}
			},
		},
		{
			name:    "no env vars set preserves defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Services["galley"].URL != "http://127.0.0.1:8085" {
					t.Errorf("galley.URL = %q, want %q", cfg.Services["galley"].URL, "http://127.0.0.1:8085")
				}
				if cfg.Harness.Timeout != 30 {
					t.Errorf("Harness.Timeout = %d, want 30", cfg.Harness.Timeout)
				}
				if cfg.Harness.Cleanup != CleanupNone {
					t.Errorf("Harness.Cleanup = %q, want %q", cfg.Harness.Cleanup, CleanupNone)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidInt(t *testing.T) {
	t.Setenv("HARNESS_TIMEOUT", "soon")

	err := applyEnvOverrides(buildDefaultConfig())
	require.Error(t, err)
	require.Contains(t, err.Error(), "HARNESS_TIMEOUT")
}

func TestApplyAssignedPorts(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantURL   string
		wantIntl  string
		wantError bool
	}{
		{
			name:    "empty leaves config untouched",
			raw:     "",
			wantURL: "http://127.0.0.1:8085",
		},
		{
			name:     "bazel label",
			raw:      `{"@@//services:galley": "40123"}`,
			wantURL:  "http://127.0.0.1:40123",
			wantIntl: "http://127.0.0.1:40123",
		},
		{
			name:    "unknown label ignored",
			raw:     `{"//services:cargohold": "40124"}`,
			wantURL: "http://127.0.0.1:8085",
		},
		{
			name:      "malformed JSON",
			raw:       `{"galley":`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildDefaultConfig()
			if tt.wantIntl != "" {
				cfg.Services["galley"] = ServiceConfig{URL: cfg.Services["galley"].URL, InternalURL: "http://localhost:9000"}
			}

			err := applyAssignedPorts(cfg, tt.raw)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantURL, cfg.Services["galley"].URL)
			if tt.wantIntl != "" {
				require.Equal(t, "http://localhost:40123", cfg.Services["galley"].InternalURL)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "zero timeout",
			mutate:  func(cfg *Config) { cfg.Harness.Timeout = 0 },
			wantErr: "harness.timeout",
		},
		{
			name:    "unknown cleanup policy",
			mutate:  func(cfg *Config) { cfg.Harness.Cleanup = "purge" },
			wantErr: "harness.cleanup",
		},
		{
			name:    "prefix without verb",
			mutate:  func(cfg *Config) { cfg.Harness.VersionPrefix = "/v" },
			wantErr: "harness.version_prefix",
		},
		{
			name:    "relative service URL",
			mutate:  func(cfg *Config) { cfg.Services["galley"] = ServiceConfig{URL: "galley:8085/x"} },
			wantErr: "services.galley",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(cfg *Config) { cfg.Storage.Type = "cassandra" },
			wantErr: "storage.type",
		},
		{
			name:   "memory storage",
			mutate: func(cfg *Config) { cfg.Storage.Type = "memory" },
		},
		{
			name:    "unknown baseline store",
			mutate:  func(cfg *Config) { cfg.Baseline.Type = "s3" },
			wantErr: "baseline.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
