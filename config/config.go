// Package config provides configuration management for the application.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cleanup policies for ephemeral resources created by fixtures.
const (
	CleanupNone   = "none"
	CleanupDelete = "delete"
)

// Config holds the application configuration
type Config struct {
	Harness  HarnessConfig            `yaml:"harness"`
	Services map[string]ServiceConfig `yaml:"services"`
	Logging  LogConfig                `yaml:"logging"`
	HTTP     HTTPConfig               `yaml:"http"`
	Storage  StorageConfig            `yaml:"storage"`
	Results  ResultsConfig            `yaml:"results"`
	Baseline BaselineConfig           `yaml:"baseline"`
	Server   ServerConfig             `yaml:"server"`
}

// HarnessConfig controls how requests are issued against the deployment under test.
type HarnessConfig struct {
	// Timeout is the per-request timeout in seconds
	Timeout int `yaml:"timeout"`
	// VersionPrefix is the path prefix format for versioned views
	VersionPrefix string `yaml:"version_prefix"`
	// VersionHeader, when set, carries the API version instead of the path prefix
	VersionHeader string `yaml:"version_header"`
	// Cleanup is the fixture teardown policy: "none" or "delete"
	Cleanup string `yaml:"cleanup"`
	// MaxBodyBytes bounds how much of a response body is read
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// ServiceConfig holds the base URLs of one service.
type ServiceConfig struct {
	URL         string `yaml:"url"`
	InternalURL string `yaml:"internal_url"`
}

// LogConfig holds process logging configuration
type LogConfig struct {
	// Format is one of "json", "text" or "pretty"
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// HTTPConfig holds HTTP client timeouts in seconds
type HTTPConfig struct {
	Timeout               int `yaml:"timeout"`
	ResponseHeaderTimeout int `yaml:"response_header_timeout"`
}

// StorageConfig holds the results database configuration
type StorageConfig struct {
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// ResultsConfig controls the check results ledger
type ResultsConfig struct {
	Enabled bool `yaml:"enabled"`
	// BufferSize is the capacity of the in-memory entry channel
	BufferSize int `yaml:"buffer_size"`
	// FlushInterval is in seconds
	FlushInterval int `yaml:"flush_interval"`
	// RetentionDays is how long results are kept (0 = forever)
	RetentionDays int `yaml:"retention_days"`
}

// BaselineConfig controls where response-shape baselines are kept
type BaselineConfig struct {
	// Type is "local" or "redis"
	Type  string              `yaml:"type"`
	Local LocalBaselineConfig `yaml:"local"`
	Redis RedisBaselineConfig `yaml:"redis"`
}

// LocalBaselineConfig holds the file-backed baseline store settings
type LocalBaselineConfig struct {
	Path string `yaml:"path"`
}

// RedisBaselineConfig holds the Redis-backed baseline store settings
type RedisBaselineConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
	// TTL is in seconds (0 = no expiry)
	TTL int `yaml:"ttl"`
}

// ServerConfig holds the fake galley listener configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// BodySizeLimit is an echo size string such as "1M"
	BodySizeLimit string `yaml:"body_size_limit"`
}

// Load reads configuration from .env, an optional YAML file and the environment.
// Precedence: defaults < YAML < environment < ASSIGNED_PORTS.
func Load() (*Config, error) {
	// Optional; existing environment variables win over .env entries
	_ = godotenv.Load()

	cfg := buildDefaultConfig()

	path, required := configPath()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := applyAssignedPorts(cfg, os.Getenv("ASSIGNED_PORTS")); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configPath() (string, bool) {
	if p := os.Getenv("GALLEYPROBE_CONFIG"); p != "" {
		return p, true
	}
	return "config.yaml", false
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	return buildDefaultConfig()
}

func buildDefaultConfig() *Config {
	return &Config{
		Harness: HarnessConfig{
			Timeout:       30,
			VersionPrefix: "/v%d",
			Cleanup:       CleanupNone,
			MaxBodyBytes:  10 * 1024 * 1024,
		},
		Services: map[string]ServiceConfig{
			"galley": {URL: "http://127.0.0.1:8085"},
			"brig":   {URL: "http://127.0.0.1:8082"},
		},
		Logging: LogConfig{
			Format: "pretty",
			Level:  "info",
		},
		HTTP: HTTPConfig{
			Timeout:               600,
			ResponseHeaderTimeout: 600,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: ".cache/galleyprobe.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "galleyprobe"},
		},
		Results: ResultsConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 5,
			RetentionDays: 30,
		},
		Baseline: BaselineConfig{
			Type:  "local",
			Local: LocalBaselineConfig{Path: ".cache/baselines.json"},
			Redis: RedisBaselineConfig{Key: "galleyprobe:baseline:"},
		},
		Server: ServerConfig{
			Port:          "8085",
			BodySizeLimit: "1M",
		},
	}
}

// ServiceNames returns the configured service names in sorted order.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration for values the harness cannot work with.
func (c *Config) Validate() error {
	if c.Harness.Timeout <= 0 {
		return fmt.Errorf("harness.timeout must be positive, got %d", c.Harness.Timeout)
	}
	if c.Harness.MaxBodyBytes <= 0 {
		return fmt.Errorf("harness.max_body_bytes must be positive, got %d", c.Harness.MaxBodyBytes)
	}
	if !strings.Contains(c.Harness.VersionPrefix, "%d") {
		return fmt.Errorf("harness.version_prefix must contain %%d, got %q", c.Harness.VersionPrefix)
	}
	switch c.Harness.Cleanup {
	case CleanupNone, CleanupDelete:
	default:
		return fmt.Errorf("harness.cleanup must be %q or %q, got %q", CleanupNone, CleanupDelete, c.Harness.Cleanup)
	}
	for _, name := range c.ServiceNames() {
		svc := c.Services[name]
		if svc.URL == "" {
			return fmt.Errorf("services.%s.url is required", name)
		}
		for _, raw := range []string{svc.URL, svc.InternalURL} {
			if raw == "" {
				continue
			}
			u, err := url.Parse(raw)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("services.%s: invalid base URL %q", name, raw)
			}
		}
	}
	switch c.Storage.Type {
	case "sqlite", "postgresql", "mongodb", "memory":
	default:
		return fmt.Errorf("storage.type must be sqlite, postgresql, mongodb or memory, got %q", c.Storage.Type)
	}
	switch c.Baseline.Type {
	case "local", "redis":
	default:
		return fmt.Errorf("baseline.type must be \"local\" or \"redis\", got %q", c.Baseline.Type)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders.
// Unset or empty variables without a default are left as written.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if parts[2] != "" {
			return parts[3]
		}
		return match
	})
}

func applyEnvOverrides(cfg *Config) error {
	for name, svc := range cfg.Services {
		prefix := envName(name)
		if v := os.Getenv(prefix + "_URL"); v != "" {
			svc.URL = v
		}
		if v := os.Getenv(prefix + "_INTERNAL_URL"); v != "" {
			svc.InternalURL = v
		}
		cfg.Services[name] = svc
	}

	strs := []struct {
		env string
		dst *string
	}{
		{"HARNESS_VERSION_PREFIX", &cfg.Harness.VersionPrefix},
		{"HARNESS_VERSION_HEADER", &cfg.Harness.VersionHeader},
		{"HARNESS_CLEANUP", &cfg.Harness.Cleanup},
		{"LOG_FORMAT", &cfg.Logging.Format},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"STORAGE_TYPE", &cfg.Storage.Type},
		{"SQLITE_PATH", &cfg.Storage.SQLite.Path},
		{"POSTGRES_URL", &cfg.Storage.PostgreSQL.URL},
		{"MONGODB_URL", &cfg.Storage.MongoDB.URL},
		{"MONGODB_DATABASE", &cfg.Storage.MongoDB.Database},
		{"BASELINE_TYPE", &cfg.Baseline.Type},
		{"BASELINE_PATH", &cfg.Baseline.Local.Path},
		{"REDIS_URL", &cfg.Baseline.Redis.URL},
		{"REDIS_KEY", &cfg.Baseline.Redis.Key},
		{"PORT", &cfg.Server.Port},
		{"BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"HARNESS_TIMEOUT", &cfg.Harness.Timeout},
		{"HTTP_TIMEOUT", &cfg.HTTP.Timeout},
		{"HTTP_RESPONSE_HEADER_TIMEOUT", &cfg.HTTP.ResponseHeaderTimeout},
		{"POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns},
		{"RESULTS_BUFFER_SIZE", &cfg.Results.BufferSize},
		{"RESULTS_FLUSH_INTERVAL", &cfg.Results.FlushInterval},
		{"RESULTS_RETENTION_DAYS", &cfg.Results.RetentionDays},
		{"REDIS_TTL", &cfg.Baseline.Redis.TTL},
	}
	for _, i := range ints {
		v := os.Getenv(i.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", i.env, err)
		}
		*i.dst = n
	}

	if v := os.Getenv("HARNESS_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid HARNESS_MAX_BODY_BYTES: %w", err)
		}
		cfg.Harness.MaxBodyBytes = n
	}
	if v := os.Getenv("RESULTS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RESULTS_ENABLED: %w", err)
		}
		cfg.Results.Enabled = b
	}
	return nil
}

// applyAssignedPorts rewrites service hosts from a JSON label->port map as
// exported by test orchestrators. The service name is the label's last
// ":" or "/" separated segment; unknown labels are ignored.
func applyAssignedPorts(cfg *Config, raw string) error {
	if raw == "" {
		return nil
	}
	ports := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &ports); err != nil {
		return fmt.Errorf("invalid ASSIGNED_PORTS: %w", err)
	}
	for label, port := range ports {
		name := label
		if i := strings.LastIndexAny(name, ":/"); i >= 0 {
			name = name[i+1:]
		}
		svc, ok := cfg.Services[name]
		if !ok {
			continue
		}
		var err error
		if svc.URL, err = withPort(svc.URL, port); err != nil {
			return fmt.Errorf("ASSIGNED_PORTS %s: %w", label, err)
		}
		if svc.InternalURL != "" {
			if svc.InternalURL, err = withPort(svc.InternalURL, port); err != nil {
				return fmt.Errorf("ASSIGNED_PORTS %s: %w", label, err)
			}
		}
		cfg.Services[name] = svc
	}
	return nil
}

func withPort(raw, port string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	u.Host = host + ":" + port
	return u.String(), nil
}

func envName(service string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(service))
}
