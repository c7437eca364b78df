// Package config loads the previewd configuration from YAML by
// environment name, with ${VAR} and ${VAR:-default} expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the previewd service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Blob     BlobConfig     `yaml:"blob"`
	Cache    CacheConfig    `yaml:"cache"`
	Render   RenderConfig   `yaml:"render"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Signing  SigningConfig  `yaml:"signing"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// MaxUploadMB bounds multipart uploads.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// BlobConfig holds the artifact store backend settings.
type BlobConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds local cache settings.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	Disabled bool   `yaml:"disabled"`
}

// RenderConfig holds preview rendering settings.
type RenderConfig struct {
	DPI float64 `yaml:"dpi"`
}

// AnalysisConfig holds the external analysis service settings.
type AnalysisConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	User       string `yaml:"user"`
	Query      string `yaml:"query"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// SigningConfig holds signed retrieval link settings.
type SigningConfig struct {
	Secret string `yaml:"secret"`
	// BaseURL is the externally reachable root of this service.
	BaseURL   string `yaml:"base_url"`
	URLTTLSec int    `yaml:"url_ttl_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file by environment name.
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the current environment from ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = "valkey"
	}
	if c.Blob.ReadinessTimeout <= 0 {
		c.Blob.ReadinessTimeout = 10
	}
	if c.Blob.KeyPrefix == "" {
		c.Blob.KeyPrefix = "previewd:"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(os.TempDir(), "previewd-cache")
	}
	if c.Render.DPI <= 0 {
		c.Render.DPI = 150
	}
	if c.Analysis.TimeoutSec <= 0 {
		c.Analysis.TimeoutSec = 60
	}
	if c.Signing.URLTTLSec <= 0 {
		c.Signing.URLTTLSec = 600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Blob.Addrs) == 0 {
		return fmt.Errorf("blob.addrs is required")
	}
	switch c.Blob.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("blob.driver must be \"valkey\" or \"redis\", got %q", c.Blob.Driver)
	}
	if c.Signing.Secret != "" && c.Signing.BaseURL == "" {
		return fmt.Errorf("signing.base_url is required when signing.secret is set")
	}
	return nil
}

// findConfigPath locates the config file: ./config/<env>.yaml, or the
// path named by PREVIEWD_CONFIG_DIR.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if dir := os.Getenv("PREVIEWD_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, filename)
	}
	return filepath.Join("config", filename)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
