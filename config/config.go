package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (CODERUNNER_SANDBOX_BACKEND, ...)
const EnvPrefix = "CODERUNNER"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Sandbox   SandboxConfig  `mapstructure:"sandbox"`
	Logging   LoggingConfig  `mapstructure:"logging"`
	Languages LanguageConfig `mapstructure:"languages"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend           string  `mapstructure:"backend"`
	WorkspaceRoot     string  `mapstructure:"workspace_root"`
	PrepareWorkspaces bool    `mapstructure:"prepare_workspaces"`
	ImagePrefix       string  `mapstructure:"image_prefix"`
	TimeoutSec        int     `mapstructure:"timeout_sec"`
	InnerTimeoutSec   int     `mapstructure:"inner_timeout_sec"`
	CPUs              float64 `mapstructure:"cpus"`
	PidsLimit         int     `mapstructure:"pids_limit"`
	MemoryMB          int     `mapstructure:"memory_mb"`
	MemoryHighMB      int     `mapstructure:"memory_high_mb"`
	MemoryJITMB       int     `mapstructure:"memory_jit_mb"`
	MaxOutputBytes    int     `mapstructure:"max_output_bytes"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	CleanupTimeoutSec int     `mapstructure:"cleanup_timeout_sec"`
}

// LoggingConfig holds logger construction parameters
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// LanguageConfig maps a language key to its overrides
type LanguageConfig map[string]Language

// Language overrides or adds one entry of the language table.
// Empty fields keep the built-in value.
type Language struct {
	Image       string            `mapstructure:"image"`
	Extension   string            `mapstructure:"extension"`
	Compile     string            `mapstructure:"compile"`
	Run         string            `mapstructure:"run"`
	Tier        string            `mapstructure:"tier"`
	EntryFile   string            `mapstructure:"entry_file"`
	Environment map[string]string `mapstructure:"environment"`
}

// BuiltinLanguages lists the keys shipped with the default language table.
// Overrides for other keys must define a full entry.
var BuiltinLanguages = []string{
	"c", "cpp", "csharp", "java", "python3", "node", "typescript",
	"php", "swift", "kotlin", "ruby", "scala", "rust",
}

// New loads and validates the application configuration.
// CODERUNNER_CONFIG may point at an explicit YAML file.
func New() (*Config, error) {
	return Load(os.Getenv(EnvPrefix + "_CONFIG"))
}

// Load reads configuration from configFile, or searches . and ./config
// for config.yaml when configFile is empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "rest")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.workspace_root", "./code-executor")
	v.SetDefault("sandbox.prepare_workspaces", true)
	v.SetDefault("sandbox.image_prefix", "myrunner")
	v.SetDefault("sandbox.timeout_sec", 15)
	v.SetDefault("sandbox.inner_timeout_sec", 12)
	v.SetDefault("sandbox.cpus", 1.0)
	v.SetDefault("sandbox.pids_limit", 64)
	v.SetDefault("sandbox.memory_mb", 32)
	v.SetDefault("sandbox.memory_high_mb", 64)
	v.SetDefault("sandbox.memory_jit_mb", 96)
	v.SetDefault("sandbox.max_output_bytes", 1024*1024)
	v.SetDefault("sandbox.max_concurrent", 8)
	v.SetDefault("sandbox.cleanup_timeout_sec", 5)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // flat list of independent checks
func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http", "rest":
	default:
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio', 'http' or 'rest'", c.Server.Transport)
	}

	if c.Server.Transport != "stdio" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Sandbox.Backend != "docker" && c.Sandbox.Backend != "podman" {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.WorkspaceRoot == "" {
		return fmt.Errorf("sandbox.workspace_root must not be empty")
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.InnerTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.inner_timeout_sec must be positive, got: %d", c.Sandbox.InnerTimeoutSec)
	}

	if c.Sandbox.InnerTimeoutSec >= c.Sandbox.TimeoutSec {
		return fmt.Errorf("sandbox.inner_timeout_sec (%d) must be less than sandbox.timeout_sec (%d)",
			c.Sandbox.InnerTimeoutSec, c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.CPUs <= 0 {
		return fmt.Errorf("sandbox.cpus must be positive, got: %v", c.Sandbox.CPUs)
	}

	if c.Sandbox.PidsLimit <= 0 {
		return fmt.Errorf("sandbox.pids_limit must be positive, got: %d", c.Sandbox.PidsLimit)
	}

	if c.Sandbox.MemoryMB <= 0 || c.Sandbox.MemoryHighMB <= 0 || c.Sandbox.MemoryJITMB <= 0 {
		return fmt.Errorf("sandbox memory tiers must be positive, got: %d/%d/%d",
			c.Sandbox.MemoryMB, c.Sandbox.MemoryHighMB, c.Sandbox.MemoryJITMB)
	}

	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes)
	}

	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("sandbox.max_concurrent must be positive, got: %d", c.Sandbox.MaxConcurrent)
	}

	if c.Sandbox.CleanupTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.cleanup_timeout_sec must be positive, got: %d", c.Sandbox.CleanupTimeoutSec)
	}

	switch c.Logging.Mode {
	case "development", "production":
	default:
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	for key, lang := range c.Languages {
		if err := validateLanguage(key, lang); err != nil {
			return err
		}
	}

	return nil
}

func validateLanguage(key string, lang Language) error {
	switch lang.Tier {
	case "", "standard", "high", "jit":
	default:
		return fmt.Errorf("languages.%s.tier: unknown tier %q", key, lang.Tier)
	}

	for _, builtin := range BuiltinLanguages {
		if key == builtin {
			return nil
		}
	}

	if lang.Extension == "" || lang.Run == "" {
		return fmt.Errorf("languages.%s: new languages must define extension and run", key)
	}
	return nil
}

// GetTimeout returns the outer supervision timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetCleanupTimeout returns the workspace removal bound as a duration
func (c *Config) GetCleanupTimeout() time.Duration {
	return time.Duration(c.Sandbox.CleanupTimeoutSec) * time.Second
}
