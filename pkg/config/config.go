package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete MDFS server configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Server-wide settings
//   - Metadata cache tuning (open file descriptor budget)
//   - Metrics exposition
//   - Export definitions
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (MDFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Cache tunes the metadata cache layer
	Cache CacheConfig `mapstructure:"cache"`

	// Metrics controls Prometheus exposition
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Exports defines the namespaces available to clients
	Exports []ExportConfig `mapstructure:"exports" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// CacheConfig tunes the metadata cache layer.
type CacheConfig struct {
	// FDLimit caps the number of simultaneously open file descriptors
	// across all cached handles. Opens past the cap are delayed until a
	// close frees room. Zero means unlimited.
	FDLimit int64 `mapstructure:"fd_limit" validate:"gte=0"`
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on
	Enabled bool `mapstructure:"enabled"`

	// ListenAddress is the host:port the metrics HTTP server binds to
	// Only used when Enabled is true
	ListenAddress string `mapstructure:"listen_address"`
}

// ExportConfig defines a single export.
type ExportConfig struct {
	// ID is the export's numeric identifier, unique in the process
	ID uint16 `mapstructure:"id"`

	// Path is the export mount path (e.g., "/export")
	Path string `mapstructure:"path" validate:"required,startswith=/"`

	// ForceCommit makes every write behave as if the client requested a
	// stable write
	ForceCommit bool `mapstructure:"force_commit"`

	// CanSetTime allows clients to set explicit timestamps
	CanSetTime bool `mapstructure:"can_set_time"`

	// LinkPermissionChecks delegates hard-link permission checking to the
	// backend instead of the generic pre-check
	LinkPermissionChecks bool `mapstructure:"link_permission_checks"`

	// ReopenMethod lets open files change mode atomically instead of
	// through a close/open cycle
	ReopenMethod bool `mapstructure:"reopen_method"`

	// RootAttr specifies attributes for the export root directory
	RootAttr RootAttrConfig `mapstructure:"root_attr" validate:"required"`
}

// RootAttrConfig specifies root directory attributes.
type RootAttrConfig struct {
	// Mode is the Unix permission mode (e.g., 0755)
	Mode uint32 `mapstructure:"mode" validate:"lte=511"` // 511 = 0777 in decimal

	// UID is the owner user ID
	UID uint32 `mapstructure:"uid"`

	// GID is the owner group ID
	GID uint32 `mapstructure:"gid"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MDFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use MDFS_ prefix and underscores
	// Example: MDFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("MDFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/mdfs/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		// Other errors are problems
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mdfs")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "mdfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
