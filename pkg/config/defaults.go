package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyCacheDefaults(&cfg.Cache)
	applyMetricsDefaults(&cfg.Metrics)

	// Add default export if none configured
	if len(cfg.Exports) == 0 {
		cfg.Exports = []ExportConfig{
			{
				ID:         1,
				Path:       "/export",
				CanSetTime: true,
			},
		}
	}

	applyExportDefaults(cfg.Exports)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyCacheDefaults sets metadata cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.FDLimit == 0 {
		cfg.FDLimit = 4096
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":9090"
	}
}

// applyExportDefaults sets export defaults.
func applyExportDefaults(exports []ExportConfig) {
	for i := range exports {
		export := &exports[i]

		// IDs default to position, starting at 1
		if export.ID == 0 {
			export.ID = uint16(i + 1)
		}

		// ForceCommit defaults to false (honor client stability requests)
		// LinkPermissionChecks defaults to false (generic pre-check applies)
		// ReopenMethod defaults to false (close/open cycle)

		applyRootAttrDefaults(&export.RootAttr)
	}
}

// applyRootAttrDefaults sets root directory attribute defaults.
func applyRootAttrDefaults(cfg *RootAttrConfig) {
	if cfg.Mode == 0 {
		cfg.Mode = 0755
	}
	// UID and GID default to 0 (root) if not specified
	// This is acceptable since these are the root directory attributes
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Exports: []ExportConfig{
			{
				ID:         1,
				Path:       "/export",
				CanSetTime: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
