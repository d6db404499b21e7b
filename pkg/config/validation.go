package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Validate at least one export exists
	if len(cfg.Exports) == 0 {
		return fmt.Errorf("exports: at least one export must be configured")
	}

	// Validate export ids and paths are unique
	ids := make(map[uint16]bool)
	paths := make(map[string]bool)
	for i, export := range cfg.Exports {
		if ids[export.ID] {
			return fmt.Errorf("exports[%d]: duplicate export id %d", i, export.ID)
		}
		ids[export.ID] = true

		if paths[export.Path] {
			return fmt.Errorf("exports[%d]: duplicate export path %q", i, export.Path)
		}
		paths[export.Path] = true
	}

	// Validate the metrics endpoint has somewhere to listen
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics: enabled but listen_address is empty")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
