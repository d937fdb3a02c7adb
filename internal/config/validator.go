package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration values using struct tags plus
// cross-field rules the tags cannot express.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a config Validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks the configuration and returns detailed error
// messages for every violated rule.
func (v *Validator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validation error: %w", err)
		}
		var messages []string
		for _, e := range validationErrs {
			messages = append(messages, formatValidationError(e))
		}
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(messages, "\n  - "))
	}

	// Rules the tags cannot express.
	if cfg.Resilience.MaxDelay < cfg.Resilience.InitialDelay {
		return fmt.Errorf("invalid configuration:\n  - resilience.max_delay must be at least resilience.initial_delay")
	}
	return nil
}

// formatValidationError formats a single violation with its field path.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath lowercases the struct namespace into the dotted key
// form used in the YAML file.
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // drop the root struct name
	}
	for i, p := range parts {
		parts[i] = toSnakeCase(p)
	}
	return strings.Join(parts, ".")
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
