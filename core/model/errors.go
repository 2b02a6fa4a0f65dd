package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every parameter validation failure.
	ErrInvalidConfig = errors.New("invalid system configuration")
	// ErrIncompatibleReference is returned when a system is not certified
	// for the selected reference case.
	ErrIncompatibleReference = errors.New("system not suitable with selected reference case")
)

// ConfigError reports a single invalid or missing parameter.
type ConfigError struct {
	System string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.System != "" {
		return fmt.Sprintf("system %s: %s: %s", e.System, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
