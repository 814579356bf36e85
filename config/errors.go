package config

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common configuration states
var (
	// ErrMissingCredential indicates no API key was given explicitly or through the environment
	ErrMissingCredential = errors.New("no API key given")
)

// ConfigError represents a configuration error with actionable guidance.
// All error messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string   // error category: "missing", "invalid", "load"
	Field    string   // config field path (e.g., "apikey", "retry.maxcumulativedelay")
	Message  string   // user-friendly error message (lowercase)
	Action   string   // actionable instruction (lowercase)
	Details  []string // additional details or examples
	Err      error    // underlying cause, if any
}

// Error implements the error interface with lowercase formatting.
func (e *ConfigError) Error() string {
	var parts []string

	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}

	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying cause so errors.Is works against sentinels.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewMissingCredentialError creates the error returned when no API key can be resolved.
func NewMissingCredentialError() *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    keyAPIKey,
		Message:  ErrMissingCredential.Error(),
		Action:   fmt.Sprintf("set %s env var or pass WithAPIKey", EnvAPIKey),
		Err:      ErrMissingCredential,
	}
}

// NewInvalidFieldError creates an error for an invalid configuration value.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}

	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}

	return err
}

// NewLoadError creates an error for a configuration source that could not be read.
func NewLoadError(source string, err error) *ConfigError {
	return &ConfigError{
		Category: "load",
		Field:    source,
		Message:  "could not be loaded",
		Details:  []string{err.Error()},
		Err:      err,
	}
}

// IsMissingCredential reports whether err signals a missing API key.
func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}
