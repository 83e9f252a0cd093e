package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Every error produced by the engine matches exactly one
// of these through errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrConfiguration          = errors.New("configuration error")
	ErrNotEligible            = errors.New("driver not eligible for promotion")
	ErrAlreadyMaxLevel        = errors.New("driver already at max level")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotFound               = errors.New("driver not found")
	ErrAlreadyExists          = errors.New("driver already exists")
	ErrInactive               = errors.New("driver inactive")

	// ErrVersionConflict is returned by stores when a conditional write
	// observes a newer version. Callers retry once, then report
	// ErrConcurrentModification.
	ErrVersionConflict = errors.New("version conflict")
)

// ValidationError reports an input rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Unwrap exposes the ErrValidation kind.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConfigurationError reports an unusable ladder. It is fatal at load time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

// Unwrap exposes the ErrConfiguration kind.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// NotEligibleError carries every unmet criterion so callers can show all of them.
type NotEligibleError struct {
	DriverID string
	Reasons  []string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrNotEligible, e.DriverID, strings.Join(e.Reasons, "; "))
}

// Unwrap exposes the ErrNotEligible kind.
func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

// UnmetReasons extracts the reasons from a NotEligibleError anywhere in err's chain.
func UnmetReasons(err error) []string {
	var ne *NotEligibleError
	if errors.As(err, &ne) {
		return ne.Reasons
	}
	return nil
}
