/*
errors.go - Centralized error types for the evaluation engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Domain packages (leave, alerts) wrap these with additional context.

ERROR CATEGORIES:
  1. Configuration errors - a requirement missing its due-date payload
  2. Not-found errors - referenced members/requirements/certifications
  3. Validation errors - malformed windows or inputs

USAGE:
  if errors.Is(err, engine.ErrConfiguration) {
      // surface immediately; never silently defaulted
  }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned when a requirement is missing the
	// configuration its due-date type demands (e.g., rolling without a
	// period length). Fatal; the engine never guesses a default.
	ErrConfiguration = errors.New("requirement configuration invalid")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrRequirementNotFound is returned when a referenced requirement doesn't exist.
	ErrRequirementNotFound = errors.New("requirement not found")

	// ErrCertificationNotFound is returned when a referenced certification doesn't exist.
	ErrCertificationNotFound = errors.New("certification not found")

	// ErrInvalidWindow is returned when a window is malformed (end before start).
	ErrInvalidWindow = errors.New("invalid window: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError identifies exactly which requirement field is broken.
type ConfigurationError struct {
	RequirementID RequirementID
	Field         string
	Reason        string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("requirement %s: %s: %s", e.RequirementID, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrRequirementNotFound) ||
		errors.Is(err, ErrCertificationNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrInvalidWindow)
}
