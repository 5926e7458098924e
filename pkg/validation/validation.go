// Package validation collects field-level constraint violations into a
// single error value so callers can surface every problem at once.
package validation

import (
	"errors"
	"strings"
)

// Error is a validation failure carrying one message per violated
// constraint.
type Error struct {
	Violations []string
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// Check accumulates violations and yields either nil or a *Error.
type Check struct {
	violations []string
}

// Require adds msg as a violation when ok is false.
func (c *Check) Require(ok bool, msg string) {
	if !ok {
		c.violations = append(c.violations, msg)
	}
}

// Err returns nil when no constraint was violated.
func (c *Check) Err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &Error{Violations: c.violations}
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
