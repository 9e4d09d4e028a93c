/*
errors.go - Centralized error types for the engine

PURPOSE:
  Structural invariant violations are reported as errors. Business edge cases
  (no anchor, unreachable goal) are NOT errors; they come back as nil/false.

ERROR CATEGORIES:
  1. Validation errors - Malformed rules, periods and anchor sets
  2. Lookup errors - Referenced scenario or goal doesn't exist

SEE ALSO:
  - anchor.go: Rejects duplicate anchors at construction
  - types.go: Rule.Validate
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
	// ErrDuplicateAnchor is returned when two anchors share a date and scope.
	ErrDuplicateAnchor = errors.New("duplicate balance anchor")

	// ErrInvalidRule is returned when a rule violates its invariants.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period")

	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrGoalNotFound      = errors.New("savings goal not found")
	ErrNoDefaultScenario = errors.New("no default scenario")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateAnchorError identifies the colliding anchor.
type DuplicateAnchorError struct {
	Date  Date
	Scope Scope
}

func (e *DuplicateAnchorError) Error() string {
	return fmt.Sprintf("duplicate balance anchor on %s for %s", e.Date, e.Scope)
}

func (e *DuplicateAnchorError) Unwrap() error {
	return ErrDuplicateAnchor
}

// RuleError names the offending field of an invalid rule.
type RuleError struct {
	RuleID  RuleID
	Field   string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s %s", e.RuleID, e.Field, e.Message)
}

func (e *RuleError) Unwrap() error {
	return ErrInvalidRule
}

type PeriodError struct {
	Period Period
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidPeriod, e.Period)
}

func (e *PeriodError) Unwrap() error {
	return ErrInvalidPeriod
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDuplicateAnchor)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateAnchor)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrGoalNotFound) ||
		errors.Is(err, ErrNoDefaultScenario)
}
