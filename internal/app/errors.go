package app

import (
	"errors"
	"fmt"
)

// ErrInvalidTask and related errors describe command precondition failures.
var (
	ErrInvalidTask         = errors.New("task does not exist or is archived")
	ErrConcurrentMealBreak = errors.New("a meal break is already open for this date")
)

// Invariant rule names carried by ValidationError so callers always see
// which rule was violated, not just "operation failed".
const (
	RuleTimerAlreadyRunning = "timer.already_running"
	RuleSingleOpenEntry     = "entry.single_open"
	RuleEntryBounds         = "entry.bounds"
	RuleSingleActiveTask    = "task.single_active"
	RuleTaskExists          = "task.exists"
	RuleBreakBounds         = "meal_break.bounds"
	RuleSingleOpenBreak     = "meal_break.single_open_per_day"
	RuleCounterBounds       = "activity_counter.bounds"
	RuleSettingRange        = "settings.range"
)

// ValidationError reports a rejected write and the invariant it violated.
// The ledger is left unchanged.
type ValidationError struct {
	Rule   string
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation failed: %s", e.Rule)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Rule, e.Detail)
}

// validationErr builds a ValidationError for rule with an optional cause.
func validationErr(rule string, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &ValidationError{Rule: rule, Detail: detail}
}

// PersistenceError reports a durable-store failure. The in-memory ledger
// has been rolled back to its pre-mutation snapshot.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UnsupportedSchemaError is fatal at load time: the stored state was
// written by a newer schema and must not be read best-effort.
type UnsupportedSchemaError struct {
	Found     int
	Supported int
}

// Error implements the error interface.
func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("stored schema version %d is newer than supported version %d", e.Found, e.Supported)
}
