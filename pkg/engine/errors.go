package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: a locked database file, a dropped connection to the store.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassRecoverable indicates a failure confined to one simulation year.
	// The orchestration loop may skip the year and continue when fail_fast is off.
	ErrorClassRecoverable ErrorClass = "recoverable"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid configuration, inconsistent events, a broken invariant.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification for retry and recovery logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code identifies the error kind for programmatic handling.
	Code string `json:"code,omitempty"`

	// EmployeeID is the employee the error refers to, if applicable.
	EmployeeID string `json:"employee_id,omitempty"`

	// Year is the simulation year being processed, if applicable.
	Year int `json:"year,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Code == "" {
		msg = fmt.Sprintf("[%s] %s", e.Class, e.Message)
	}
	if e.Year != 0 {
		msg += fmt.Sprintf(" (year=%d)", e.Year)
	}
	if e.EmployeeID != "" {
		msg += fmt.Sprintf(" (employee=%s)", e.EmployeeID)
	}
	if e.Operation != "" {
		msg += fmt.Sprintf(" (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
// Two engine errors match when their class and code match.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithYear adds the simulation year to an error.
func (e *EngineError) WithYear(year int) *EngineError {
	e.Year = year
	return e
}

// WithEmployee adds employee context to an error.
func (e *EngineError) WithEmployee(employeeID string) *EngineError {
	e.EmployeeID = employeeID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode sets the error code.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error codes.
const (
	ErrCodeConfiguration          = "CONFIGURATION_ERROR"
	ErrCodeInsufficientPopulation = "INSUFFICIENT_POPULATION"
	ErrCodeEventConsistency       = "EVENT_CONSISTENCY_ERROR"
	ErrCodeOrphanedEvent          = "ORPHANED_EVENT"
	ErrCodeIRSCompliance          = "IRS_COMPLIANCE_ERROR"
	ErrCodeTransitionValidation   = "TRANSITION_VALIDATION_FAILED"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeStoreUnavailable       = "STORE_UNAVAILABLE"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Only Class and Code take part in the comparison.
var (
	ErrConfiguration          = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeConfiguration}
	ErrInsufficientPopulation = &EngineError{Class: ErrorClassRecoverable, Code: ErrCodeInsufficientPopulation}
	ErrEventConsistency       = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeEventConsistency}
	ErrOrphanedEvent          = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeOrphanedEvent}
	ErrIRSCompliance          = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeIRSCompliance}
	ErrTransitionValidation   = &EngineError{Class: ErrorClassRecoverable, Code: ErrCodeTransitionValidation}
	ErrNotFound               = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeNotFound}
)

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Code:    ErrCodeStoreUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError reports a missing snapshot, run or other stored record.
func NewNotFoundError(message string) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// NewConfigurationError reports invalid input parameters. It is raised before
// any year is processed.
func NewConfigurationError(message string) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeConfiguration,
		Message: message,
	}
}

// NewInsufficientPopulationError reports that a generator cannot satisfy its
// quota from the available population.
func NewInsufficientPopulationError(year int, stage string, available, requested int) *EngineError {
	return &EngineError{
		Class:     ErrorClassRecoverable,
		Code:      ErrCodeInsufficientPopulation,
		Message:   fmt.Sprintf("%s needs %d employees but only %d are active", stage, requested, available),
		Year:      year,
		Operation: stage,
		Details: map[string]interface{}{
			"available": available,
			"requested": requested,
		},
	}
}

// NewEventConsistencyError reports a causal violation between two events of one employee.
// prior may be nil when the offending event has no predecessor.
func NewEventConsistencyError(year int, employeeID, reason string, prior, offending *Event) *EngineError {
	e := &EngineError{
		Class:      ErrorClassPermanent,
		Code:       ErrCodeEventConsistency,
		Message:    reason,
		Year:       year,
		EmployeeID: employeeID,
		Operation:  "sequence",
	}
	if prior != nil {
		e.WithDetail("prior_event", describeEvent(prior))
	}
	if offending != nil {
		e.WithDetail("offending_event", describeEvent(offending))
	}
	return e
}

// NewOrphanedEventError reports an event for an employee that is neither in the
// starting workforce nor hired in the same year.
func NewOrphanedEventError(year int, event *Event) *EngineError {
	return &EngineError{
		Class:      ErrorClassPermanent,
		Code:       ErrCodeOrphanedEvent,
		Message:    fmt.Sprintf("%s event references an employee missing from the starting workforce", event.Type),
		Year:       year,
		EmployeeID: event.EmployeeID,
		Operation:  "materialize",
		Details:    map[string]interface{}{"event": describeEvent(event)},
	}
}

// NewIRSComplianceError signals that a contribution above the applicable limit
// reached a snapshot. It indicates a programming bug, not a user error.
func NewIRSComplianceError(year int, employeeID string, actual, limit string) *EngineError {
	return &EngineError{
		Class:      ErrorClassPermanent,
		Code:       ErrCodeIRSCompliance,
		Message:    fmt.Sprintf("contribution %s exceeds applicable limit %s", actual, limit),
		Year:       year,
		EmployeeID: employeeID,
		Operation:  "materialize",
	}
}

// TransitionValidationError carries the failing checks of a year transition.
type TransitionValidationError struct {
	Year   int
	Failed []CheckResult
}

// Error implements the error interface.
func (e *TransitionValidationError) Error() string {
	msg := fmt.Sprintf("[%s] year %d failed %d transition check(s)", ErrCodeTransitionValidation, e.Year, len(e.Failed))
	for _, c := range e.Failed {
		msg += fmt.Sprintf("; %s: expected %s, actual %s", c.Name, c.Expected, c.Actual)
	}
	return msg
}

// Is matches ErrTransitionValidation.
func (e *TransitionValidationError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && t.Code == ErrCodeTransitionValidation
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRecoverable reports whether the orchestration loop may skip the failed
// year and continue when fail_fast is disabled. Insufficient population,
// transition failures and causal inconsistencies are confined to one year.
// Configuration errors are not.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var tv *TransitionValidationError
	if errors.As(err, &tv) {
		return true
	}
	var e *EngineError
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case ErrCodeInsufficientPopulation, ErrCodeEventConsistency, ErrCodeOrphanedEvent, ErrCodeTransitionValidation:
		return true
	}
	return false
}

// ErrorCode returns the code of an engine error in err's chain, or "" when there is none.
func ErrorCode(err error) string {
	var tv *TransitionValidationError
	if errors.As(err, &tv) {
		return ErrCodeTransitionValidation
	}
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func describeEvent(e *Event) map[string]interface{} {
	return map[string]interface{}{
		"event_id":       e.ID,
		"event_type":     e.Type.String(),
		"effective_date": e.EffectiveDate.Format(time.DateOnly),
		"sequence":       e.Sequence,
	}
}
