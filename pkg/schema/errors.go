package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeLookup                 = "LOOKUP_ERROR"
	ErrCodeIncompatible           = "INCOMPATIBLE_CONTRIBUTION"
	ErrCodeMutationAfterCreation  = "MUTATION_AFTER_CREATION"
	ErrCodeContributionAfterPhase = "CONTRIBUTION_AFTER_PHASE"
	ErrCodeInterceptorAfterPhase  = "INTERCEPTOR_AFTER_PHASE"
	ErrCodeActionReplaced         = "ACTION_REPLACED"
	ErrCodeInvalidPhase           = "INVALID_PHASE"
	ErrCodeEvaluation             = "EVALUATION_ERROR"
	ErrCodeExecution              = "EXECUTION_ERROR"
	ErrCodeContract               = "CONTRACT_ERROR"
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeConflict               = "CONFLICT"
	ErrCodeStore                  = "STORE_ERROR"
)

// Location points at the template construct an error originated from.
type Location struct {
	Template string `json:"template,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// IsZero reports whether no location information is set.
func (l Location) IsZero() bool {
	return l.Template == "" && l.Line == 0
}

func (l Location) String() string {
	switch {
	case l.Template != "" && l.Line > 0:
		return fmt.Sprintf("%s:%d", l.Template, l.Line)
	case l.Line > 0:
		return fmt.Sprintf("line %d", l.Line)
	default:
		return l.Template
	}
}

// StencilError is the structured error type for all pipeline operations.
type StencilError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	Location *Location      `json:"location,omitempty"`
	Cause    error          `json:"-"`
}

func (e *StencilError) Error() string {
	if e.Location != nil && !e.Location.IsZero() {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Location, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *StencilError) Unwrap() error {
	return e.Cause
}

// NewError creates a new StencilError.
func NewError(code, message string) *StencilError {
	return &StencilError{Code: code, Message: message}
}

// NewErrorf creates a new StencilError with a formatted message.
func NewErrorf(code, format string, args ...any) *StencilError {
	return &StencilError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithLocation attaches a source location to the error.
func (e *StencilError) WithLocation(loc Location) *StencilError {
	e.Location = &loc
	return e
}

// WithCause attaches an underlying cause.
func (e *StencilError) WithCause(err error) *StencilError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *StencilError) WithDetails(details map[string]any) *StencilError {
	e.Details = details
	return e
}

// CodeOf returns the code of the outermost StencilError in err's chain, or "".
func CodeOf(err error) string {
	var se *StencilError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether any StencilError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var se *StencilError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Cause
	}
	return false
}
