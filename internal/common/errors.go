package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInternal            = errors.New("internal error")
	ErrDatabase            = errors.New("database error")
	ErrEmptyInput          = errors.New("no purchase records")
	ErrMalformedInput      = errors.New("malformed input")
	ErrInternalConsistency = errors.New("internal consistency fault")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// EmptyInputError is returned when a ledger holds zero purchase records,
// so no reference date can be defined.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("empty input: %s has no purchase records", e.Source)
	}
	return "empty input: no purchase records"
}

func (e *EmptyInputError) Unwrap() error { return ErrEmptyInput }

// MalformedInputError reports a ledger that is missing a required column or
// holds a cell that cannot be parsed as its semantic type.
// Row is the 1-based row of the source table (the header is row 1); it is 0
// when the problem is not tied to one row, such as a missing column.
type MalformedInputError struct {
	Row    int
	Column string
	Value  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	b.WriteString("malformed input")
	if e.Row > 0 {
		fmt.Fprintf(&b, ": row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %q", e.Column)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, ": value %q", e.Value)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// InternalConsistencyFault signals that the per-customer aggregates did not
// share one key domain. It points at a logic defect, not at user data.
type InternalConsistencyFault struct {
	Missing []string
}

func (e *InternalConsistencyFault) Error() string {
	return fmt.Sprintf("internal consistency fault: aggregates disagree on %d customer id(s): %s",
		len(e.Missing), strings.Join(e.Missing, ", "))
}

func (e *InternalConsistencyFault) Unwrap() error { return ErrInternalConsistency }

// HTTPStatus maps an error to the status code the HTTP surface answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedInput), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the machine-readable code rendered next to an error message.
func ErrorCode(err error) string {
	var appErr *AppError
	switch {
	case errors.Is(err, ErrMalformedInput):
		return "MALFORMED_INPUT"
	case errors.Is(err, ErrEmptyInput):
		return "EMPTY_INPUT"
	case errors.Is(err, ErrInternalConsistency):
		return "INTERNAL_CONSISTENCY"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.As(err, &appErr):
		return appErr.Code
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return "INTERNAL"
	}
}
