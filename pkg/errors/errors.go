package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a named row, config, study or scalar is absent
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that input failed a structural check
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPath indicates that a path could not be written, deleted or copied
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidArgument indicates that a required input was nil
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIncompleteStudy indicates that not every simulation in a study succeeded
	ErrIncompleteStudy = errors.New("incomplete study")

	// ErrAuthentication indicates that the platform rejected or never granted a session
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnavailable indicates that the platform is failing and calls are being short-circuited
	ErrUnavailable = errors.New("platform unavailable")
)

// Error represents a structured SDK error
type Error struct {
	// Kind is one of the sentinel errors above and drives errors.Is
	Kind error

	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message naming the offending entity
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewError creates a new SDK error of the given kind
func NewError(kind error, code, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates an error for a missing entity
func NewNotFoundError(message, code string) *Error {
	return NewError(ErrNotFound, code, message, nil)
}

// NewValidationError creates an error for input that failed validation
func NewValidationError(message, code string, err error) *Error {
	return NewError(ErrValidation, code, message, err)
}

// NewInvalidArgumentError creates an error for a nil required input
func NewInvalidArgumentError(message, code string) *Error {
	return NewError(ErrInvalidArgument, code, message, nil)
}

// NewAuthenticationError creates an error for a failed authentication
func NewAuthenticationError(message, code string, err error) *Error {
	return NewError(ErrAuthentication, code, message, err)
}

// NewUnavailableError creates an error for a short-circuited platform call
func NewUnavailableError(message, code string, err error) *Error {
	return NewError(ErrUnavailable, code, message, err)
}

// PathError reports a path that could not be resolved for a mutation or copy.
type PathError struct {
	// Op is the operation that failed: "write", "delete" or "copy"
	Op string

	// Path is the full slash-delimited path
	Path string

	// Segment is the segment that could not be resolved
	Segment string

	// Reason describes why resolution failed
	Reason string
}

func (e *PathError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("%s '%s': segment '%s' %s", e.Op, e.Path, e.Segment, e.Reason)
	}
	return fmt.Sprintf("%s '%s': %s", e.Op, e.Path, e.Reason)
}

// Is matches ErrInvalidPath
func (e *PathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// IncompleteStudyError is returned when a fetched study has failed or pending simulations.
// The counts let callers decide whether to re-run with different inputs.
type IncompleteStudyError struct {
	StudyID   string
	Succeeded int
	Total     int
}

func (e *IncompleteStudyError) Error() string {
	return fmt.Sprintf("not all simulations in study '%s' succeeded: succeeded %d, total %d",
		e.StudyID, e.Succeeded, e.Total)
}

// Is matches ErrIncompleteStudy
func (e *IncompleteStudyError) Is(target error) bool {
	return target == ErrIncompleteStudy
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidPath checks if an error is a path error
func IsInvalidPath(err error) bool {
	return errors.Is(err, ErrInvalidPath)
}

// IsInvalidArgument checks if an error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsIncompleteStudy checks if an error is an incomplete study error
func IsIncompleteStudy(err error) bool {
	return errors.Is(err, ErrIncompleteStudy)
}

// IsAuthentication checks if an error is an authentication error
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsUnavailable checks if an error is a short-circuited platform error
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
