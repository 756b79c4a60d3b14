package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones with custom
// messages still match their predefined sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared by every endpoint.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Academic record errors.
var (
	ErrInvalidScore           = New("INVALID_SCORE", http.StatusBadRequest, "score must be between 0 and 100")
	ErrNotEnrolled            = New("NOT_ENROLLED", http.StatusUnprocessableEntity, "student is not enrolled in this course for the semester")
	ErrAlreadyActiveElsewhere = New("ALREADY_ACTIVE_ELSEWHERE", http.StatusConflict, "student already holds an active enrollment for this course")
	ErrInactiveCourse         = New("INACTIVE_COURSE", http.StatusUnprocessableEntity, "course is not active")
	ErrRelatedDataExists      = New("RELATED_DATA_EXISTS", http.StatusConflict, "resource is referenced by enrollments or grades")
)

// Grade authority denials. Each carries its own reason so callers can tell
// the three regimes apart.
var (
	ErrNotAssigned           = New("NOT_ASSIGNED", http.StatusForbidden, "teacher is not assigned to this course")
	ErrRecorderNotDesignated = New("RECORDER_NOT_DESIGNATED", http.StatusConflict, "course has multiple teachers and no grade recording teacher; an administrator must designate one")
	ErrNotDesignatedRecorder = New("NOT_DESIGNATED_RECORDER", http.StatusForbidden, "only the designated grade recording teacher may record grades for this course")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps an unexpected failure with a caller-facing message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
