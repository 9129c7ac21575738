package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindIneligible          ErrorKind = "ineligible"
	KindForbidden           ErrorKind = "forbidden"
	KindNotFound            ErrorKind = "not_found"
	KindDuplicateAnnotation ErrorKind = "duplicate_annotation"
	KindDuplicateEvaluation ErrorKind = "duplicate_evaluation"
	KindInvalidState        ErrorKind = "invalid_state"
	KindConflict            ErrorKind = "conflict"
	KindUnavailable         ErrorKind = "unavailable"
)

// ServiceError is the typed failure returned by every workflow operation.
// Handlers translate Kind into an HTTP status.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, ErrNotFound).
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation          = &ServiceError{Kind: KindValidation}
	ErrUnauthorized        = &ServiceError{Kind: KindUnauthorized}
	ErrIneligible          = &ServiceError{Kind: KindIneligible}
	ErrForbidden           = &ServiceError{Kind: KindForbidden}
	ErrNotFound            = &ServiceError{Kind: KindNotFound}
	ErrDuplicateAnnotation = &ServiceError{Kind: KindDuplicateAnnotation}
	ErrDuplicateEvaluation = &ServiceError{Kind: KindDuplicateEvaluation}
	ErrInvalidState        = &ServiceError{Kind: KindInvalidState}
	ErrConflict            = &ServiceError{Kind: KindConflict}
	ErrUnavailable         = &ServiceError{Kind: KindUnavailable}
)

func NewValidationError(format string, args ...any) error {
	return &ServiceError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(msg string) error {
	return &ServiceError{Kind: KindUnauthorized, Message: msg}
}

func NewIneligibleError(format string, args ...any) error {
	return &ServiceError{Kind: KindIneligible, Message: fmt.Sprintf(format, args...)}
}

func NewForbiddenError(msg string) error {
	return &ServiceError{Kind: KindForbidden, Message: msg}
}

func NewNotFoundError(what string) error {
	return &ServiceError{Kind: KindNotFound, Message: what + " not found"}
}

func NewDuplicateAnnotationError() error {
	return &ServiceError{Kind: KindDuplicateAnnotation, Message: "you have already annotated this sentence"}
}

func NewDuplicateEvaluationError() error {
	return &ServiceError{Kind: KindDuplicateEvaluation, Message: "you have already evaluated this annotation"}
}

func NewInvalidStateError(format string, args ...any) error {
	return &ServiceError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(msg string) error {
	return &ServiceError{Kind: KindConflict, Message: msg}
}

func NewUnavailableError(msg string, err error) error {
	return &ServiceError{Kind: KindUnavailable, Message: msg, Err: err}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// notFoundOr maps gorm.ErrRecordNotFound to a typed not-found and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError(what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// isUniqueViolation reports whether err came from a unique index. gorm translates the
// error when TranslateError is enabled; the string checks cover connections opened without it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func isKind(err error, kind ErrorKind) bool {
	se, ok := AsServiceError(err)
	return ok && se.Kind == kind
}
