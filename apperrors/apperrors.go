// Package apperrors classifies failures so transports can map them to a
// response without inspecting messages.
package apperrors

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindInsufficientFunds
	KindNotFound
	KindConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	}
	return "infrastructure"
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.cause.Error()
	}
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *Error { return newError(KindValidation, code, msg) }

func InsufficientFunds(code, msg string) *Error { return newError(KindInsufficientFunds, code, msg) }

func NotFound(code, msg string) *Error { return newError(KindNotFound, code, msg) }

func Conflict(code, msg string) *Error { return newError(KindConflict, code, msg) }

func Forbidden(code, msg string) *Error { return newError(KindForbidden, code, msg) }

// Infra wraps a storage or queue failure. Errors that are already classified
// pass through untouched so a rollback keeps its original reason.
func Infra(err error, msg string) error {
	if err == nil {
		return nil
	}
	var app *Error
	if errors.As(err, &app) {
		return err
	}
	return &Error{
		Kind:    KindInfrastructure,
		Code:    "INTERNAL_ERROR",
		Message: msg,
		cause:   pkgerrors.Wrap(err, msg),
	}
}

func KindOf(err error) Kind {
	var app *Error
	if errors.As(err, &app) {
		return app.Kind
	}
	return KindInfrastructure
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func CodeOf(err error) string {
	var app *Error
	if errors.As(err, &app) {
		return app.Code
	}
	return "INTERNAL_ERROR"
}
