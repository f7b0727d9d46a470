// Package apperrors carries the error outcomes the issue engine surfaces to
// callers. Each error has a Code the HTTP layer maps to a status; the Message
// is safe to show to the end user.
package apperrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation         Code = "validation"
	CodeUnauthorized       Code = "unauthorized"
	CodeAccessDenied       Code = "access_denied"
	CodeNotFound           Code = "not_found"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeInsufficientCredit Code = "insufficient_credit"
	CodeConfiguration      Code = "configuration"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and user-facing message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user-facing message, hiding internal causes.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}

func Denied(reason string) *Error { return New(CodeAccessDenied, reason) }

func NotFound(what string) *Error { return Newf(CodeNotFound, "%s not found", what) }

func Validation(msg string) *Error { return New(CodeValidation, msg) }

// InsufficientCredit carries the amounts so the caller can explain the shortfall.
type InsufficientCredit struct {
	Required  int64
	Available int64
}

func (e *InsufficientCredit) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func NewInsufficientCredit(required, available int64) *Error {
	return &Error{
		Code:    CodeInsufficientCredit,
		Message: "Insufficient credits",
		Err:     &InsufficientCredit{Required: required, Available: available},
	}
}
