package apperr

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches two AppErrors by code so wrapped instances compare with errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Transport(msg string, cause error) error {
	return Wrap(CodeTransport, msg, cause)
}

func Dedup(msg string) error {
	return New(CodeDedupFailure, msg)
}

func Load(msg string, cause error) error {
	return Wrap(CodeLoadFailure, msg, cause)
}

func Send(msg string, cause error) error {
	return Wrap(CodeSendFailure, msg, cause)
}

func Subscription(msg string, cause error) error {
	return Wrap(CodeSubscription, msg, cause)
}

// CodeOf extracts the application code from any error chain.
func CodeOf(err error) Code {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return CodeUnknown
}

// Retryable reports whether the failure class is worth a user-facing retry.
// Dedup protocol violations are not: the backend answered, but without a
// usable identifier.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeTransport, CodeLoadFailure, CodeSendFailure, CodeSubscription:
		return true
	default:
		return false
	}
}
