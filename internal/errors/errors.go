package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess       Code = 0
	CodeInternal      Code = 1
	CodeUsage         Code = 2
	CodeAuth          Code = 10
	CodeRateLimited   Code = 11
	CodeUnavailable   Code = 12
	CodeUnsupported   Code = 13
	CodePartialStrict Code = 14
	CodeBlocked       Code = 15

	// Pipeline codes. CodeSigner covers an unreachable signer and is safe to
	// retry; CodeSignerRejected and CodeSubmission are terminal rejections.
	// CodePending marks a confirmation timeout, which is not a failure: the
	// transaction hash stays valid for later re-polling.
	CodeResolution     Code = 20
	CodeSigner         Code = 21
	CodeSignerRejected Code = 22
	CodeSubmission     Code = 23
	CodePending        Code = 24
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if typed, ok := As(err); ok {
		return int(typed.Code)
	}
	return int(CodeInternal)
}

// Retryable reports whether the error class is transient from the caller's
// point of view. Terminal rejections from the signer or a chain RPC must
// never be auto-retried.
func Retryable(err error) bool {
	typed, ok := As(err)
	if !ok {
		return false
	}
	switch typed.Code {
	case CodeUnavailable, CodeRateLimited, CodeSigner:
		return true
	default:
		return false
	}
}

// Deepest returns the most specific message available for user display,
// walking to the innermost cause before falling back to a generic message.
func Deepest(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	deepest := err
	for {
		next := errors.Unwrap(deepest)
		if next == nil {
			break
		}
		deepest = next
	}
	msg := deepest.Error()
	if msg == "" {
		return fallback
	}
	return msg
}
