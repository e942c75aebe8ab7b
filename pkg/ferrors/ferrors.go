// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ferrors implements the structured error kinds of the invocation
// plane's error handling design: Validation, NotFound, Auth, Limit, Timeout,
// Cancelled, Transport, and Sandbox errors, each carrying an optional code
// and retryable hint so callers can make policy decisions without string
// matching.
package ferrors

import (
	"errors"
	"fmt"
)

// Kind names one of the structured error categories.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindNotFound   Kind = "NotFoundError"
	KindAuth       Kind = "AuthError"
	KindLimit      Kind = "LimitError"
	KindTimeout    Kind = "TimeoutError"
	KindCancelled  Kind = "CancelledError"
	KindTransport  Kind = "TransportError"
	KindSandbox    Kind = "SandboxError"
)

// LimitSubcategory further classifies a LimitError.
type LimitSubcategory string

const (
	LimitMemory      LimitSubcategory = "Memory"
	LimitCPU         LimitSubcategory = "CPU"
	LimitTokenBudget LimitSubcategory = "TokenBudget"
	LimitRateLimit   LimitSubcategory = "RateLimit"
)

// Error is the structured error value surfaced across the invocation plane.
// It mirrors the wire shape {name, message, code?, stack?, retryable?}.
type Error struct {
	Kind      Kind
	Message   string
	Code      string
	Stack     string
	Retryable bool
	Sub       LimitSubcategory // only meaningful when Kind == KindLimit
	Cause     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code=%s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, ferrors.Validation("")) style kind checks by
// comparing Kind (message/code are ignored).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newErr(kind Kind, retryable bool, msg string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(msg, args...), Retryable: retryable}
}

// Validation builds a ValidationError. Never retryable.
func Validation(msg string, args ...any) *Error {
	return newErr(KindValidation, false, msg, args...)
}

// NotFound builds a NotFoundError.
func NotFound(msg string, args ...any) *Error {
	return newErr(KindNotFound, false, msg, args...)
}

// Auth builds an AuthError. Reserved for external collaborators; the core
// itself never decides auth.
func Auth(msg string, args ...any) *Error {
	return newErr(KindAuth, false, msg, args...)
}

// Limit builds a LimitError with the given subcategory.
func Limit(sub LimitSubcategory, msg string, args ...any) *Error {
	e := newErr(KindLimit, false, msg, args...)
	e.Sub = sub
	return e
}

// Timeout builds a TimeoutError. Always retryable.
func Timeout(msg string, args ...any) *Error {
	return newErr(KindTimeout, true, msg, args...)
}

// Cancelled builds a CancelledError. retryable is the caller's choice.
func Cancelled(retryable bool, msg string, args ...any) *Error {
	return newErr(KindCancelled, retryable, msg, args...)
}

// Transport builds a TransportError. Retryable by default.
func Transport(cause error, msg string, args ...any) *Error {
	e := newErr(KindTransport, true, msg, args...)
	e.Cause = cause
	return e
}

// Sandbox builds a SandboxError for an exception thrown inside user code.
// Not retryable; stack is the inner (user-code) stack trace, preserved
// verbatim.
func Sandbox(stack string, msg string, args ...any) *Error {
	e := newErr(KindSandbox, false, msg, args...)
	e.Stack = stack
	return e
}

// AsStructured extracts the *Error from err, if any.
func AsStructured(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err is a structured *Error marked retryable.
// Non-structured errors are treated as not retryable.
func IsRetryable(err error) bool {
	e, ok := AsStructured(err)
	return ok && e.Retryable
}
