// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package apperror classifies failures by kind so callers can switch on
// cause instead of parsing error strings, mirroring the DB-error
// classification style used throughout the stores.
package apperror

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy of the system.
type Kind string

const (
	Config              Kind = "config"
	Transport           Kind = "transport"
	MiddlewareRejection Kind = "middleware_rejection"
	CacheError          Kind = "cache_error"
	CookieSerialization Kind = "cookie_serialization"
	ProtocolShape       Kind = "protocol_shape"
	AuthNeeded          Kind = "auth_needed"
	Timeout             Kind = "timeout"
	DBConstraint        Kind = "db_constraint"
	DBNotFound          Kind = "db_not_found"
	AuthZ               Kind = "authz"
	UserInput           Kind = "user_input"
)

// Error wraps an underlying cause with a Kind and optional context.
type Error struct {
	Kind    Kind
	Message string
	Field   string // e.g. failing selector/path for ProtocolShape
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.Field, e.Cause)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithField attaches a field/selector/path to an error, for ProtocolShape diagnostics.
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
