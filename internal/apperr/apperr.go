// Package apperr defines the closed set of error kinds surfaced by the estimate
// core. Low-level failures are translated into these kinds once, at the storage
// boundary; handlers translate kinds into HTTP responses once.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies an error for callers.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindLimitReached
	KindStorageUnavailable
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindLimitReached:
		return "limit_reached"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindCorruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by the core.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "estimate.create".
	Op string
	// Violations lists every violated constraint (Validation and Corruption only).
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if len(e.Violations) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Violations, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind when target is one of the bare
// sentinels below, so errors.Is(err, ErrNotFound) works for wrapped errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && len(t.Violations) == 0 && t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrLimitReached       = &Error{Kind: KindLimitReached}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrCorruption         = &Error{Kind: KindCorruption}
)

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the caller may safely retry the action.
func Retryable(err error) bool {
	return KindOf(err) == KindStorageUnavailable
}

// ViolationsOf returns the constraint violations carried by err, if any.
func ViolationsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Violations
	}
	return nil
}

func Validation(op string, violations ...string) error {
	return &Error{Kind: KindValidation, Op: op, Violations: violations}
}

func Forbidden(op string) error {
	return &Error{Kind: KindForbidden, Op: op}
}

func NotFound(op string) error {
	return &Error{Kind: KindNotFound, Op: op}
}

func LimitReached(op string) error {
	return &Error{Kind: KindLimitReached, Op: op}
}

func StorageUnavailable(op string, err error) error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

func Corruption(op string, violations ...string) error {
	return &Error{Kind: KindCorruption, Op: op, Violations: violations}
}
