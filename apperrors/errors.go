// Package apperrors defines the error kinds every core operation fails with.
//
// Operations wrap one of the sentinels below with context:
//
//	return fmt.Errorf("%w: task %s", apperrors.ErrNotFound, id)
//
// and callers classify with errors.Is or KindOf.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStoreFailure     = errors.New("store failure")
)

type Kind int

const (
	KindStoreFailure Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindPermissionDenied:
		return "PermissionDenied"
	default:
		return "StoreFailure"
	}
}

// KindOf classifies err. Anything that does not wrap a known sentinel is a
// store failure: it came from a driver, not from a rule.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	default:
		return KindStoreFailure
	}
}

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func PermissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// StoreFailure wraps a driver error. A nil err yields nil so call sites can
// wrap unconditionally.
func StoreFailure(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreFailure, fmt.Sprintf(format, args...), err)
}
