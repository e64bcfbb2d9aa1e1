// Package shared contains the storage error taxonomy and helpers for error handling.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors of the storage taxonomy.
var (
	// ErrConstraint indicates a unique, foreign-key, not-null or check violation
	ErrConstraint = errors.New("constraint violation")

	// ErrBusy indicates engine-level lock contention
	ErrBusy = errors.New("database busy")

	// ErrCorrupt indicates a malformed database image
	ErrCorrupt = errors.New("database corrupt")

	// ErrIO indicates a disk, permission or read-only failure
	ErrIO = errors.New("database i/o failure")

	// ErrUnavailable indicates that the write executor cannot accept work
	ErrUnavailable = errors.New("write executor unavailable")

	// ErrInvalid indicates a malformed statement, bad arguments or API misuse
	ErrInvalid = errors.New("invalid statement")

	// ErrNotFound indicates that a requested row was not found
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that a definition or input failed validation
	ErrValidation = errors.New("validation failed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// Kind represents a category of error for easier classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindConstraint is surfaced to the caller and never retried
	KindConstraint
	// KindBusy may be retried by the caller a bounded number of times
	KindBusy
	// KindCorrupt is fatal
	KindCorrupt
	// KindIO is fatal
	KindIO
	// KindUnavailable is surfaced immediately
	KindUnavailable
	// KindInvalid represents statement errors
	KindInvalid
	// KindNotFound represents missing rows
	KindNotFound
	// KindValidation represents definition-time failures
	KindValidation
	// KindTimeout represents deadline errors
	KindTimeout
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindConstraint:
		return "Constraint"
	case KindBusy:
		return "Busy"
	case KindCorrupt:
		return "Corrupt"
	case KindIO:
		return "IO"
	case KindUnavailable:
		return "Unavailable"
	case KindInvalid:
		return "Invalid"
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindTimeout:
		return "Timeout"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind must not be retried at all.
func (k Kind) Fatal() bool {
	return k == KindCorrupt || k == KindIO
}

var kindToSentinel = map[Kind]error{
	KindConstraint:  ErrConstraint,
	KindBusy:        ErrBusy,
	KindCorrupt:     ErrCorrupt,
	KindIO:          ErrIO,
	KindUnavailable: ErrUnavailable,
	KindInvalid:     ErrInvalid,
	KindNotFound:    ErrNotFound,
	KindValidation:  ErrValidation,
	KindTimeout:     ErrTimeout,
}

// kindPriorities defines the deterministic order for error classification.
// Higher priority (lower index) kinds are checked first in KindOf.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindTimeout, ErrTimeout},
	{KindCorrupt, ErrCorrupt},
	{KindIO, ErrIO},
	{KindUnavailable, ErrUnavailable},
	{KindBusy, ErrBusy},
	{KindConstraint, ErrConstraint},
	{KindNotFound, ErrNotFound},
	{KindValidation, ErrValidation},
	{KindInvalid, ErrInvalid},
}

// KindOf returns the Kind of the given error by checking against known sentinel errors.
// It traverses the error chain using a deterministic priority order, so for
// errors.Join values the most severe kind wins. Returns KindUnknown for
// unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for _, priority := range kindPriorities {
		switch priority.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, priority.err) {
				return priority.kind
			}
		}
	}

	return KindUnknown
}

// HasKind reports whether the given error has the specified kind.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// SentinelOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled, it returns nil.
func SentinelOf(kind Kind) error {
	return kindToSentinel[kind]
}

// MarkKind wraps an error with the sentinel of the given kind, preserving the
// original error. Marking an error with a kind it already has returns it unchanged.
func MarkKind(err error, kind Kind) error {
	if err == nil {
		return SentinelOf(kind)
	}

	sentinel := SentinelOf(kind)
	if sentinel == nil {
		return err
	}
	if KindOf(err) == kind {
		return err
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// If err is nil, Wrap returns nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Validationf returns a new error of kind Validation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout)
}

// IsConstraint reports whether the error is a constraint violation.
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint)
}

// IsBusy reports whether the error indicates lock contention.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsUnavailable reports whether the write executor rejected the work.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsNotFound reports whether the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether the error indicates a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
