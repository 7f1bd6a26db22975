// Package coreerr implements the error taxonomy from spec.md §7 as typed,
// inspectable error values — generalising the teacher repo's single
// model.ErrValidation into one struct per error kind so handlers can map
// kinds to transport status codes with errors.As instead of string matching.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-checkable error classification.
type Kind string

const (
	// Validation.
	KindInsufficientStake    Kind = "InsufficientStake"
	KindNegativeAmount       Kind = "NegativeAmount"
	KindInvalidAddressFormat Kind = "InvalidAddressFormat"
	KindEmptyCapabilities    Kind = "EmptyCapabilities"
	KindDeadlineInPast       Kind = "DeadlineInPast"
	KindInvalidField         Kind = "InvalidField"

	// Authorization.
	KindUnauthorized          Kind = "Unauthorized"
	KindComplianceDenied      Kind = "ComplianceDenied"
	KindComplianceRequireInfo Kind = "ComplianceRequireInfo"

	// State.
	KindNotFound          Kind = "NotFound"
	KindAlreadySettled    Kind = "AlreadySettled"
	KindAlreadyRegistered Kind = "AlreadyRegistered"
	KindExpiredEscrow     Kind = "ExpiredEscrow"

	// Cryptographic.
	KindInvalidProof  Kind = "InvalidProof"
	KindAgentMismatch Kind = "AgentMismatch"
	KindReplayedProof Kind = "ReplayedProof"

	// Capacity.
	KindRateLimited Kind = "RateLimited"
	KindQueueFull   Kind = "QueueFull"

	// Transport (transient, retryable).
	KindTransportTimeout Kind = "TransportTimeout"
	KindTransportFailed  Kind = "TransportFailed"

	// Fatal.
	KindStorageCorruption Kind = "StorageCorruption"
)

// Error is the single error type returned by every public component
// operation. Field and Constraint are populated for validation errors only;
// they never carry subject PII (spec.md §7).
type Error struct {
	Kind       Kind
	Message    string
	Field      string // offending field, validation errors only
	Constraint string // constraint that was violated, validation errors only
	RetryAfter string // hint for RateLimited, e.g. "2s"
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s constraint=%s)", e.Kind, e.Message, e.Field, e.Constraint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is(err, &coreerr.Error{Kind: ...}) style matching by
// comparing kinds; a target that is not a *Error never matches.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a plain Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf builds a plain Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation-kind error carrying the offending field and
// the constraint that was violated, per spec.md §7's user-visible contract.
func Validation(kind Kind, field, constraint, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Field: field, Constraint: constraint}
}

// RateLimited builds a capacity error carrying a retry-after hint.
func RateLimited(retryAfter string) *Error {
	return &Error{Kind: KindRateLimited, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and reports ok.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
