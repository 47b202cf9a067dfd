// Package ferr defines the error taxonomy shared across the control plane,
// as described in spec.md §7. Every package in this module returns these
// kinds (wrapped with context via %w) instead of ad-hoc errors, so that the
// RPC boundary in internal/leader can translate a failure to a stable tag
// without inspecting error strings.
package ferr

import (
	"errors"
	"fmt"
)

// Kind tags an error so the RPC boundary can surface it without string
// matching. Never compare errors by message; use errors.Is against the
// sentinels below or Kind.Is on a *Error.
type Kind string

const (
	// Schema errors.
	KindTableNotFound        Kind = "TableNotFound"
	KindViewNotFound         Kind = "ViewNotFound"
	KindNoSuchColumn         Kind = "NoSuchColumn"
	KindMultipleAutoIncr     Kind = "MultipleAutoIncrement"
	KindInvalidNodeType      Kind = "InvalidNodeType"

	// Placement errors.
	KindNoSuchDomain         Kind = "NoSuchDomain"
	KindNoAvailableWorkers   Kind = "NoAvailableWorkers"
	KindReplicationUnknownWk Kind = "ReplicationUnknownWorker"
	KindUnmappableDomain     Kind = "UnmappableDomain"
	KindDomainCreationFailed Kind = "DomainCreationFailed"

	// Liveness errors.
	KindNoQuorum             Kind = "NoQuorum"
	KindTimeout              Kind = "Timeout"
	KindAuthorityUnavailable Kind = "AuthorityUnavailable"
	KindBusy                 Kind = "Busy"

	// Planning errors.
	KindUnsupported          Kind = "Unsupported"
	KindRecipeInvariant      Kind = "RecipeInvariantViolated"
	KindParse                Kind = "ParseError"

	// Data errors.
	KindTypeMismatch         Kind = "TypeMismatch"
	KindOutOfRange           Kind = "OutOfRange"
	KindEmptyKey             Kind = "EmptyKey"
	KindPreparedStmtMissing  Kind = "PreparedStatementMissing"

	// Replication errors.
	KindReplicationFailed Kind = "ReplicationFailed"
	KindInvalidURL        Kind = "InvalidUrl"

	// Internal escalation (authority CAS failure after in-memory apply
	// succeeded, per spec.md §7(d)); callers panic on this, they do not
	// retry it.
	KindInternal Kind = "Internal"
)

// Error is a taxonomy-tagged error carrying an optional reason string and
// wrapped cause.
type Error struct {
	Cause  error
	Reason string
	Kind   Kind
}

func (e *Error) Error() string {
	if e.Reason == "" && e.Cause == nil {
		return string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ferr.New(KindX, "")) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs a tagged error with a reason but no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs a tagged error around an existing cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Newf is New with a formatted reason.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, walking Unwrap chains. Returns
// KindInternal for untagged errors so the RPC boundary always has a tag to
// send back to the caller.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

// Is reports whether the first *Error in err's chain (the one KindOf
// finds) has the given kind; kinds of inner *Error causes are not checked.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
