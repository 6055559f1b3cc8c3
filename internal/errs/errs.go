// Package errs defines the closed CoreError taxonomy shared by every layer
// of cortexstore, mirroring the sub-kind grouping of storage, temporal,
// confidence, reachability, validation, and batch failures.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a CoreError sub-kind. The set is closed: new kinds must be
// added here, never synthesized ad hoc at call sites.
type Kind string

const (
	// Storage kinds.
	KindSqliteError   Kind = "storage.sqlite_error"
	KindSchemaMismatch Kind = "storage.schema_mismatch"
	KindMigrationFailed Kind = "storage.migration_failed"
	KindLockPoisoned   Kind = "storage.lock_poisoned"
	KindDeserialization Kind = "storage.deserialization"
	KindNotFound       Kind = "storage.not_found"

	// Temporal kinds.
	KindUnknownEventType    Kind = "temporal.unknown_event_type"
	KindSchemaVersionTooNew Kind = "temporal.schema_version_too_new"
	KindReplayInconsistent  Kind = "temporal.replay_inconsistent"
	KindInvalidTransition   Kind = "temporal.invalid_transition"

	// Confidence kinds.
	KindNonFiniteWeight Kind = "confidence.non_finite_weight"
	KindFeedbackOverflow Kind = "confidence.feedback_overflow"

	// Reachability kinds.
	KindNodeNotFound  Kind = "reachability.node_not_found"
	KindDepthExceeded Kind = "reachability.depth_exceeded"

	// Validation kinds.
	KindContradictionLoop Kind = "validation.contradiction_loop"

	// Batch kinds.
	KindChannelClosed  Kind = "batch.channel_closed"
	KindShutdownFailed Kind = "batch.shutdown_failed"

	// View kinds.
	KindDuplicateLabel Kind = "views.duplicate_label"
)

// CoreError wraps an underlying error with a closed Kind and the operation
// that produced it, so callers can match on Kind via errors.As/Is without
// string comparison.
type CoreError struct {
	Kind Kind
	Op   string
	Err  error

	// Fields carries kind-specific structured detail (e.g. "which" for
	// LockPoisoned, "from"/"to" for InvalidTransition, "expected_hash"/
	// "actual_hash" for ReplayInconsistent). Optional.
	Fields map[string]string
}

func (e *CoreError) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Is reports whether target is a *CoreError with the same Kind, so
// errors.Is(err, &CoreError{Kind: KindLockPoisoned}) works without needing
// the exact Op/Err/Fields to match.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return true
	}
	return t.Kind == e.Kind
}

// New constructs a CoreError with no wrapped cause.
func New(kind Kind, op string) *CoreError {
	return &CoreError{Kind: kind, Op: op}
}

// Wrap constructs a CoreError wrapping err under kind/op.
func Wrap(kind Kind, op string, err error) *CoreError {
	if err == nil {
		return nil
	}
	return &CoreError{Kind: kind, Op: op, Err: err}
}

// WithField attaches a structured detail field and returns the receiver for
// chaining: errs.Wrap(...).WithField("which", "writer").
func (e *CoreError) WithField(key, value string) *CoreError {
	if e.Fields == nil {
		e.Fields = make(map[string]string, 1)
	}
	e.Fields[key] = value
	return e
}

// Field returns a structured detail field, or "" if absent.
func (e *CoreError) Field(key string) string {
	if e.Fields == nil {
		return ""
	}
	return e.Fields[key]
}

// Of reports whether err (or any error it wraps) is a *CoreError of kind.
func Of(err error, kind Kind) bool {
	var ce *CoreError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}

// LockPoisoned builds the storage.lock_poisoned error naming the poisoned
// slot ("writer" or "reader-N").
func LockPoisoned(op, which string) *CoreError {
	return New(KindLockPoisoned, op).WithField("which", which)
}

// InvalidTransition builds the temporal.invalid_transition error naming the
// rejected from/to state pair.
func InvalidTransition(op, from, to string) *CoreError {
	return New(KindInvalidTransition, op).WithField("from", from).WithField("to", to)
}

// ReplayInconsistent builds the temporal.replay_inconsistent error naming the
// expected vs. actual state hash.
func ReplayInconsistent(op, expectedHash, actualHash string) *CoreError {
	return New(KindReplayInconsistent, op).
		WithField("expected_hash", expectedHash).
		WithField("actual_hash", actualHash)
}

// Deserialization builds the storage.deserialization error naming the field
// that failed to parse and why.
func Deserialization(op, field, reason string) *CoreError {
	return New(KindDeserialization, op).WithField("field", field).WithField("reason", reason)
}

// DuplicateLabel builds the views.duplicate_label error naming the label
// that already has a view bound to it.
func DuplicateLabel(op, label string) *CoreError {
	return New(KindDuplicateLabel, op).WithField("label", label)
}
