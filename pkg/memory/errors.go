package memory

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the taxonomy the service reports on.
type Kind string

const (
	// KindConfig indicates a missing or multi-valued provider selection.
	// Fatal at construction.
	KindConfig Kind = "config_error"

	// KindConnection indicates a metadata store or vector index ping
	// failed at startup. Fatal at construction.
	KindConnection Kind = "connection_error"

	// KindEmbedding indicates the embedding client raised or returned a
	// wrong dimension.
	KindEmbedding Kind = "embedding_failure"

	// KindLLM indicates an LLM transport failure, surfaced after the
	// caller's retry budget (extraction/reconciliation) is exhausted.
	KindLLM Kind = "llm_failure"

	// KindExtraction indicates the extractor could not obtain valid JSON
	// within its retry budget.
	KindExtraction Kind = "extraction_failure"

	// KindReconciler indicates the reconciler could not obtain valid JSON
	// within its retry budget.
	KindReconciler Kind = "reconciler_failure"

	// KindInvalidTarget indicates a structurally valid but semantically
	// wrong operation was downgraded to NOOP.
	KindInvalidTarget Kind = "invalid_target"

	// KindInconsistentUpdate indicates an UPDATE's metadata-store write
	// succeeded but its vector-index write failed.
	KindInconsistentUpdate Kind = "inconsistent_update"

	// KindInconsistentDelete indicates a DELETE succeeded on only one of
	// the two stores.
	KindInconsistentDelete Kind = "inconsistent_delete"

	// KindDimMismatch indicates a vector presented to the vector index has
	// a dimension other than the configured D.
	KindDimMismatch Kind = "dim_mismatch"
)

// Predefined sentinel errors for common failure scenarios, usable with
// errors.Is.
var (
	// ErrNotFound indicates a requested memory was not found.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMultipleProviders indicates more than one provider choice was
	// present under a single configuration group.
	ErrMultipleProviders = errors.New("more than one provider configured for a single group")

	// ErrDimMismatch indicates a vector's dimension does not match the
	// process-wide configured dimension D.
	ErrDimMismatch = errors.New("embedding dimension mismatch")
)

// Error wraps an underlying error with operation context and a taxonomy
// Kind, making failures easy to classify and to log with structured fields.
//
// Example:
//
//	err := &Error{Op: "Write", Kind: KindEmbedding, Err: io.ErrUnexpectedEOF}
//	// Error() returns: "memory: Write: embedding_failure: unexpected EOF"
type Error struct {
	// Op is the name of the operation that failed.
	Op string

	// Kind classifies the failure per the error taxonomy.
	Kind Kind

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message: "memory: <Op>: <Kind>: <Err>".
func (e *Error) Error() string {
	return fmt.Sprintf("memory: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error wrapping err with operation and taxonomy
// context. Returns nil if err is nil, so callers can write:
//
//	if err != nil {
//	    return nil, NewError("Write", KindLLM, err)
//	}
func NewError(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
