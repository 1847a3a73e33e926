// Package vectorindex provides interfaces and types for vector similarity
// search backends.
//
// It defines the Index interface that all vector index implementations must
// satisfy, along with the Payload type carried alongside each vector and
// the similarity metrics an implementation may support.
package vectorindex

import (
	"context"
	"errors"
)

// ErrDimMismatch indicates a query or stored vector's dimension does not
// match what the index expects.
var ErrDimMismatch = errors.New("vectorindex: dimension mismatch")

// ErrAlreadyExists indicates Insert was called with an id that is already
// searchable in the index.
var ErrAlreadyExists = errors.New("vectorindex: id already exists")

// Payload is the set of scalar fields stored alongside a vector, used for
// equality filtering during search and for hydrating search results without
// a round trip to the metadata store.
type Payload map[string]interface{}

// Metric identifies a vector similarity function. Every Index
// implementation reports scores as larger-is-better regardless of which
// metric it is configured with.
type Metric string

const (
	// MetricL2 uses Euclidean distance, folded into a score via
	// 1/(1+distance).
	MetricL2 Metric = "l2"

	// MetricIP uses raw inner product as the score.
	MetricIP Metric = "ip"

	// MetricCosine normalizes both vectors and uses their inner product,
	// clamped to [0,1].
	MetricCosine Metric = "cosine"
)

// SearchResult is one match from a Search call.
type SearchResult struct {
	// ID is the vector's identifier, shared with the originating memory ID.
	ID string

	// Score is the similarity score, larger is better, regardless of Metric.
	Score float64

	// Payload is the stored payload for this vector.
	Payload Payload
}

// Index defines the interface for vector similarity search backends.
//
// All implementations (the in-process brute-force index, pgvector) must
// implement this interface. Implementations must be safe for concurrent use
// by multiple goroutines.
type Index interface {
	// Insert adds vector and payload under a fresh id. Returns
	// ErrAlreadyExists if id is already searchable.
	Insert(ctx context.Context, id string, vector []float32, payload Payload) error

	// Update replaces the vector and/or payload for an existing id. A nil
	// vector or payload leaves that field unchanged. May be implemented as
	// remove-then-add internally; id remains stable to callers either way.
	Update(ctx context.Context, id string, vector []float32, payload Payload) error

	// Search returns the topK closest vectors to query, optionally
	// restricted to vectors whose payload matches every key/value pair in
	// filter (equality only). Results are sorted by Score descending.
	Search(ctx context.Context, query []float32, topK int, filter Payload) ([]SearchResult, error)

	// Delete removes the vector with the given id. Deleting an id that
	// does not exist is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteAllForUser removes every entry whose payload user_id equals
	// uid. Returns the number of entries removed.
	DeleteAllForUser(ctx context.Context, uid string) (int64, error)

	// Dimensions returns the configured vector dimension D.
	Dimensions() int

	// Ping reports whether the index is initialized with its configured
	// dimension and ready to serve requests.
	Ping(ctx context.Context) (bool, error)

	// Close releases resources held by the index, persisting any
	// outstanding mutations.
	Close() error
}
