// Package metastore provides interfaces and types for the metadata store:
// the system of record for a memory's durable fields, independent of vector
// similarity. Rows are read by primary key and bulk-deleted by user; the
// backends also index user, type, source and timestamp, but Store exposes
// no query by type, source or time range.
package metastore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("metastore: not found")

// Memory represents a memory row in the metadata store.
//
// This type is defined in the metastore package, rather than shared with
// pkg/memory, so that metastore implementations never import pkg/memory:
// pkg/memory already imports metastore for persistence, and a reverse
// import would cycle. pkg/memory/convert.go bridges the two.
type Memory struct {
	// ID is the opaque, globally-unique identifier, shared with the vector
	// index entry for the same memory.
	ID string

	// Source is the provenance tag: "user_message", "assistant_message",
	// or "conversation".
	Source string

	// Content is the atomic factual statement.
	Content string

	// Type is a short free-form category label.
	Type string

	// Timestamp is the creation or last-update instant, in UTC.
	Timestamp time.Time

	// UserID scopes this memory to a user.
	UserID string

	// Embedding is the vector for this memory's content. The metadata
	// store persists it for recovery/rebuild of the vector index; the
	// vector index remains the store consulted for similarity search.
	Embedding []float32
}

// Store defines the interface for metadata store backends.
//
// All implementations (SQLite, PostgreSQL) must implement this interface
// and must be safe for concurrent use by multiple goroutines.
type Store interface {
	// EnsureSchema creates the backing table and secondary indexes if they
	// do not already exist. Called once at construction.
	EnsureSchema(ctx context.Context) error

	// Insert adds a new memory row. Returns an error if m.ID already exists.
	Insert(ctx context.Context, m *Memory) error

	// Update overwrites the content, type, embedding and timestamp of the
	// row with the given ID. Returns ErrNotFound-wrapping error if no row
	// with that ID exists.
	Update(ctx context.Context, m *Memory) error

	// Delete removes the row with the given ID. Deleting an ID that does
	// not exist is not an error.
	Delete(ctx context.Context, id string) error

	// GetByIDs retrieves rows for the given IDs, in no particular order.
	// IDs with no matching row are silently omitted from the result.
	GetByIDs(ctx context.Context, ids []string) ([]*Memory, error)

	// DeleteAllForUser removes every row scoped to userID. Returns the
	// number of rows removed.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// Ping verifies the store is reachable and ready to serve requests.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
