// Package embedclient provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must
// satisfy, converting free text into fixed-dimension vectors for similarity
// search in the vector index.
package embedclient

import "context"

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, the deterministic hash embedder,
// etc.) must implement this interface. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple text strings into vector embeddings in a
	// single round trip. The returned slice has the same length and order
	// as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimension D of vectors produced by this
	// provider. Callers use this to size the vector index before any
	// embedding has been produced.
	Dimensions() int

	// Close releases resources held by the provider.
	Close() error
}
