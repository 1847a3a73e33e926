// Package hashembed provides a deterministic, offline embedclient.Provider
// for tests and environments without access to a hosted embedding API.
//
// It hashes overlapping character shingles of the input text into a
// fixed-dimension vector with the hashing-trick: no network calls, no model
// weights, fully reproducible. It is not suitable for semantic search
// quality comparable to a trained model; it exists so the rest of the
// service can be exercised end-to-end without external dependencies.
package hashembed

import (
	"context"
	"hash/fnv"
	"math"
)

// Client is a deterministic hash-based embedder.
type Client struct {
	dimensions int
	shingle    int
}

// Config configures the hash embedder.
type Config struct {
	// Dimensions is the output vector size. Defaults to 256.
	Dimensions int

	// ShingleSize is the character n-gram length hashed into the vector.
	// Defaults to 3.
	ShingleSize int
}

// NewClient creates a new hash-based embedder.
func NewClient(cfg *Config) *Client {
	dims := 256
	if cfg != nil && cfg.Dimensions > 0 {
		dims = cfg.Dimensions
	}
	shingle := 3
	if cfg != nil && cfg.ShingleSize > 0 {
		shingle = cfg.ShingleSize
	}
	return &Client{dimensions: dims, shingle: shingle}
}

// Embed hashes text into a unit-normalized vector.
func (c *Client) Embed(_ context.Context, text string) ([]float32, error) {
	return c.embed(text), nil
}

// EmbedBatch hashes each text independently.
func (c *Client) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = c.embed(t)
	}
	return vectors, nil
}

// Dimensions returns the configured vector size.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

func (c *Client) embed(text string) []float32 {
	vec := make([]float64, c.dimensions)
	runes := []rune(text)
	n := c.shingle
	if len(runes) < n {
		n = len(runes)
	}
	if n == 0 {
		return make([]float32, c.dimensions)
	}
	for i := 0; i+n <= len(runes); i++ {
		shingle := string(runes[i : i+n])
		h := fnv.New64a()
		_, _ = h.Write([]byte(shingle))
		sum := h.Sum64()
		idx := int(sum % uint64(c.dimensions))
		sign := 1.0
		if (sum>>63)&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, c.dimensions)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
