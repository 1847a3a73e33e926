package memory

import "github.com/oceanbase/durablemem-go/pkg/extract"

// WriteOptions controls one Write call.
type WriteOptions struct {
	// Mode selects which side of the conversation the extractor may mine.
	// Defaults to extract.ModeBoth.
	Mode extract.Mode
}

// WriteOption customizes a Write call.
type WriteOption func(*WriteOptions)

// WithExtractionMode restricts extraction to the user's turn, the
// assistant's turn, or both.
func WithExtractionMode(mode extract.Mode) WriteOption {
	return func(o *WriteOptions) { o.Mode = mode }
}

func applyWriteOptions(opts []WriteOption) *WriteOptions {
	options := &WriteOptions{Mode: extract.ModeBoth}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
