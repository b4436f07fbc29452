package domain

import "errors"

var (
	// ErrNotReady signals that the recommendation index has not been built yet.
	ErrNotReady = errors.New("recommendation index not ready")
	// ErrPostNotFound signals a post id absent from the index.
	ErrPostNotFound = errors.New("post not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmptyCorpus signals an index build over zero posts. The service must
	// never become ready serving from an empty index.
	ErrEmptyCorpus = errors.New("empty post corpus")
)
