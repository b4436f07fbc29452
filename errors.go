package feedrank

import "github.com/vibeflow/feedrank/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotReady               = domain.ErrNotReady
	ErrPostNotFound           = domain.ErrPostNotFound
	ErrEmptyCorpus            = domain.ErrEmptyCorpus
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
