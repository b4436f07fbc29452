package feed

import (
	"context"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

// IndexSource resolves the currently published embedding index.
// Load fails with domain.ErrNotReady before the first build.
type IndexSource interface {
	Load() (*postindex.Index, error)
}

// InteractionSource fetches a user's interaction history, already reduced
// keep-max per (username, post_id).
type InteractionSource interface {
	UserInteractions(ctx context.Context, username string) ([]domain.InteractionRecord, error)
}
