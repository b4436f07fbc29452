package corpus

import (
	"context"

	"github.com/vibeflow/feedrank/internal/domain"
)

// PostSource supplies the post corpus wholesale.
type PostSource interface {
	FetchAllPosts(ctx context.Context) ([]domain.Post, error)
}
