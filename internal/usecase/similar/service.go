// Package similar serves the similar-posts query: ranking every other post
// by embedding similarity to a reference post.
package similar

import (
	"fmt"
	"sort"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

// DefaultTopK is the result size when the caller does not pass one.
const DefaultTopK = 10

// IndexSource resolves the currently published embedding index.
type IndexSource interface {
	Load() (*postindex.Index, error)
}

// Service handles similar-post queries.
type Service struct {
	index IndexSource
}

// New creates a similar-posts service.
func New(index IndexSource) *Service {
	return &Service{index: index}
}

// Similar ranks all other posts by cosine similarity to the reference post.
// Fails with domain.ErrNotReady before the first index build and with
// domain.ErrPostNotFound when postID has no embedding. Fewer than topK
// candidates is not an error; whatever exists is returned.
func (s *Service) Similar(postID int64, topK int) ([]domain.ScoredPost, error) {
	idx, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	ref, ok := idx.Get(postID)
	if !ok {
		return nil, fmt.Errorf("post %d: %w", postID, domain.ErrPostNotFound)
	}

	sims, err := idx.SimilarityToAll(ref)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	out := make([]domain.ScoredPost, 0, idx.Len()-1)
	for i, post := range idx.Posts() {
		if post.ID == postID {
			continue
		}
		out = append(out, domain.ScoredPost{PostID: post.ID, Score: sims[i]})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PostID < out[j].PostID
	})

	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
