// Package postindex holds the in-memory post embedding index. An Index is
// immutable once built; rebuilds produce a fresh Index that is published
// through a Handle in one atomic step.
package postindex

import (
	"fmt"
	"math"

	"github.com/vibeflow/feedrank/internal/domain"
)

// Index maps every post in a corpus snapshot to its embedding vector.
// All vectors share one dimension. Safe for unbounded concurrent readers.
type Index struct {
	posts   []domain.Post
	vectors [][]float32
	norms   []float64
	byID    map[int64]int
	dim     int
}

// New builds an index from a corpus snapshot and its embedding vectors,
// aligned by position. Every vector must have the same dimension.
func New(posts []domain.Post, vectors [][]float32) (*Index, error) {
	if len(posts) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	if len(posts) != len(vectors) {
		return nil, fmt.Errorf("got %d posts but %d vectors", len(posts), len(vectors))
	}

	dim := len(vectors[0])
	idx := &Index{
		posts:   posts,
		vectors: vectors,
		norms:   make([]float64, len(vectors)),
		byID:    make(map[int64]int, len(posts)),
		dim:     dim,
	}

	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		idx.norms[i] = norm(vec)
		idx.byID[posts[i].ID] = i
	}

	return idx, nil
}

// Len returns the number of indexed posts.
func (idx *Index) Len() int { return len(idx.posts) }

// Dim returns the embedding dimension.
func (idx *Index) Dim() int { return idx.dim }

// Posts returns the corpus snapshot in its original order.
// Callers must not modify the returned slice.
func (idx *Index) Posts() []domain.Post { return idx.posts }

// Get returns the embedding vector for a post id.
func (idx *Index) Get(postID int64) ([]float32, bool) {
	i, ok := idx.byID[postID]
	if !ok {
		return nil, false
	}
	return idx.vectors[i], true
}

// Post returns the post record for a post id.
func (idx *Index) Post(postID int64) (domain.Post, bool) {
	i, ok := idx.byID[postID]
	if !ok {
		return domain.Post{}, false
	}
	return idx.posts[i], true
}

// SimilarityToAll computes the cosine similarity of query against every
// stored vector in one pass. The result is aligned with Posts(). A zero
// query or a zero stored vector yields similarity 0.
func (idx *Index) SimilarityToAll(query []float32) ([]float64, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), idx.dim)
	}

	qnorm := norm(query)
	sims := make([]float64, len(idx.vectors))
	if qnorm == 0 {
		return sims, nil
	}

	for i, vec := range idx.vectors {
		if idx.norms[i] == 0 {
			continue
		}
		sims[i] = dot(query, vec) / (qnorm * idx.norms[i])
	}

	return sims, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
