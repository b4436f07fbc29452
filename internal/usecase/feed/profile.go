package feed

import (
	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

// buildProfile aggregates a user's interaction history into a single profile
// vector: the element-wise weighted average of the interacted posts'
// embeddings, with weights normalized to sum to 1.
//
// Returns ok=false when no record resolves to an indexed post. That is the
// no-profile signal and must trigger cold start, not "similar to nothing" —
// it is deliberately distinct from a zero vector.
func buildProfile(idx *postindex.Index, records []domain.InteractionRecord) (profile []float32, ok bool) {
	var vectors [][]float32
	var weights []float64
	var total float64

	for _, r := range records {
		vec, found := idx.Get(r.PostID)
		if !found {
			continue
		}
		vectors = append(vectors, vec)
		weights = append(weights, r.Score)
		total += r.Score
	}

	if len(vectors) == 0 || total <= 0 {
		return nil, false
	}

	acc := make([]float64, idx.Dim())
	for i, vec := range vectors {
		w := weights[i] / total
		for j, x := range vec {
			acc[j] += w * float64(x)
		}
	}

	profile = make([]float32, len(acc))
	for j, x := range acc {
		profile[j] = float32(x)
	}
	return profile, true
}
