package feed

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

// diversityNoise is the per-(user, post) ranking perturbation: a sample from
// N(0, weight) drawn from a generator seeded by a hash of the pair. The same
// pair always produces the same noise, so ranking stays reproducible while
// still varying between users. Not a source of cryptographic randomness.
func diversityNoise(username string, postID int64, weight float64) float64 {
	if weight <= 0 {
		return 0
	}

	h := xxhash.New()
	_, _ = h.WriteString(username)
	_, _ = h.Write([]byte{0}) // separator, "ab"+"1" must not collide with "a"+"b1"
	_, _ = h.WriteString(strconv.FormatInt(postID, 10))
	seed := h.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed))
	return rng.NormFloat64() * weight
}

// rankCandidates scores every indexed post outside the exclusion set against
// the profile vector and returns the topK by final score. Ties are broken by
// ascending post id so the ranking is fully deterministic.
func rankCandidates(
	idx *postindex.Index,
	username string,
	profile []float32,
	exclude map[int64]struct{},
	topK int,
	diversityWeight, popularityBoost float64,
) ([]domain.ScoredPost, error) {
	sims, err := idx.SimilarityToAll(profile)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.CandidateScore, 0, idx.Len())
	for i, post := range idx.Posts() {
		if _, skip := exclude[post.ID]; skip {
			continue
		}
		views := post.ViewCount
		if views < 0 {
			views = 0
		}
		candidates = append(candidates, domain.CandidateScore{
			PostID:          post.ID,
			Similarity:      sims[i],
			PopularityBoost: math.Log1p(float64(views)) * popularityBoost,
			DiversityNoise:  diversityNoise(username, post.ID, diversityWeight),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		fi, fj := candidates[i].Final(), candidates[j].Final()
		if fi != fj {
			return fi > fj
		}
		return candidates[i].PostID < candidates[j].PostID
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]domain.ScoredPost, len(candidates))
	for i, c := range candidates {
		out[i] = domain.ScoredPost{PostID: c.PostID, Score: c.Final()}
	}
	return out, nil
}

// popularPosts ranks posts by view count descending, preserving corpus order
// on ties, truncated to limit. The cold-start path: no embeddings involved.
func popularPosts(posts []domain.Post, limit int) []int64 {
	ranked := make([]domain.Post, len(posts))
	copy(ranked, posts)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ViewCount > ranked[j].ViewCount
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	ids := make([]int64, len(ranked))
	for i, p := range ranked {
		ids[i] = p.ID
	}
	return ids
}
