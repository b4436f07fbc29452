package domain

// Interaction score weights per interaction type. A rating contributes
// average_rating/10 instead of a fixed weight.
const (
	ScoreView    = 1.0
	ScoreLike    = 4.0
	ScoreInspire = 5.0
)

// InteractionRecord is one user's engagement with one post.
type InteractionRecord struct {
	Username string
	PostID   int64
	Score    float64
}

// ReduceKeepMax collapses interaction records to at most one per
// (username, post_id) pair, keeping the maximum score. When a user both
// viewed and liked a post, the like wins; scores are never summed.
// First-seen order of pairs is preserved.
func ReduceKeepMax(records []InteractionRecord) []InteractionRecord {
	type pair struct {
		username string
		postID   int64
	}

	index := make(map[pair]int, len(records))
	out := make([]InteractionRecord, 0, len(records))

	for _, r := range records {
		key := pair{username: r.Username, postID: r.PostID}
		if i, ok := index[key]; ok {
			if r.Score > out[i].Score {
				out[i].Score = r.Score
			}
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}

	return out
}
