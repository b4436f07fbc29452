package domain

// ScoredPost is a ranked (post id, score) pair returned by recommendation
// and similar-post queries.
type ScoredPost struct {
	PostID int64
	Score  float64
}

// CandidateScore breaks a personalized ranking score into its components.
// Produced and discarded per request.
type CandidateScore struct {
	PostID          int64
	Similarity      float64
	PopularityBoost float64
	DiversityNoise  float64
}

// Final is the score candidates are ranked by.
func (c CandidateScore) Final() float64 {
	return c.Similarity + c.PopularityBoost + c.DiversityNoise
}
