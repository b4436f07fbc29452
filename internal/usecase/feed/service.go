// Package feed serves the personalized recommendation query, falling back
// to popularity ranking for users without a resolvable interaction history.
package feed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/logger"
	"github.com/vibeflow/feedrank/internal/metrics"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

// Default ranking knobs, matching config defaults.
const (
	DefaultTopK            = 20
	DefaultDiversityWeight = 0.1
	DefaultPopularityBoost = 0.05
)

// Result is the outcome of a feed query. ColdStart marks a popularity-ranked
// result for a user without a resolvable profile; Scored is nil in that case.
type Result struct {
	PostIDs   []int64
	Scored    []domain.ScoredPost
	ColdStart bool
}

// Service handles feed queries.
type Service struct {
	index           IndexSource
	interactions    InteractionSource
	topK            int
	diversityWeight float64
	popularityBoost float64
}

// New creates a feed service with default ranking knobs.
func New(index IndexSource, interactions InteractionSource) *Service {
	return &Service{
		index:           index,
		interactions:    interactions,
		topK:            DefaultTopK,
		diversityWeight: DefaultDiversityWeight,
		popularityBoost: DefaultPopularityBoost,
	}
}

// WithRanking overrides the ranking knobs.
func (s *Service) WithRanking(topK int, diversityWeight, popularityBoost float64) *Service {
	if topK > 0 {
		s.topK = topK
	}
	if diversityWeight >= 0 {
		s.diversityWeight = diversityWeight
	}
	if popularityBoost > 0 {
		s.popularityBoost = popularityBoost
	}
	return s
}

// Feed returns topK recommendations for username. Users with no resolvable
// interaction history get the popularity ranking (cold start) silently;
// everyone else gets the personalized ranking with their already-interacted
// posts excluded. Fails with domain.ErrNotReady before the first index build.
func (s *Service) Feed(ctx context.Context, username string, topK int) (Result, error) {
	idx, err := s.index.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load index: %w", err)
	}

	if topK <= 0 {
		topK = s.topK
	}

	log := logger.FromContext(ctx)

	records, err := s.interactions.UserInteractions(ctx, username)
	if err != nil {
		// A dead interaction source must not take the feed down; the user
		// degrades to cold start.
		log.Warn("Interaction history unavailable, serving cold start",
			zap.String("username", username),
			zap.Error(err),
		)
		records = nil
	}

	if len(records) == 0 {
		return s.coldStart(idx, username, topK, log), nil
	}

	profile, ok := buildProfile(idx, records)
	if !ok {
		// History exists but none of it resolves to an indexed post.
		return s.coldStart(idx, username, topK, log), nil
	}

	exclude := make(map[int64]struct{}, len(records))
	for _, r := range records {
		exclude[r.PostID] = struct{}{}
	}

	scored, err := rankCandidates(
		idx, username, profile, exclude, topK, s.diversityWeight, s.popularityBoost,
	)
	if err != nil {
		return Result{}, fmt.Errorf("rank candidates: %w", err)
	}

	metrics.FeedRequestsTotal.WithLabelValues("personalized").Inc()
	log.Debug("Personalized feed served",
		zap.String("username", username),
		zap.Int("interactions", len(records)),
		zap.Int("results", len(scored)),
	)

	ids := make([]int64, len(scored))
	for i, sp := range scored {
		ids[i] = sp.PostID
	}
	return Result{PostIDs: ids, Scored: scored}, nil
}

// Popular returns the non-personalized popularity ranking.
// Fails with domain.ErrNotReady before the first index build.
func (s *Service) Popular(limit int) ([]int64, error) {
	idx, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if limit <= 0 {
		limit = s.topK
	}
	return popularPosts(idx.Posts(), limit), nil
}

func (s *Service) coldStart(idx *postindex.Index, username string, topK int, log *zap.Logger) Result {
	metrics.FeedRequestsTotal.WithLabelValues("cold_start").Inc()
	log.Debug("Cold start feed served", zap.String("username", username))
	return Result{
		PostIDs:   popularPosts(idx.Posts(), topK),
		ColdStart: true,
	}
}
