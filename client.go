// Package feedrank embeds the recommendation engine in-process: it fetches a
// post corpus from the upstream content API, embeds it through an
// OpenAI-compatible provider, and serves personalized feed, popularity, and
// similar-post queries without running the HTTP server.
package feedrank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/vibeflow/feedrank/internal/db/redis"
	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/embcache"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
	"github.com/vibeflow/feedrank/internal/transport/flic"
	openaiEmb "github.com/vibeflow/feedrank/internal/transport/openai"
	corpusuc "github.com/vibeflow/feedrank/internal/usecase/corpus"
	embeddinguc "github.com/vibeflow/feedrank/internal/usecase/embedding"
	feeduc "github.com/vibeflow/feedrank/internal/usecase/feed"
	similaruc "github.com/vibeflow/feedrank/internal/usecase/similar"
)

const defaultReadinessTimeout = 10 * time.Second

// Post is a recommended content item.
type Post struct {
	ID          int64
	Title       string
	Tags        []string
	Category    string
	Topic       string
	ProjectCode string
	ViewCount   int64
}

// Recommendation pairs a post with its ranking score.
// Score is zero for cold-start results.
type Recommendation struct {
	Post  Post
	Score float64
}

// FeedResult is the outcome of a personalized feed query.
type FeedResult struct {
	Recommendations []Recommendation
	ColdStart       bool
}

// SimilarPost pairs a post with its cosine similarity to the reference post.
type SimilarPost struct {
	Post  Post
	Score float64
}

// Client is the feedrank SDK entry point.
type Client struct {
	store   *dbRedis.Store
	handle  *postindex.Handle
	corpus  *corpusuc.Service
	feed    *feeduc.Service
	similar *similaruc.Service
}

// New creates a Client. The index is empty until the first Refresh call;
// queries return ErrNotReady before that.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.upstreamBaseURL == "" {
		return nil, errors.New("feedrank: upstream base URL required (use WithUpstream)")
	}
	if cfg.model == "" {
		return nil, errors.New("feedrank: embedding model required (use WithEmbedding)")
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var store *dbRedis.Store
	if len(cfg.cacheAddrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("feedrank: create cache store: %w", err)
		}
		if err := s.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("feedrank: cache not ready: %w", err)
		}
		store = s
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.apiKey,
		BaseURL:    cfg.embBaseURL,
		Model:      cfg.model,
		Dimensions: cfg.dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, cfg.cacheTTL, nil, logger)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, "openai", cfg.model, logger)

	upstream := flic.NewClient(flic.Config{
		BaseURL: cfg.upstreamBaseURL,
		Token:   cfg.flicToken,
		Timeout: cfg.upstreamTimeout,
		Retries: cfg.upstreamRetries,
		Logger:  logger,
	})

	handle := postindex.NewHandle()
	corpusSvc := corpusuc.New(upstream, embedder, handle, logger)
	if cfg.batchSize > 0 {
		corpusSvc = corpusSvc.WithBatchSize(cfg.batchSize)
	}

	feedSvc := feeduc.New(handle, upstream)
	if cfg.topK > 0 || cfg.diversityWeight > 0 || cfg.popularityBoost > 0 {
		feedSvc = feedSvc.WithRanking(cfg.topK, cfg.diversityWeight, cfg.popularityBoost)
	}

	return &Client{
		store:   store,
		handle:  handle,
		corpus:  corpusSvc,
		feed:    feedSvc,
		similar: similaruc.New(handle),
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Refresh fetches the corpus and rebuilds the index. The previous index
// keeps serving until the new one is ready.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.corpus.Rebuild(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

// Ready reports whether an index has been published.
func (c *Client) Ready() bool {
	return c.handle.Ready()
}

// Feed returns topK personalized recommendations for username, falling back
// to the popularity ranking for users without an interaction history.
func (c *Client) Feed(ctx context.Context, username string, topK int) (FeedResult, error) {
	res, err := c.feed.Feed(ctx, username, topK)
	if err != nil {
		return FeedResult{}, fmt.Errorf("feed: %w", err)
	}

	idx, err := c.handle.Load()
	if err != nil {
		return FeedResult{}, fmt.Errorf("feed: %w", err)
	}

	scores := make(map[int64]float64, len(res.Scored))
	for _, sp := range res.Scored {
		scores[sp.PostID] = sp.Score
	}

	out := FeedResult{ColdStart: res.ColdStart}
	for _, id := range res.PostIDs {
		post, ok := idx.Post(id)
		if !ok {
			continue
		}
		out.Recommendations = append(out.Recommendations, Recommendation{
			Post:  fromDomain(post),
			Score: scores[id],
		})
	}
	return out, nil
}

// Similar returns up to topK posts closest to the reference post.
func (c *Client) Similar(postID int64, topK int) ([]SimilarPost, error) {
	scored, err := c.similar.Similar(postID, topK)
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}

	idx, err := c.handle.Load()
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}

	out := make([]SimilarPost, 0, len(scored))
	for _, sp := range scored {
		post, ok := idx.Post(sp.PostID)
		if !ok {
			continue
		}
		out = append(out, SimilarPost{Post: fromDomain(post), Score: sp.Score})
	}
	return out, nil
}

// Popular returns the non-personalized popularity ranking.
func (c *Client) Popular(limit int) ([]Post, error) {
	ids, err := c.feed.Popular(limit)
	if err != nil {
		return nil, fmt.Errorf("popular: %w", err)
	}

	idx, err := c.handle.Load()
	if err != nil {
		return nil, fmt.Errorf("popular: %w", err)
	}

	out := make([]Post, 0, len(ids))
	for _, id := range ids {
		if post, ok := idx.Post(id); ok {
			out = append(out, fromDomain(post))
		}
	}
	return out, nil
}

func fromDomain(p domain.Post) Post {
	return Post{
		ID:          p.ID,
		Title:       p.Title,
		Tags:        p.Tags,
		Category:    p.Category,
		Topic:       p.Topic,
		ProjectCode: p.ProjectCode,
		ViewCount:   p.ViewCount,
	}
}
