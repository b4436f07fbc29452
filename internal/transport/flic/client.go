// Package flic is the client for the upstream content/interaction API.
// The core treats it purely as a data provider: the post corpus at startup
// and refresh, per-user interaction histories per request.
package flic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/vibeflow/feedrank/internal/domain"
)

// interactionWeights maps upstream interaction endpoints to their scores,
// in fetch order.
var interactionWeights = []struct {
	kind  string
	score float64
}{
	{"view", domain.ScoreView},
	{"like", domain.ScoreLike},
	{"inspire", domain.ScoreInspire},
}

// Config holds upstream API client settings.
type Config struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	Retries  int
	PageSize int
	Logger   *zap.Logger
}

// Client fetches posts and interaction histories from the upstream API.
type Client struct {
	baseURL  string
	token    string
	retries  int
	pageSize int
	httpc    *http.Client
	logger   *zap.Logger
}

// NewClient creates an upstream API client.
func NewClient(cfg Config) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		retries:  cfg.Retries,
		pageSize: pageSize,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// FetchAllPosts retrieves the whole post corpus, paging through the summary
// endpoint until a short page signals the end.
func (c *Client) FetchAllPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", fmt.Sprint(page))
		q.Set("page_size", fmt.Sprint(c.pageSize))

		var resp postsResponse
		if err := c.getJSON(ctx, "/posts/summary/get", q, &resp); err != nil {
			return nil, fmt.Errorf("fetch posts page %d: %w", page, err)
		}

		for _, raw := range resp.Posts {
			var dto postDTO
			if err := json.Unmarshal(raw, &dto); err != nil {
				return nil, fmt.Errorf("decode post on page %d: %w", page, err)
			}
			posts = append(posts, dto.toDomain())
		}

		if len(resp.Posts) < c.pageSize {
			return posts, nil
		}
	}
}

// UserInteractions retrieves a user's full interaction history: views,
// likes, inspires with fixed weights, ratings weighted by average_rating/10,
// reduced keep-max per (username, post_id). An empty result is not an error;
// it is the cold-start trigger.
func (c *Client) UserInteractions(ctx context.Context, username string) ([]domain.InteractionRecord, error) {
	var records []domain.InteractionRecord

	for _, w := range interactionWeights {
		ids, _, err := c.fetchInteractionPosts(ctx, w.kind, username)
		if err != nil {
			return nil, fmt.Errorf("fetch %s interactions: %w", w.kind, err)
		}
		for _, id := range ids {
			records = append(records, domain.InteractionRecord{
				Username: username,
				PostID:   id,
				Score:    w.score,
			})
		}
	}

	ids, ratings, err := c.fetchInteractionPosts(ctx, "rating", username)
	if err != nil {
		return nil, fmt.Errorf("fetch rating interactions: %w", err)
	}
	for i, id := range ids {
		score := ratings[i] / 10.0
		if score <= 0 {
			continue
		}
		records = append(records, domain.InteractionRecord{
			Username: username,
			PostID:   id,
			Score:    score,
		})
	}

	return domain.ReduceKeepMax(records), nil
}

func (c *Client) fetchInteractionPosts(
	ctx context.Context, kind, username string,
) (ids []int64, ratings []float64, err error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("page", "1")
	q.Set("page_size", fmt.Sprint(c.pageSize))

	var resp postsResponse
	if err := c.getJSON(ctx, "/posts/"+kind, q, &resp); err != nil {
		return nil, nil, err
	}

	for _, raw := range resp.Posts {
		var dto interactionPostDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, nil, fmt.Errorf("decode %s post: %w", kind, err)
		}
		ids = append(ids, dto.ID)
		ratings = append(ratings, dto.AverageRating)
	}

	return ids, ratings, nil
}

// getJSON performs a GET with bounded retries and exponential backoff.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	backoff := 250 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("upstream request canceled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			c.logger.Debug("Retrying upstream request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
			)
		}

		lastErr = c.doOnce(ctx, reqURL, out)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("upstream GET %s: %w", path, lastErr)
}

func (c *Client) doOnce(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Flic-Token", c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
