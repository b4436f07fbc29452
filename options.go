package feedrank

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	upstreamBaseURL string
	flicToken       string
	upstreamTimeout time.Duration
	upstreamRetries int

	apiKey     string
	embBaseURL string
	model      string
	dimensions int
	batchSize  int

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	topK            int
	diversityWeight float64
	popularityBoost float64

	logger *zap.Logger
}

// WithUpstream points the client at the content API that serves posts and
// interaction histories.
func WithUpstream(baseURL, flicToken string) Option {
	return optionFunc(func(c *clientConfig) {
		c.upstreamBaseURL = baseURL
		c.flicToken = flicToken
	})
}

// WithUpstreamTimeout overrides the per-request upstream timeout.
func WithUpstreamTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.upstreamTimeout = d
	})
}

// WithUpstreamRetries overrides the upstream retry count.
func WithUpstreamRetries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.upstreamRetries = n
	})
}

// WithEmbedding configures the embedding provider (OpenAI-compatible).
func WithEmbedding(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.model = model
	})
}

// WithEmbeddingBaseURL points the embedding provider at a compatible API.
func WithEmbeddingBaseURL(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embBaseURL = baseURL
	})
}

// WithDimensions requests reduced-dimension embeddings where the model
// supports it.
func WithDimensions(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = n
	})
}

// WithBatchSize overrides the embedding batch size used during index builds.
func WithBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = n
	})
}

// WithRedisCache enables the embedding cache backed by Redis.
func WithRedisCache(addrs []string, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = addrs
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithRanking overrides the ranking knobs.
func WithRanking(topK int, diversityWeight, popularityBoost float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = topK
		c.diversityWeight = diversityWeight
		c.popularityBoost = popularityBoost
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
