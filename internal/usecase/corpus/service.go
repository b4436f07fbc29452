// Package corpus builds the post embedding index from the upstream corpus
// and keeps it fresh.
package corpus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/metrics"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

// DefaultBatchSize is the number of texts embedded per provider call.
const DefaultBatchSize = 32

// maxConcurrentBatches bounds parallel embedding calls during a build.
const maxConcurrentBatches = 4

// Service rebuilds the embedding index from the post corpus.
type Service struct {
	posts     PostSource
	embedder  domain.Embedder
	handle    *postindex.Handle
	batchSize int
	logger    *zap.Logger
}

// New creates a corpus service.
func New(posts PostSource, embedder domain.Embedder, handle *postindex.Handle, logger *zap.Logger) *Service {
	return &Service{
		posts:     posts,
		embedder:  embedder,
		handle:    handle,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize overrides the embedding batch size.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Rebuild fetches the whole corpus, embeds every post's content text in
// batches, and publishes the new index in one atomic swap. Any embedding
// failure aborts the whole build and leaves the previously published index
// (if any) serving; a partially embedded corpus is never published.
func (s *Service) Rebuild(ctx context.Context) error {
	start := time.Now()

	posts, err := s.posts.FetchAllPosts(ctx)
	if err != nil {
		return fmt.Errorf("fetch corpus: %w", err)
	}
	if len(posts) == 0 {
		return domain.ErrEmptyCorpus
	}

	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = p.ContentText()
	}

	vectors := make([][]float32, len(posts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for lo := 0; lo < len(texts); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(texts))
		g.Go(func() error {
			res, err := domain.BatchEmbed(gctx, s.embedder, texts[lo:hi])
			if err != nil {
				return fmt.Errorf("embed posts [%d:%d]: %w", lo, hi, err)
			}
			copy(vectors[lo:hi], res.Embeddings)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	idx, err := postindex.New(posts, vectors)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	s.handle.Swap(idx)

	duration := time.Since(start)
	metrics.IndexBuildDuration.Observe(duration.Seconds())
	metrics.IndexedPosts.Set(float64(idx.Len()))

	s.logger.Info("Embedding index rebuilt",
		zap.Int("posts", idx.Len()),
		zap.Int("dimensions", idx.Dim()),
		zap.Duration("duration", duration),
	)
	return nil
}

// Run rebuilds the index every interval until ctx is canceled. A failed
// refresh is logged and the previous index keeps serving.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Rebuild(ctx); err != nil {
				s.logger.Error("Corpus refresh failed, keeping previous index", zap.Error(err))
			}
		}
	}
}
