package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vibeflow/feedrank/internal/db"
	"github.com/vibeflow/feedrank/internal/domain"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	embedCalls int
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:  embeddings,
		TotalTokens: m.result.TotalTokens * len(texts),
	}, nil
}

// memStore implements the consumer interface in memory.
type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2}, TotalTokens: 7,
	}}
	cache := New(inner, newMemStore(), time.Hour, nil, zap.NewNop())

	first, err := cache.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss TotalTokens = %d, want 7", first.TotalTokens)
	}

	second, err := cache.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit TotalTokens = %d, want 0", second.TotalTokens)
	}
	if inner.embedCalls != 1 {
		t.Errorf("inner called %d times, want 1", inner.embedCalls)
	}
	if len(second.Embedding) != 2 || second.Embedding[0] != 0.1 {
		t.Errorf("cached vector = %v, want [0.1 0.2]", second.Embedding)
	}
}

func TestCachedEmbedder_BatchPartialHits(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.5, 0.5}, TotalTokens: 3,
	}}
	cache := New(inner, newMemStore(), time.Hour, nil, zap.NewNop())

	// Warm one of three texts.
	if _, err := cache.Embed(context.Background(), "b"); err != nil {
		t.Fatalf("warm Embed: %v", err)
	}

	res, err := cache.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("got %d embeddings, want 3", len(res.Embeddings))
	}
	for i, vec := range res.Embeddings {
		if len(vec) != 2 {
			t.Errorf("embeddings[%d] has dim %d, want 2", i, len(vec))
		}
	}
	// Only the two misses go to the provider.
	if res.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6 (two misses)", res.TotalTokens)
	}

	// Everything cached now.
	res, err = cache.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if res.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, want 0 on full hit", res.TotalTokens)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75}
	got, err := bytesToVector(vectorToCacheBytes(vec))
	if err != nil {
		t.Fatalf("bytesToVector: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("vec[%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for non-multiple-of-4 data")
	}
}
