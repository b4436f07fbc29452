package similar

import (
	"errors"
	"testing"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

func readyHandle(t *testing.T) *postindex.Handle {
	t.Helper()
	idx, err := postindex.New(
		[]domain.Post{{ID: 1}, {ID: 2}, {ID: 3}},
		[][]float32{{1, 0}, {0.9, 0.1}, {0, 1}},
	)
	if err != nil {
		t.Fatalf("postindex.New: %v", err)
	}
	h := postindex.NewHandle()
	h.Swap(idx)
	return h
}

func TestSimilar_NotReady(t *testing.T) {
	svc := New(postindex.NewHandle())

	if _, err := svc.Similar(1, 10); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestSimilar_NotFound(t *testing.T) {
	svc := New(readyHandle(t))

	if _, err := svc.Similar(99, 10); !errors.Is(err, domain.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestSimilar_RankingAndSelfExclusion(t *testing.T) {
	svc := New(readyHandle(t))

	got, err := svc.Similar(1, 10)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	for _, sp := range got {
		if sp.PostID == 1 {
			t.Error("reference post present in its own similar set")
		}
	}
	// Post 2 points almost the same way as post 1; post 3 is orthogonal.
	if got[0].PostID != 2 || got[1].PostID != 3 {
		t.Errorf("order = [%d %d], want [2 3]", got[0].PostID, got[1].PostID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %v", got)
	}
}

func TestSimilar_FewerCandidatesThanTopK(t *testing.T) {
	svc := New(readyHandle(t))

	got, err := svc.Similar(1, 50)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	// 2 candidates exist; returning them all is not an error.
	if len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}

func TestSimilar_TopKTruncation(t *testing.T) {
	svc := New(readyHandle(t))

	got, err := svc.Similar(1, 1)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d results, want 1", len(got))
	}
}
