package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
)

// --- Mocks ---

type mockInteractions struct {
	records map[string][]domain.InteractionRecord
	err     error
}

func (m *mockInteractions) UserInteractions(_ context.Context, username string) ([]domain.InteractionRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[username], nil
}

// threePostHandle builds the canonical 3-post corpus: post 1 (100 views),
// post 2 (5 views), post 3 (50 views).
func threePostHandle(t *testing.T) *postindex.Handle {
	t.Helper()
	idx := buildTestIndex(t,
		[]domain.Post{
			{ID: 1, Title: "a", ViewCount: 100},
			{ID: 2, Title: "b", ViewCount: 5},
			{ID: 3, Title: "c", ViewCount: 50},
		},
		[][]float32{{1, 0}, {0, 1}, {0.5, 0.5}},
	)
	h := postindex.NewHandle()
	h.Swap(idx)
	return h
}

// --- Tests ---

func TestFeed_NotReady(t *testing.T) {
	svc := New(postindex.NewHandle(), &mockInteractions{})

	_, err := svc.Feed(context.Background(), "anyone", 10)
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestFeed_ColdStartForNewUser(t *testing.T) {
	svc := New(threePostHandle(t), &mockInteractions{})

	res, err := svc.Feed(context.Background(), "new_user", 20)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !res.ColdStart {
		t.Error("expected cold start for user with no history")
	}
	if res.Scored != nil {
		t.Error("cold start result must not carry scores")
	}

	want := []int64{1, 3, 2}
	if len(res.PostIDs) != len(want) {
		t.Fatalf("got %v, want %v", res.PostIDs, want)
	}
	for i := range want {
		if res.PostIDs[i] != want[i] {
			t.Fatalf("got %v, want %v", res.PostIDs, want)
		}
	}
}

func TestFeed_ColdStartMatchesPopular(t *testing.T) {
	svc := New(threePostHandle(t), &mockInteractions{})

	res, err := svc.Feed(context.Background(), "new_user", 20)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	popular, err := svc.Popular(20)
	if err != nil {
		t.Fatalf("Popular: %v", err)
	}

	if len(res.PostIDs) != len(popular) {
		t.Fatalf("cold start %v != popular %v", res.PostIDs, popular)
	}
	for i := range popular {
		if res.PostIDs[i] != popular[i] {
			t.Fatalf("cold start %v != popular %v", res.PostIDs, popular)
		}
	}
}

func TestFeed_ExcludesInteractedPosts(t *testing.T) {
	interactions := &mockInteractions{records: map[string][]domain.InteractionRecord{
		"u1": {
			{Username: "u1", PostID: 1, Score: 4.0},
			{Username: "u1", PostID: 2, Score: 1.0},
		},
	}}
	svc := New(threePostHandle(t), interactions)

	res, err := svc.Feed(context.Background(), "u1", 1)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if res.ColdStart {
		t.Fatal("expected personalized result")
	}
	// With posts 1 and 2 excluded, only post 3 remains.
	if len(res.PostIDs) != 1 || res.PostIDs[0] != 3 {
		t.Fatalf("got %v, want [3]", res.PostIDs)
	}
}

func TestFeed_ExclusionInvariant(t *testing.T) {
	history := []domain.InteractionRecord{
		{Username: "u1", PostID: 2, Score: 5.0},
	}
	interactions := &mockInteractions{records: map[string][]domain.InteractionRecord{"u1": history}}
	svc := New(threePostHandle(t), interactions)

	res, err := svc.Feed(context.Background(), "u1", 20)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	for _, id := range res.PostIDs {
		for _, r := range history {
			if id == r.PostID {
				t.Errorf("interacted post %d leaked into recommendations", id)
			}
		}
	}
}

func TestFeed_Deterministic(t *testing.T) {
	interactions := &mockInteractions{records: map[string][]domain.InteractionRecord{
		"u1": {{Username: "u1", PostID: 1, Score: 4.0}},
	}}
	svc := New(threePostHandle(t), interactions)

	first, err := svc.Feed(context.Background(), "u1", 20)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := svc.Feed(context.Background(), "u1", 20)
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if len(again.Scored) != len(first.Scored) {
			t.Fatal("result length changed between identical calls")
		}
		for j := range first.Scored {
			if first.Scored[j] != again.Scored[j] {
				t.Fatalf("result changed between identical calls: %+v vs %+v",
					first.Scored[j], again.Scored[j])
			}
		}
	}
}

func TestFeed_UnresolvableHistoryIsColdStart(t *testing.T) {
	interactions := &mockInteractions{records: map[string][]domain.InteractionRecord{
		"u1": {{Username: "u1", PostID: 999, Score: 4.0}},
	}}
	svc := New(threePostHandle(t), interactions)

	res, err := svc.Feed(context.Background(), "u1", 20)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !res.ColdStart {
		t.Error("history resolving to nothing must trigger cold start")
	}
}

func TestFeed_InteractionSourceFailureDegradesToColdStart(t *testing.T) {
	interactions := &mockInteractions{err: errors.New("upstream down")}
	svc := New(threePostHandle(t), interactions)

	res, err := svc.Feed(context.Background(), "u1", 20)
	if err != nil {
		t.Fatalf("Feed should not fail when the interaction source is down: %v", err)
	}
	if !res.ColdStart {
		t.Error("expected cold start fallback")
	}
}

func TestPopular_NotReady(t *testing.T) {
	svc := New(postindex.NewHandle(), &mockInteractions{})

	if _, err := svc.Popular(10); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}
