package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
	feeduc "github.com/vibeflow/feedrank/internal/usecase/feed"
	healthuc "github.com/vibeflow/feedrank/internal/usecase/health"
	similaruc "github.com/vibeflow/feedrank/internal/usecase/similar"
)

// --- Mocks ---

type mockInteractions struct {
	byUser map[string][]domain.InteractionRecord
}

func (m *mockInteractions) UserInteractions(_ context.Context, username string) ([]domain.InteractionRecord, error) {
	return m.byUser[username], nil
}

func testHandle(t *testing.T) *postindex.Handle {
	t.Helper()
	posts := []domain.Post{
		{ID: 1, Title: "alpha", Category: "Motivation", ProjectCode: "p1", ViewCount: 100},
		{ID: 2, Title: "beta", Category: "Wellness", ProjectCode: "p2", ViewCount: 5},
		{ID: 3, Title: "gamma", Category: "Motivation", ProjectCode: "p1", ViewCount: 50},
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}
	idx, err := postindex.New(posts, vectors)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	handle := postindex.NewHandle()
	handle.Swap(idx)
	return handle
}

func newTestRouter(t *testing.T, handle *postindex.Handle) chi.Router {
	t.Helper()
	interactions := &mockInteractions{byUser: map[string][]domain.InteractionRecord{
		"alice": {
			{Username: "alice", PostID: 1, Score: domain.ScoreLike},
			{Username: "alice", PostID: 2, Score: domain.ScoreView},
		},
	}}

	server := NewServer(
		feeduc.New(handle, interactions),
		similaruc.New(handle),
		healthuc.New(handle, nil, nil),
		handle,
		"text-embedding-3-small",
		zap.NewNop(),
	)

	r := chi.NewRouter()
	server.Routes(r)
	return r
}

func doRequest(t *testing.T, r chi.Router, path string) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

// --- Tests ---

func TestHealth_Ready(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Error("expected ready")
	}
	if resp.PostsCached != 3 {
		t.Errorf("posts_cached = %d, want 3", resp.PostsCached)
	}
	if resp.ModelName != "text-embedding-3-small" {
		t.Errorf("model_name = %q", resp.ModelName)
	}
}

func TestHealth_NotReady(t *testing.T) {
	r := newTestRouter(t, postindex.NewHandle())

	rec, body := doRequest(t, r, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Error("expected not ready")
	}
	if resp.PostsCached != 0 {
		t.Errorf("posts_cached = %d, want 0", resp.PostsCached)
	}
}

func TestFeed_MissingUsername(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, _ := doRequest(t, r, "/api/v1/feed")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFeed_NotReady(t *testing.T) {
	r := newTestRouter(t, postindex.NewHandle())

	rec, body := doRequest(t, r, "/api/v1/feed?username=alice")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "not_ready" {
		t.Errorf("code = %q, want not_ready", resp.Code)
	}
}

func TestFeed_ColdStart(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/api/v1/feed?username=nobody")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, body)
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.ColdStart {
		t.Error("expected cold_start")
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	got := make([]int64, len(resp.Recommendations))
	for i, rc := range resp.Recommendations {
		got[i] = rc.ID
	}
	// view_count desc
	want := []int64{1, 3, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFeed_Personalized_ExcludesInteracted(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/api/v1/feed?username=alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, body)
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ColdStart {
		t.Error("expected personalized result")
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1 (posts 1 and 2 already interacted)", resp.Total)
	}
	only := resp.Recommendations[0]
	if only.ID != 3 {
		t.Errorf("recommended id = %d, want 3", only.ID)
	}
	if only.Score == nil {
		t.Error("expected a score on a personalized recommendation")
	}
}

func TestFeed_ProjectCodeFilter(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/api/v1/feed?username=nobody&project_code=p1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
	for _, rc := range resp.Recommendations {
		if rc.ProjectCode != "p1" {
			t.Errorf("post %d has project_code %q", rc.ID, rc.ProjectCode)
		}
	}
}

func TestFeed_Pagination(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/api/v1/feed?username=nobody&page=2&page_size=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Recommendations) != 1 {
		t.Fatalf("page 2 size = %d, want 1", len(resp.Recommendations))
	}
	if resp.Recommendations[0].ID != 2 {
		t.Errorf("page 2 id = %d, want 2", resp.Recommendations[0].ID)
	}
	if resp.Page != 2 || resp.PageSize != 2 {
		t.Errorf("page/page_size = %d/%d", resp.Page, resp.PageSize)
	}
}

func TestFeed_BadPageValue(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, _ := doRequest(t, r, "/api/v1/feed?username=nobody&page=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSimilar_Found(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/api/v1/similar/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, body)
	}

	var resp similarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ReferencePostID != 1 {
		t.Errorf("reference_post_id = %d", resp.ReferencePostID)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2 (self excluded)", resp.Count)
	}
	// post 3 ({0.5,0.5}) is closer to post 1 ({1,0}) than post 2 ({0,1}).
	if resp.SimilarPosts[0].ID != 3 {
		t.Errorf("top similar = %d, want 3", resp.SimilarPosts[0].ID)
	}
	if resp.SimilarPosts[0].SimilarityScore <= resp.SimilarPosts[1].SimilarityScore {
		t.Error("similar posts must be sorted by similarity desc")
	}
}

func TestSimilar_NotFound(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/api/v1/similar/99")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "post_not_found" {
		t.Errorf("code = %q, want post_not_found", resp.Code)
	}
}

func TestSimilar_BadID(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, _ := doRequest(t, r, "/api/v1/similar/abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSimilar_TopK(t *testing.T) {
	r := newTestRouter(t, testHandle(t))

	rec, body := doRequest(t, r, "/api/v1/similar/1?top_k=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp similarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
}
