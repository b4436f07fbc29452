package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vibeflow/feedrank/internal/domain"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
	feeduc "github.com/vibeflow/feedrank/internal/usecase/feed"
	healthuc "github.com/vibeflow/feedrank/internal/usecase/health"
	similaruc "github.com/vibeflow/feedrank/internal/usecase/similar"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the recommendation API over chi.
type Server struct {
	feed          *feeduc.Service
	similar       *similaruc.Service
	health        *healthuc.Service
	index         *postindex.Handle
	model         string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. model is reported by /health.
func NewServer(
	feed *feeduc.Service,
	similar *similaruc.Service,
	health *healthuc.Service,
	index *postindex.Handle,
	model string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		feed:    feed,
		similar: similar,
		health:  health,
		index:   index,
		model:   model,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotReady, http.StatusServiceUnavailable, "not_ready"),
		sentinelHandler(domain.ErrPostNotFound, http.StatusNotFound, "post_not_found"),
		sentinelHandler(domain.ErrEmptyCorpus, http.StatusServiceUnavailable, "empty_corpus"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
	}
	return s
}

// Routes registers all API routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/feed", s.GetFeed)
		r.Get("/similar/{post_id}", s.GetSimilar)
	})
}

// --- Response DTOs ---

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type postRecord struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	ProjectCode string   `json:"project_code,omitempty"`
	ViewCount   int64    `json:"view_count"`
	Score       *float64 `json:"score,omitempty"`
}

type feedResponse struct {
	Recommendations []postRecord `json:"recommendations"`
	Page            int          `json:"page"`
	PageSize        int          `json:"page_size"`
	Total           int          `json:"total"`
	ColdStart       bool         `json:"cold_start"`
}

type similarRecord struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Tags            []string `json:"tags,omitempty"`
	Category        string   `json:"category,omitempty"`
	Topic           string   `json:"topic,omitempty"`
	ProjectCode     string   `json:"project_code,omitempty"`
	ViewCount       int64    `json:"view_count"`
	SimilarityScore float64  `json:"similarity_score"`
}

type similarResponse struct {
	SimilarPosts    []similarRecord `json:"similar_posts"`
	ReferencePostID int64           `json:"reference_post_id"`
	Count           int             `json:"count"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	Ready       bool              `json:"ready"`
	PostsCached int               `json:"posts_cached"`
	ModelName   string            `json:"model_name,omitempty"`
	Checks      map[string]string `json:"checks"`
}

// GetFeed handles GET /api/v1/feed.
func (s *Server) GetFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	username := q.Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "username is required")
		return
	}

	topK, err := queryInt(q.Get("top_k"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "top_k must be an integer")
		return
	}
	page, err := queryInt(q.Get("page"), defaultPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "page must be an integer")
		return
	}
	pageSize, err := queryInt(q.Get("page_size"), defaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "page_size must be an integer")
		return
	}
	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	res, err := s.feed.Feed(r.Context(), username, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	idx, err := s.index.Load()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	records := hydrateFeed(idx, res, q.Get("project_code"))

	// Recommendations are presented by popularity; ranking order decided
	// membership, view_count decides display order.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ViewCount > records[j].ViewCount
	})

	total := len(records)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, feedResponse{
		Recommendations: records[start:end],
		Page:            page,
		PageSize:        pageSize,
		Total:           total,
		ColdStart:       res.ColdStart,
	})
}

// GetSimilar handles GET /api/v1/similar/{post_id}.
func (s *Server) GetSimilar(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "post_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "post_id must be an integer")
		return
	}

	topK, err := queryInt(r.URL.Query().Get("top_k"), similaruc.DefaultTopK)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "top_k must be an integer")
		return
	}

	scored, err := s.similar.Similar(postID, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	idx, err := s.index.Load()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	records := make([]similarRecord, 0, len(scored))
	for _, sp := range scored {
		post, ok := idx.Post(sp.PostID)
		if !ok {
			continue
		}
		records = append(records, similarRecord{
			ID:              post.ID,
			Title:           post.Title,
			Tags:            post.Tags,
			Category:        post.Category,
			Topic:           post.Topic,
			ProjectCode:     post.ProjectCode,
			ViewCount:       post.ViewCount,
			SimilarityScore: sp.Score,
		})
	}

	writeJSON(w, http.StatusOK, similarResponse{
		SimilarPosts:    records,
		ReferencePostID: postID,
		Count:           len(records),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	postsCached := 0
	if idx, err := s.index.Load(); err == nil {
		postsCached = idx.Len()
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:      string(report.Status),
		Ready:       report.Ready,
		PostsCached: postsCached,
		ModelName:   s.model,
		Checks:      checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func hydrateFeed(idx *postindex.Index, res feeduc.Result, projectCode string) []postRecord {
	scores := make(map[int64]float64, len(res.Scored))
	for _, sp := range res.Scored {
		scores[sp.PostID] = sp.Score
	}

	records := make([]postRecord, 0, len(res.PostIDs))
	for _, id := range res.PostIDs {
		post, ok := idx.Post(id)
		if !ok {
			continue
		}
		if projectCode != "" && post.ProjectCode != projectCode {
			continue
		}
		rec := postRecord{
			ID:          post.ID,
			Title:       post.Title,
			Tags:        post.Tags,
			Category:    post.Category,
			Topic:       post.Topic,
			ProjectCode: post.ProjectCode,
			ViewCount:   post.ViewCount,
		}
		if score, ok := scores[id]; ok {
			v := score
			rec.Score = &v
		}
		records = append(records, rec)
	}
	return records
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotReady,
		domain.ErrPostNotFound,
		domain.ErrEmptyCorpus,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
