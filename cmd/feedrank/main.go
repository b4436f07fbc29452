package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vibeflow/feedrank/internal/config"
	"github.com/vibeflow/feedrank/internal/db"
	dbRedis "github.com/vibeflow/feedrank/internal/db/redis"
	"github.com/vibeflow/feedrank/internal/domain"
	logpkg "github.com/vibeflow/feedrank/internal/logger"
	"github.com/vibeflow/feedrank/internal/metrics"
	"github.com/vibeflow/feedrank/internal/repository/embcache"
	"github.com/vibeflow/feedrank/internal/repository/postindex"
	chiTransport "github.com/vibeflow/feedrank/internal/transport/chi"
	"github.com/vibeflow/feedrank/internal/transport/flic"
	openaiEmb "github.com/vibeflow/feedrank/internal/transport/openai"
	corpusuc "github.com/vibeflow/feedrank/internal/usecase/corpus"
	embeddinguc "github.com/vibeflow/feedrank/internal/usecase/embedding"
	feeduc "github.com/vibeflow/feedrank/internal/usecase/feed"
	healthuc "github.com/vibeflow/feedrank/internal/usecase/health"
	similaruc "github.com/vibeflow/feedrank/internal/usecase/similar"
	"github.com/vibeflow/feedrank/internal/version"
)

const cacheReadinessTimeout = 30 * time.Second

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting feedrank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRecommendMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional embedding cache store
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, cacheReadinessTimeout); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	// Embedder chain: OpenAI -> Cached -> Instrumented
	var embedder domain.Embedder = base
	if store != nil {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		embedder = embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, logger,
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cached", store != nil),
	)

	// Upstream content API client
	upstream := flic.NewClient(flic.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		Token:    cfg.Upstream.FlicToken,
		Timeout:  time.Duration(cfg.Upstream.TimeoutSec) * time.Second,
		Retries:  cfg.Upstream.Retries,
		PageSize: cfg.Upstream.PageSize,
		Logger:   logger,
	})

	// Build the post index before serving traffic.
	handle := postindex.NewHandle()
	corpusSvc := corpusuc.New(upstream, embedder, handle, logger).
		WithBatchSize(cfg.Embedding.BatchSize)

	if err := corpusSvc.Rebuild(ctx); err != nil {
		logger.Fatal("Initial index build failed", zap.Error(err))
	}

	if cfg.Recommend.RefreshIntervalMin > 0 {
		interval := time.Duration(cfg.Recommend.RefreshIntervalMin) * time.Minute
		go corpusSvc.Run(ctx, interval)
		logger.Info("Corpus refresh enabled", zap.Duration("interval", interval))
	}

	// Use case services
	feedSvc := feeduc.New(handle, upstream).WithRanking(
		cfg.Recommend.TopK,
		cfg.Recommend.DiversityWeight,
		cfg.Recommend.PopularityBoost,
	)
	similarSvc := similaruc.New(handle)

	// Pass nil interface (not typed nil pointer!) if cache is not configured.
	// Go gotcha: (*Store)(nil) wrapped in CachePinger != nil.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(handle, cachePinger, base)

	// Create chi server
	server := chiTransport.NewServer(
		feedSvc, similarSvc, healthSvc, handle, cfg.Embedding.Model, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
	)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
