package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/config"
	"github.com/kailas-cloud/semdex/internal/db"
	dbredis "github.com/kailas-cloud/semdex/internal/db/redis"
	"github.com/kailas-cloud/semdex/internal/domain"
	logpkg "github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/semdex/internal/repository/budget"
	"github.com/kailas-cloud/semdex/internal/repository/embcache"
	vecindexrepo "github.com/kailas-cloud/semdex/internal/repository/vecindex"
	chiTransport "github.com/kailas-cloud/semdex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/semdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/semdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/semdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/semdex/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
	usageuc "github.com/kailas-cloud/semdex/internal/usecase/usage"
	"github.com/kailas-cloud/semdex/internal/version"
)

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

	modelCfg := cfg.ModelSettings()

	logger.Info("Starting semdex gateway",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.String("socket", cfg.Server.SocketPath),
		zap.String("model", modelCfg.Model),
		zap.Int("dimensions", modelCfg.Dimensions),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Пороги настраиваются под конкретную модель; дефолты с чужой моделью
	// режут выдачу непредсказуемо.
	if def := domain.DefaultModelConfig(); modelCfg.Model != def.Model && modelCfg.Cutoff == def.Cutoff {
		logger.Warn("Model differs from the default but cutoff thresholds are still the defaults",
			zap.String("model", modelCfg.Model),
		)
	}

	// Valkey speaks the same protocol, one rueidis store covers both drivers.
	var store db.Store
	switch cfg.Database.Driver {
	case "valkey", "redis":
		store, err = dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Single BudgetTracker shared across both embedders and the usage service.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Provider.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(embeddinguc.BudgetConfig{
			Provider:     cfg.Embedding.Provider.Name,
			DailyLimit:   budgetCfg.DailyTokenLimit,
			MonthlyLimit: budgetCfg.MonthlyTokenLimit,
			Action:       action,
		}, logger)
		// Connect persistence store, loading current counters from DB.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.Provider.APIKey,
		BaseURL:    cfg.Embedding.Provider.BaseURL,
		Model:      modelCfg.Model,
		Dimensions: modelCfg.Dimensions,
		Provider:   cfg.Embedding.Provider.Name,
		Logger:     logger,
	})
	cacheTTL := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour

	docEmbedder := buildEmbedder(base, modelCfg.DocumentInstruction, cfg, store, cacheTTL, budgetChecker, logger)
	queryEmbedder := buildEmbedder(base, modelCfg.QueryInstruction, cfg, store, cacheTTL, budgetChecker, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider.Name),
		zap.String("model", modelCfg.Model),
		zap.Int("dimensions", modelCfg.Dimensions),
	)

	indexRepo := vecindexrepo.New(store, vectorSchema(modelCfg, cfg.Index))
	if err := indexRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	indexingSvc := indexinguc.New(indexRepo, docEmbedder, modelCfg.Dimensions, logger)
	searchSvc := searchuc.New(indexRepo, queryEmbedder, modelCfg.Cutoff, logger)

	// Usage service reads from the shared BudgetTracker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	healthSvc := healthuc.New(store, indexRepo)

	// Model warmup in the background: the gateway starts serving /health
	// immediately but rejects embedding work until the probe succeeds.
	go warmup(ctx, base, queryEmbedder, modelCfg.Dimensions, healthSvc, logger)

	server := chiTransport.NewServer(indexingSvc, searchSvc, usageSvc, healthSvc, logger)

	if cfg.Auth.ServiceToken == "" {
		logger.Warn("Service token auth is disabled")
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.ServiceTokenMiddleware(cfg.Auth.ServiceToken))
	r.Use(metrics.Middleware())
	server.Routes(r)

	ln, err := listenUnix(cfg.Server.SocketPath)
	if err != nil {
		logger.Fatal("Failed to bind unix socket", zap.String("socket", cfg.Server.SocketPath), zap.Error(err))
	}

	srv := &http.Server{
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Listening", zap.String("socket", cfg.Server.SocketPath))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := os.Remove(cfg.Server.SocketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to remove socket file", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// listenUnix binds the socket, replacing a stale file from a previous run.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	// Доступ ограничивается правами на файл, а не сетевым экраном.
	if err := os.Chmod(path, 0o660); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

// vectorSchema translates the pinned model config into the index schema.
func vectorSchema(mc domain.ModelConfig, idx config.IndexConfig) vecindexrepo.Config {
	metric := db.DistanceCosine
	switch mc.DistanceMetric {
	case "l2":
		metric = db.DistanceL2
	case "ip":
		metric = db.DistanceIP
	}

	algo := db.VectorHNSW
	if mc.Algorithm == "flat" {
		algo = db.VectorFlat
	}

	return vecindexrepo.Config{
		Dimensions:      mc.Dimensions,
		Metric:          metric,
		Algorithm:       algo,
		HNSWM:           idx.HNSWM,
		HNSWEFConstruct: idx.HNSWEFConstruct,
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base *openaiEmb.Embedder,
	instruction string,
	cfg config.Config,
	store db.Store,
	cacheTTL time.Duration,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) indexinguc.Embedder {
	// Cached
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, cacheTTL, logger)
	}

	// Instrumented (budget + metrics)
	instrumented := embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider.Name, cfg.Embedding.Model.Name, budget, logger,
	)

	// Instruction prefix (outermost so the cache key includes it)
	if instruction != "" {
		return domain.NewInstructionEmbedder(instrumented, instruction)
	}

	return instrumented
}

// warmup waits for the embedding provider, runs a probe embed, verifies
// the dimensionality, and only then marks the model as loaded.
func warmup(
	ctx context.Context,
	base domain.HealthChecker,
	embedder domain.Embedder,
	wantDims int,
	health *healthuc.Service,
	logger *zap.Logger,
) {
	const interval = 2 * time.Second

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := base.HealthCheck(ctx); err != nil {
			logger.Warn("Embedding provider not ready",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if !sleep(ctx, interval) {
				return
			}
			continue
		}

		res, err := embedder.Embed(ctx, "warmup probe")
		if err != nil {
			logger.Warn("Warmup embed failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if !sleep(ctx, interval) {
				return
			}
			continue
		}

		if len(res.Embedding) != wantDims {
			// Неверная размерность сломает все записи; ждём починки провайдера.
			logger.Error("Model dimensionality mismatch",
				zap.Int("got", len(res.Embedding)),
				zap.Int("want", wantDims),
			)
			if !sleep(ctx, 10*interval) {
				return
			}
			continue
		}

		health.SetModelLoaded()
		logger.Info("Model warmed up",
			zap.Int("dimensions", wantDims),
			zap.Int("attempt", attempt),
		)
		return
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
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

			// RequestID middleware runs earlier in the chain.
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Одна итоговая запись на запрос.
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
