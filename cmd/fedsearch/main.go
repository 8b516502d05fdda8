package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/config"
	"github.com/kailas-cloud/fedsearch/internal/db"
	"github.com/kailas-cloud/fedsearch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/fedsearch/internal/db/redis"
	"github.com/kailas-cloud/fedsearch/internal/domain"
	logpkg "github.com/kailas-cloud/fedsearch/internal/logger"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
	"github.com/kailas-cloud/fedsearch/internal/repository/embcache"
	"github.com/kailas-cloud/fedsearch/internal/repository/lock"
	providerrepo "github.com/kailas-cloud/fedsearch/internal/repository/provider"
	resultrepo "github.com/kailas-cloud/fedsearch/internal/repository/result"
	searchrepo "github.com/kailas-cloud/fedsearch/internal/repository/search"
	chiTransport "github.com/kailas-cloud/fedsearch/internal/transport/chi"
	"github.com/kailas-cloud/fedsearch/internal/transport/connector"
	openaiEmb "github.com/kailas-cloud/fedsearch/internal/transport/openai"
	"github.com/kailas-cloud/fedsearch/internal/usecase/dispatch"
	embeddinguc "github.com/kailas-cloud/fedsearch/internal/usecase/embedding"
	"github.com/kailas-cloud/fedsearch/internal/usecase/execution"
	healthuc "github.com/kailas-cloud/fedsearch/internal/usecase/health"
	"github.com/kailas-cloud/fedsearch/internal/usecase/mixer"
	provideruc "github.com/kailas-cloud/fedsearch/internal/usecase/provider"
	"github.com/kailas-cloud/fedsearch/internal/usecase/relevancy"
	resultuc "github.com/kailas-cloud/fedsearch/internal/usecase/result"
	searchuc "github.com/kailas-cloud/fedsearch/internal/usecase/search"
	"github.com/kailas-cloud/fedsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fedsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("relevancy", cfg.Relevancy.Processor),
	)

	store, err := newStore(cfg.Database)
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
	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	searchCfg := cfg.SearchSettings()
	prefix := cfg.Storage.KeyPrefix

	// Repositories
	searches := searchrepo.New(store, prefix)
	results := resultrepo.New(store, prefix)
	providers := providerrepo.New(store, prefix)
	locker := lock.New(store, prefix, searchCfg.LockTTL, logger)

	providerSvc := provideruc.New(providers, logger)
	if err := providerSvc.Seed(ctx, seedInputs(cfg.Providers)); err != nil {
		logger.Fatal("Failed to seed providers", zap.Error(err))
	}

	// Relevancy processor, with the embedder chain when semantic
	var (
		embedder      domain.Embedder
		embedderCheck healthuc.EmbeddingChecker
	)
	if cfg.Relevancy.Processor == relevancy.KindSemantic {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Relevancy.Embedding.APIKey,
			BaseURL:    cfg.Relevancy.Embedding.BaseURL,
			Model:      cfg.Relevancy.Embedding.Model,
			Dimensions: cfg.Relevancy.Embedding.Dimensions,
			Provider:   cfg.Relevancy.Embedding.Provider,
			Logger:     logger,
		})
		embedder, embedderCheck = base, base
		if b := cfg.Relevancy.Embedding.Budget; b.Enabled() {
			budget := embeddinguc.NewBudget(store, prefix, cfg.Relevancy.Embedding.Provider, embeddinguc.Limits{
				DailyTokens:   b.DailyTokens,
				MonthlyTokens: b.MonthlyTokens,
				Action:        embeddinguc.Action(b.Action),
			}, logger)
			embedder = embeddinguc.NewMetered(embedder, budget, logger)
			logger.Info("Embedding budget enabled",
				zap.Int64("daily_tokens", b.DailyTokens),
				zap.Int64("monthly_tokens", b.MonthlyTokens),
				zap.String("action", b.Action),
			)
		}
		// Cache hits do not spend budget.
		if ttl := cfg.Relevancy.Embedding.CacheTTLSec; ttl > 0 {
			embedder = embcache.New(embedder, store, prefix, time.Duration(ttl)*time.Second,
				metrics.EmbeddingCacheTotal, logger)
		}
		logger.Info("Embedder created",
			zap.String("provider", cfg.Relevancy.Embedding.Provider),
			zap.String("model", cfg.Relevancy.Embedding.Model),
		)
	}
	processor, err := relevancy.New(cfg.Relevancy.Processor, embedder)
	if err != nil {
		logger.Fatal("Failed to create relevancy processor", zap.Error(err))
	}

	// Execution: connectors, executor, background dispatcher
	resolver := connector.NewResolver(&http.Client{}, cfg.ConnectorKeys())
	exec := execution.NewExecutor(searches, results, providers, locker,
		execution.NewStep(resolver, searchCfg.ProviderTimeout, logger),
		processor, searchCfg, logger)

	dispatcher := dispatch.New(exec, cfg.Search.Workers, cfg.Search.QueueSize, logger)
	dispatcher.Start(ctx)

	// Use case services
	mixers := mixer.NewDispatcher(mixer.NewDefaultRegistry(), results, searchCfg.DefaultMixer, logger)
	searchSvc := searchuc.New(searches, results, locker, dispatcher,
		dispatch.NewGate(searches, searchCfg.PollInterval), exec, mixers, searchCfg, logger)
	resultSvc := resultuc.New(results)
	healthSvc := healthuc.New(store, embedderCheck, dispatcher)

	// HTTP transport
	server := chiTransport.NewServer(searchSvc, resultSvc, providerSvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)
	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("Authentication disabled, all requests act as the default owner",
			zap.String("owner", chiTransport.DefaultOwner))
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	// Drain queued runs after HTTP stops accepting new searches.
	dispatcher.Stop()

	logger.Info("Server stopped gracefully")
}

// newStore creates the database store for the configured driver.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "valkey", "redis":
		// rueidis speaks the same protocol to both.
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func seedInputs(seeds []config.ProviderConfig) []provideruc.CreateInput {
	out := make([]provideruc.CreateInput, len(seeds))
	for i, p := range seeds {
		out[i] = provideruc.CreateInput{
			ID:              p.ID,
			Name:            p.Name,
			Connector:       p.Connector,
			Active:          p.IsActive(),
			Default:         p.Default,
			ResultsPerQuery: p.ResultsPerQuery,
			Timeout:         time.Duration(p.TimeoutMs) * time.Millisecond,
		}
	}
	return out
}
