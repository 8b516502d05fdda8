package fedsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/db"
	"github.com/kailas-cloud/fedsearch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/fedsearch/internal/db/redis"
	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
	"github.com/kailas-cloud/fedsearch/internal/repository/embcache"
	"github.com/kailas-cloud/fedsearch/internal/repository/lock"
	providerrepo "github.com/kailas-cloud/fedsearch/internal/repository/provider"
	resultrepo "github.com/kailas-cloud/fedsearch/internal/repository/result"
	searchrepo "github.com/kailas-cloud/fedsearch/internal/repository/search"
	"github.com/kailas-cloud/fedsearch/internal/transport/connector"
	openaiEmb "github.com/kailas-cloud/fedsearch/internal/transport/openai"
	"github.com/kailas-cloud/fedsearch/internal/usecase/dispatch"
	embeddinguc "github.com/kailas-cloud/fedsearch/internal/usecase/embedding"
	"github.com/kailas-cloud/fedsearch/internal/usecase/execution"
	healthuc "github.com/kailas-cloud/fedsearch/internal/usecase/health"
	"github.com/kailas-cloud/fedsearch/internal/usecase/mixer"
	provideruc "github.com/kailas-cloud/fedsearch/internal/usecase/provider"
	"github.com/kailas-cloud/fedsearch/internal/usecase/relevancy"
	searchuc "github.com/kailas-cloud/fedsearch/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces for substitution in tests.
type searchUseCase interface {
	Create(ctx context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error)
	Inline(ctx context.Context, owner string, in searchuc.CreateInput, ri searchuc.ResultsInput) (mix.Page, error)
	List(ctx context.Context, owner string) ([]domsearch.Search, error)
	Get(ctx context.Context, owner, id string) (domsearch.Search, error)
	Update(ctx context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error)
	Delete(ctx context.Context, owner, id string) error
	Results(ctx context.Context, owner, id string, ri searchuc.ResultsInput) (mix.Page, error)
	Rerun(ctx context.Context, owner, id string) (domsearch.Search, error)
	Rescore(ctx context.Context, owner, id string) (domsearch.Search, error)
}

type providerUseCase interface {
	List(ctx context.Context) ([]domprov.Provider, error)
	Create(ctx context.Context, owner string, in provideruc.CreateInput) (domprov.Provider, error)
}

// stopper halts background execution.
type stopper interface {
	Stop()
}

// Client is the fedsearch SDK entry point.
type Client struct {
	store      db.Store
	dispatcher stopper
	owner      string
	searchSvc  searchUseCase
	provSvc    providerUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a fedsearch Client, connects to the database, registers the
// configured providers and starts background execution.
// The provided context is used for the initial readiness check and seeding.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("fedsearch: storage required (use WithValkey, WithRedis or WithMemory)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("fedsearch: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, fmt.Errorf("fedsearch: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("fedsearch: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("fedsearch: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := zap.NewNop()
	prefix := cfg.keyPrefix

	searches := searchrepo.New(store, prefix)
	results := resultrepo.New(store, prefix)
	providers := providerrepo.New(store, prefix)
	locker := lock.New(store, prefix, cfg.search.LockTTL, logger)

	provSvc := provideruc.New(providers, logger)
	if err := provSvc.Seed(ctx, toSeedInputs(cfg.providers)); err != nil {
		return nil, fmt.Errorf("fedsearch: register providers: %w", err)
	}

	resolver := connector.NewResolver(cfg.httpClient, cfg.connectorKeys)
	for id, c := range cfg.connectors {
		resolver.Register(id, &connectorAdapter{inner: c})
	}

	processor, embedCheck, err := buildRelevancy(store, cfg, logger)
	if err != nil {
		return nil, err
	}

	exec := execution.NewExecutor(searches, results, providers, locker,
		execution.NewStep(resolver, cfg.search.ProviderTimeout, logger),
		processor, cfg.search, logger)

	disp := dispatch.New(exec, cfg.workers, cfg.queueSize, logger)
	// Runs outlive the ctx passed to New.
	disp.Start(context.Background())

	mixers := mixer.NewDispatcher(mixer.NewDefaultRegistry(), results, cfg.search.DefaultMixer, logger)
	searchSvc := searchuc.New(searches, results, locker, disp,
		dispatch.NewGate(searches, cfg.search.PollInterval), exec, mixers, cfg.search, logger)

	return &Client{
		store:      store,
		dispatcher: disp,
		owner:      cfg.owner,
		searchSvc:  searchSvc,
		provSvc:    provSvc,
		healthSvc:  healthuc.New(store, embedCheck, disp),
		obs:        obs,
	}, nil
}

// buildRelevancy returns the terms processor, or the semantic one when an
// embedding provider is configured.
func buildRelevancy(
	store db.Store, cfg *clientConfig, logger *zap.Logger,
) (relevancy.Processor, healthuc.EmbeddingChecker, error) {
	if cfg.embedding == nil {
		p, err := relevancy.New(relevancy.KindTerms, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("fedsearch: relevancy: %w", err)
		}
		return p, nil, nil
	}

	model := cfg.embedding.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.embedding.APIKey,
		BaseURL:    cfg.embedding.BaseURL,
		Model:      model,
		Dimensions: cfg.embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var emb domain.Embedder = base
	if e := cfg.embedding; e.DailyTokens > 0 || e.MonthlyTokens > 0 {
		budget := embeddinguc.NewBudget(store, cfg.keyPrefix, "openai", embeddinguc.Limits{
			DailyTokens:   e.DailyTokens,
			MonthlyTokens: e.MonthlyTokens,
			Action:        embeddinguc.ActionReject,
		}, logger)
		emb = embeddinguc.NewMetered(emb, budget, logger)
	}
	if cfg.embedding.CacheTTL > 0 {
		emb = embcache.New(emb, store, cfg.keyPrefix, cfg.embedding.CacheTTL,
			metrics.EmbeddingCacheTotal, logger)
	}
	p, err := relevancy.New(relevancy.KindSemantic, emb)
	if err != nil {
		return nil, nil, fmt.Errorf("fedsearch: relevancy: %w", err)
	}
	return p, base, nil
}

func toSeedInputs(in []ProviderInput) []provideruc.CreateInput {
	out := make([]provideruc.CreateInput, len(in))
	for i, p := range in {
		out[i] = toProviderInput(p)
	}
	return out
}

// Close stops background execution, waiting for queued runs, and releases
// the database connection.
func (c *Client) Close() {
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Searches returns the search service.
func (c *Client) Searches() *SearchService {
	return &SearchService{svc: c.searchSvc, owner: c.owner, obs: c.obs}
}

// Providers returns the provider service.
func (c *Client) Providers() *ProviderService {
	return &ProviderService{svc: c.provSvc, owner: c.owner, obs: c.obs}
}
