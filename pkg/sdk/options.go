package fedsearch

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/fedsearch/internal/domain"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "memory"
	addrs    []string
	password string

	keyPrefix  string
	owner      string
	search     domain.SearchConfig
	workers    int
	queueSize  int
	httpClient *http.Client

	providers     []ProviderInput
	connectorKeys map[string]string
	connectors    map[string]Connector
	embedding     *EmbeddingConfig

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		keyPrefix:     "fedsearch:",
		owner:         "admin",
		search:        domain.DefaultSearchConfig(),
		workers:       4,
		queueSize:     256,
		connectorKeys: map[string]string{},
	}
}

// EmbeddingConfig switches relevancy scoring to semantic similarity computed
// through an OpenAI-compatible embeddings API.
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string // defaults to text-embedding-3-small
	Dimensions int
	// CacheTTL caches embeddings in the store. Zero disables the cache.
	CacheTTL time.Duration
	// DailyTokens and MonthlyTokens cap spent tokens per UTC period. Zero is
	// unlimited. Over budget, items are left unscored.
	DailyTokens   int64
	MonthlyTokens int64
}

// WithValkey configures the client to store searches in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to store searches in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps all state in process memory. Useful for tests and
// single-shot tools; nothing survives Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithKeyPrefix sets the prefix of every stored key. Default: "fedsearch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithOwner sets the owner recorded on searches and providers created
// through the client. Default: "admin".
func WithOwner(owner string) Option {
	return optionFunc(func(c *clientConfig) {
		c.owner = owner
	})
}

// WithProvider registers a provider when the client starts. Existing
// providers with the same id are left untouched.
func WithProvider(p ProviderInput) Option {
	return optionFunc(func(c *clientConfig) {
		c.providers = append(c.providers, p)
	})
}

// WithConnectorKey sets the bearer key sent to the connector of a provider.
func WithConnectorKey(providerID, key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.connectorKeys[providerID] = key
	})
}

// WithHTTPClient sets the client used to call provider connectors.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithEmbedding enables semantic relevancy.
func WithEmbedding(cfg EmbeddingConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedding = &cfg
	})
}

// WithWaits sets how long Create, Rerun and Rescore wait for results
// before returning a search that is still running.
func WithWaits(create, rerun, rescore time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.search.CreateWait = create
		c.search.RerunWait = rerun
		c.search.RescoreWait = rescore
	})
}

// WithProviderTimeout bounds a single provider call. Default: 10s.
func WithProviderTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.search.ProviderTimeout = d
	})
}

// WithDefaultMixer sets the mixer used when a search names none.
// Default: "RelevancyMixer".
func WithDefaultMixer(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.search.DefaultMixer = name
	})
}

// WithWorkers sets the number of background executors and the queue size.
// Defaults: 4 workers, 256 queued runs.
func WithWorkers(workers, queueSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = workers
		c.queueSize = queueSize
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
