package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/fedsearch/internal/domain"
)

// Config holds the fedsearch API configuration.
type Config struct {
	HTTP      HTTPConfig       `yaml:"http"`
	Database  DatabaseConfig   `yaml:"database"`
	Auth      AuthConfig       `yaml:"auth"`
	Search    SearchConfig     `yaml:"search"`
	Providers []ProviderConfig `yaml:"providers"`
	Relevancy RelevancyConfig  `yaml:"relevancy"`
	Storage   StorageConfig    `yaml:"storage"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// APIKeys maps a bearer key to the owner it authenticates.
	// Empty disables authentication.
	APIKeys map[string]string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds orchestration settings. Durations are in milliseconds.
type SearchConfig struct {
	CreateWaitMs          int    `yaml:"create_wait_ms"`
	RerunWaitMs           int    `yaml:"rerun_wait_ms"`
	RescoreWaitMs         int    `yaml:"rescore_wait_ms"`
	PollIntervalMs        int    `yaml:"poll_interval_ms"`
	DefaultExplain        bool   `yaml:"default_explain"`
	MaxInFlightProviders  int    `yaml:"max_in_flight_providers"`
	ProviderTimeoutMs     int    `yaml:"provider_timeout_ms"`
	InlineRetryAttempts   int    `yaml:"inline_retry_attempts"`
	InlineRetryIntervalMs int    `yaml:"inline_retry_interval_ms"`
	DefaultResults        int    `yaml:"default_results_requested"`
	DefaultMixer          string `yaml:"default_mixer"`
	Workers               int    `yaml:"workers"`
	QueueSize             int    `yaml:"queue_size"`
	LockTTLMs             int    `yaml:"lock_ttl_ms"`
}

// ProviderConfig seeds one search provider at startup.
type ProviderConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Connector       string `yaml:"connector"`
	APIKey          string `yaml:"api_key"`
	Active          *bool  `yaml:"active"` // default true
	Default         bool   `yaml:"default"`
	ResultsPerQuery int    `yaml:"results_per_query"`
	TimeoutMs       int    `yaml:"timeout_ms"`
}

// IsActive reports whether the seeded provider is active.
func (p ProviderConfig) IsActive() bool {
	return p.Active == nil || *p.Active
}

// RelevancyConfig selects the relevancy processor.
type RelevancyConfig struct {
	Processor string          `yaml:"processor"` // terms, semantic (default: terms)
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig holds the OpenAI-compatible provider used by semantic relevancy.
type EmbeddingConfig struct {
	Provider    string       `yaml:"provider"`
	APIKey      string       `yaml:"api_key"`
	BaseURL     string       `yaml:"base_url"`
	Model       string       `yaml:"model"`
	Dimensions  int          `yaml:"dimensions"`
	CacheTTLSec int          `yaml:"cache_ttl_sec"` // 0 disables the embedding cache
	Budget      BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps embedding tokens per UTC day and month. Zero is unlimited.
type BudgetConfig struct {
	DailyTokens   int64  `yaml:"daily_tokens"`
	MonthlyTokens int64  `yaml:"monthly_tokens"`
	Action        string `yaml:"action"` // warn, reject (default: reject)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokens > 0 || b.MonthlyTokens > 0
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes configuration from YAML, expanding ${VAR} references,
// applying defaults and validating the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Create, rerun and qx block for their wait budgets.
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	d := domain.DefaultSearchConfig()
	s := &c.Search
	setDefault(&s.CreateWaitMs, int(d.CreateWait.Milliseconds()))
	setDefault(&s.RerunWaitMs, int(d.RerunWait.Milliseconds()))
	setDefault(&s.RescoreWaitMs, int(d.RescoreWait.Milliseconds()))
	setDefault(&s.PollIntervalMs, int(d.PollInterval.Milliseconds()))
	setDefault(&s.MaxInFlightProviders, d.MaxInFlightProviders)
	setDefault(&s.ProviderTimeoutMs, int(d.ProviderTimeout.Milliseconds()))
	setDefault(&s.InlineRetryAttempts, d.InlineRetryAttempts)
	setDefault(&s.InlineRetryIntervalMs, int(d.InlineRetryInterval.Milliseconds()))
	setDefault(&s.DefaultResults, d.DefaultResults)
	setDefault(&s.Workers, 4)
	setDefault(&s.QueueSize, 256)
	setDefault(&s.LockTTLMs, int(d.LockTTL.Milliseconds()))
	if s.DefaultMixer == "" {
		s.DefaultMixer = d.DefaultMixer
	}

	if c.Relevancy.Processor == "" {
		c.Relevancy.Processor = "terms"
	}
	if c.Relevancy.Embedding.Provider == "" {
		c.Relevancy.Embedding.Provider = "openai"
	}
	if c.Relevancy.Embedding.Model == "" {
		c.Relevancy.Embedding.Model = "text-embedding-3-small"
	}
	if c.Relevancy.Embedding.Budget.Action == "" {
		c.Relevancy.Embedding.Budget.Action = "reject"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "fedsearch:"
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"valkey\", \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	switch c.Relevancy.Processor {
	case "terms":
	case "semantic":
		if c.Relevancy.Embedding.APIKey == "" {
			return fmt.Errorf("relevancy.embedding.api_key is required for the semantic processor")
		}
		if a := c.Relevancy.Embedding.Budget.Action; a != "warn" && a != "reject" {
			return fmt.Errorf("relevancy.embedding.budget.action must be \"warn\" or \"reject\", got %q", a)
		}
	default:
		return fmt.Errorf("relevancy.processor must be \"terms\" or \"semantic\", got %q", c.Relevancy.Processor)
	}
	if c.Search.DefaultResults > 100 {
		return fmt.Errorf("search.default_results_requested must be at most 100, got %d", c.Search.DefaultResults)
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d].id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("providers[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.Connector == "" {
			return fmt.Errorf("providers.%s.connector is required", p.ID)
		}
	}
	return nil
}

// SearchSettings converts the search section to the settings injected into services.
func (c *Config) SearchSettings() domain.SearchConfig {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	s := c.Search
	return domain.SearchConfig{
		CreateWait:           ms(s.CreateWaitMs),
		RerunWait:            ms(s.RerunWaitMs),
		RescoreWait:          ms(s.RescoreWaitMs),
		PollInterval:         ms(s.PollIntervalMs),
		DefaultExplain:       s.DefaultExplain,
		MaxInFlightProviders: s.MaxInFlightProviders,
		ProviderTimeout:      ms(s.ProviderTimeoutMs),
		InlineRetryAttempts:  s.InlineRetryAttempts,
		InlineRetryInterval:  ms(s.InlineRetryIntervalMs),
		DefaultResults:       s.DefaultResults,
		DefaultMixer:         s.DefaultMixer,
		LockTTL:              ms(s.LockTTLMs),
	}
}

// ConnectorKeys returns the connector API keys of seeded providers by provider id.
func (c *Config) ConnectorKeys() map[string]string {
	keys := make(map[string]string)
	for _, p := range c.Providers {
		if p.APIKey != "" {
			keys[p.ID] = p.APIKey
		}
	}
	return keys
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
