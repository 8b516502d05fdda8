package domain

import "time"

// SearchConfig holds the orchestration settings injected into services.
type SearchConfig struct {
	CreateWait           time.Duration
	RerunWait            time.Duration
	RescoreWait          time.Duration
	PollInterval         time.Duration
	DefaultExplain       bool
	MaxInFlightProviders int
	ProviderTimeout      time.Duration
	InlineRetryAttempts  int
	InlineRetryInterval  time.Duration
	DefaultResults       int
	DefaultMixer         string
	LockTTL              time.Duration
}

// DefaultSearchConfig returns the settings used when nothing is configured.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		CreateWait:           2 * time.Second,
		RerunWait:            2 * time.Second,
		RescoreWait:          time.Second,
		PollInterval:         100 * time.Millisecond,
		DefaultExplain:       false,
		MaxInFlightProviders: 8,
		ProviderTimeout:      10 * time.Second,
		InlineRetryAttempts:  10,
		InlineRetryInterval:  time.Second,
		DefaultResults:       10,
		DefaultMixer:         "RelevancyMixer",
		LockTTL:              time.Minute,
	}
}
