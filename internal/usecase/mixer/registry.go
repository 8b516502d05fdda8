package mixer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// nameRegex bounds what a caller may send as a mixer name. Lookup never
// interprets the name beyond a map key.
var nameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// Input is what a strategy ranks.
type Input struct {
	Query   string
	Records []result.Record
	Request mix.Request
}

// Strategy orders the items of all records into hits. Pagination, rank
// numbering and explain filtering are applied by the Dispatcher afterwards.
// A strategy rejecting its input returns an error wrapping domain.ErrInvalidMixerArguments.
type Strategy interface {
	Mix(ctx context.Context, in Input) ([]mix.Hit, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, in Input) ([]mix.Hit, error)

// Mix calls f.
func (f StrategyFunc) Mix(ctx context.Context, in Input) ([]mix.Hit, error) { return f(ctx, in) }

// Registry maps mixer names to strategies. It is filled at startup.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// NewDefaultRegistry creates a registry holding the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(RelevancyMixer, StrategyFunc(mixByRelevancy))
	r.MustRegister(DateMixer, StrategyFunc(mixByDate))
	r.MustRegister(RoundRobinMixer, StrategyFunc(mixRoundRobin))
	r.MustRegister(StackMixer, StrategyFunc(mixStacked))
	return r
}

// Register adds a strategy. Names must be valid and unique.
func (r *Registry) Register(name string, s Strategy) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid mixer name %q", name)
	}
	if s == nil {
		return fmt.Errorf("mixer %s: nil strategy", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("mixer %s already registered", name)
	}
	r.strategies[name] = s
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, s Strategy) {
	if err := r.Register(name, s); err != nil {
		panic(err)
	}
}

// Lookup resolves a name. Malformed and unregistered names fail with domain.ErrUnknownMixer.
func (r *Registry) Lookup(name string) (Strategy, error) {
	if !nameRegex.MatchString(name) {
		return nil, fmt.Errorf("mixer name is malformed: %w", domain.ErrUnknownMixer)
	}
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mixer %s: %w", name, domain.ErrUnknownMixer)
	}
	return s, nil
}

// Has reports whether name resolves.
func (r *Registry) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
