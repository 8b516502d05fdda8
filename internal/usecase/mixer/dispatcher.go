package mixer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
)

var providerFilterRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// ResultReader loads the records a search owns.
type ResultReader interface {
	ListBySearch(ctx context.Context, searchID string) ([]result.Record, error)
}

// Dispatcher resolves a mixer by name and runs it over a search's records.
type Dispatcher struct {
	registry     *Registry
	results      ResultReader
	defaultMixer string
	logger       *zap.Logger
}

// NewDispatcher creates a mixer dispatcher.
func NewDispatcher(registry *Registry, results ResultReader, defaultMixer string, logger *zap.Logger) *Dispatcher {
	if defaultMixer == "" {
		defaultMixer = RelevancyMixer
	}
	return &Dispatcher{registry: registry, results: results, defaultMixer: defaultMixer, logger: logger}
}

// Known reports whether name resolves to a registered strategy.
func (d *Dispatcher) Known(name string) bool { return d.registry.Has(name) }

// Resolve picks the mixer name: override, then the search's mixer, then the default.
func (d *Dispatcher) Resolve(s *domsearch.Search, override string) string {
	switch {
	case override != "":
		return override
	case s != nil && s.Mixer() != "":
		return s.Mixer()
	default:
		return d.defaultMixer
	}
}

// Mix produces one page of mixed results. Checks run in order: readiness,
// mixer name, arguments. Nothing registered under the name runs until all pass.
func (d *Dispatcher) Mix(ctx context.Context, s domsearch.Search, override string, req mix.Request) (mix.Page, error) {
	if !s.Status().IsMixable() {
		return mix.Page{}, &domain.NotReadyError{Status: string(s.Status())}
	}

	name := d.Resolve(&s, override)
	strategy, err := d.registry.Lookup(name)
	if err != nil {
		metrics.MixerInvocationsTotal.WithLabelValues("unknown", "unknown_mixer").Inc()
		return mix.Page{}, err
	}

	if err := req.Validate(); err != nil {
		return mix.Page{}, err
	}
	if req.Provider != "" && !providerFilterRegex.MatchString(req.Provider) {
		return mix.Page{}, fmt.Errorf("invalid provider filter: %w", domain.ErrInvalidMixerArguments)
	}

	recs, err := d.results.ListBySearch(ctx, s.ID())
	if err != nil {
		return mix.Page{}, fmt.Errorf("load results: %w", err)
	}
	if req.Provider != "" {
		filtered := recs[:0:0]
		for _, r := range recs {
			if r.ProviderID() == req.Provider {
				filtered = append(filtered, r)
			}
		}
		recs = filtered
	}

	hits, err := d.invoke(ctx, name, strategy, Input{Query: s.Query(), Records: recs, Request: req})
	if err != nil {
		return mix.Page{}, err
	}

	found := 0
	for i := range recs {
		found += recs[i].Found()
	}

	page := mix.Page{
		SearchID:  s.ID(),
		Query:     s.Query(),
		Status:    string(s.Status()),
		Mixer:     name,
		Page:      req.Page,
		PageSize:  req.PageSize,
		Found:     found,
		Retrieved: len(hits),
		Messages:  s.Messages(),
		Hits:      paginate(hits, req, name),
	}
	metrics.MixerInvocationsTotal.WithLabelValues(name, "ok").Inc()
	return page, nil
}

// invoke runs the strategy, turning panics and unexpected errors into ErrMixerFailed.
func (d *Dispatcher) invoke(ctx context.Context, name string, s Strategy, in Input) (hits []mix.Hit, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Mixer panicked", zap.String("mixer", name), zap.Any("panic", r))
			metrics.MixerInvocationsTotal.WithLabelValues(name, "panic").Inc()
			hits, err = nil, fmt.Errorf("mixer %s: %v: %w", name, r, domain.ErrMixerFailed)
		}
	}()

	hits, err = s.Mix(ctx, in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMixerArguments) {
			metrics.MixerInvocationsTotal.WithLabelValues(name, "invalid_arguments").Inc()
			return nil, err
		}
		metrics.MixerInvocationsTotal.WithLabelValues(name, "error").Inc()
		return nil, fmt.Errorf("mixer %s: %w: %w", name, err, domain.ErrMixerFailed)
	}
	return hits, nil
}

// paginate slices the requested page and numbers ranks from the page offset.
// Explain maps are copied so stored records are never aliased.
func paginate(hits []mix.Hit, req mix.Request, mixer string) []mix.Hit {
	off := req.Offset()
	if off >= len(hits) {
		return []mix.Hit{}
	}
	end := min(off+req.PageSize, len(hits))

	out := make([]mix.Hit, end-off)
	for i, h := range hits[off:end] {
		h.Rank = off + i + 1
		if req.Explain {
			ex := make(map[string]any, len(h.Explain)+3)
			maps.Copy(ex, h.Explain)
			ex["mixer"] = mixer
			ex["provider_rank"] = h.ProviderRank
			ex["score"] = h.Score
			h.Explain = ex
		} else {
			h.Explain = nil
		}
		out[i] = h
	}
	return out
}
