package fedsearch

import (
	"context"
	"fmt"
	"time"

	provideruc "github.com/kailas-cloud/fedsearch/internal/usecase/provider"
)

// ProviderService manages the search providers searches fan out to.
type ProviderService struct {
	svc   providerUseCase
	owner string
	obs   *observer
}

// List returns all registered providers.
func (s *ProviderService) List(ctx context.Context) (_ []Provider, err error) {
	start := time.Now()
	defer func() { s.obs.observe("provider.list", start, err) }()

	ps, err := s.svc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make([]Provider, len(ps))
	for i, p := range ps {
		out[i] = fromInternalProvider(p)
	}
	return out, nil
}

// Create registers a provider.
func (s *ProviderService) Create(ctx context.Context, in ProviderInput) (_ Provider, err error) {
	start := time.Now()
	defer func() { s.obs.observe("provider.create", start, err) }()

	p, err := s.svc.Create(ctx, s.owner, toProviderInput(in))
	if err != nil {
		return Provider{}, fmt.Errorf("create provider: %w", err)
	}
	return fromInternalProvider(p), nil
}

func toProviderInput(p ProviderInput) provideruc.CreateInput {
	return provideruc.CreateInput{
		ID:              p.ID,
		Name:            p.Name,
		Connector:       p.Connector,
		Active:          !p.Inactive,
		Default:         p.Default,
		ResultsPerQuery: p.ResultsPerQuery,
		Timeout:         p.Timeout,
	}
}
