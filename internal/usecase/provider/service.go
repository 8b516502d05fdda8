package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
)

// Repository persists the provider catalog.
type Repository interface {
	Save(ctx context.Context, p domprov.Provider) error
	Get(ctx context.Context, id string) (domprov.Provider, error)
	List(ctx context.Context) ([]domprov.Provider, error)
}

// CreateInput describes a provider to register.
type CreateInput struct {
	ID              string
	Name            string
	Connector       string
	Active          bool
	Default         bool
	ResultsPerQuery int
	Timeout         time.Duration
}

// Service manages search providers.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a provider service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns all providers sorted by id.
func (s *Service) List(ctx context.Context) ([]domprov.Provider, error) {
	return s.repo.List(ctx)
}

// Get returns one provider.
func (s *Service) Get(ctx context.Context, id string) (domprov.Provider, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new provider owned by owner. Ids are unique.
func (s *Service) Create(ctx context.Context, owner string, in CreateInput) (domprov.Provider, error) {
	p, err := domprov.New(in.ID, in.Name, in.Connector, owner, in.Active, in.Default, in.ResultsPerQuery, in.Timeout)
	if err != nil {
		return domprov.Provider{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	_, err = s.repo.Get(ctx, p.ID())
	switch {
	case err == nil:
		return domprov.Provider{}, fmt.Errorf("%w: provider %s already exists", domain.ErrInvalidRequest, p.ID())
	case !errors.Is(err, domain.ErrNotFound):
		return domprov.Provider{}, fmt.Errorf("check provider: %w", err)
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return domprov.Provider{}, fmt.Errorf("save provider: %w", err)
	}
	s.logger.Info("Provider created", zap.String("provider", p.ID()), zap.String("owner", owner))
	return p, nil
}

// Seed upserts providers from configuration. Seeded providers are shared (no owner).
func (s *Service) Seed(ctx context.Context, seeds []CreateInput) error {
	for _, in := range seeds {
		p, err := domprov.New(in.ID, in.Name, in.Connector, "", in.Active, in.Default, in.ResultsPerQuery, in.Timeout)
		if err != nil {
			return fmt.Errorf("seed provider %q: %w", in.ID, err)
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return fmt.Errorf("seed provider %s: %w", p.ID(), err)
		}
	}
	if len(seeds) > 0 {
		s.logger.Info("Providers seeded", zap.Int("count", len(seeds)))
	}
	return nil
}
