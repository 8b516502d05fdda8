package result

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domresult "github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// Repository reads and deletes result records.
type Repository interface {
	Get(ctx context.Context, id string) (domresult.Record, error)
	ListByOwner(ctx context.Context, owner string) ([]domresult.Record, error)
	Delete(ctx context.Context, rec domresult.Record) error
}

// Service exposes an owner's raw result records.
type Service struct {
	repo Repository
}

// New creates a result record service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the owner's records, newest first.
func (s *Service) List(ctx context.Context, owner string) ([]domresult.Record, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// Get returns a record owned by owner. Records of other owners are not found.
func (s *Service) Get(ctx context.Context, owner, id string) (domresult.Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return domresult.Record{}, err
	}
	if rec.Owner() != owner {
		return domresult.Record{}, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Delete removes one record owned by owner.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	rec, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, rec)
}
