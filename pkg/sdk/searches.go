package fedsearch

import (
	"context"
	"fmt"
	"time"

	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	searchuc "github.com/kailas-cloud/fedsearch/internal/usecase/search"
)

// SearchService manages searches and reads their mixed results.
type SearchService struct {
	svc   searchUseCase
	owner string
	obs   *observer
}

// Create stores a search and starts executing it in the background. It waits
// a short while for results, so the returned search may already be ready.
func (s *SearchService) Create(ctx context.Context, in SearchInput) (_ Search, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.create", start, err) }()

	q, err := s.svc.Create(ctx, s.owner, toCreateInput(in))
	if err != nil {
		return Search{}, fmt.Errorf("create search: %w", err)
	}
	return fromInternalSearch(q), nil
}

// Run executes a search synchronously and returns the requested page of its
// results. The search is stored like one made with Create.
func (s *SearchService) Run(ctx context.Context, in SearchInput, opts ResultsOptions) (_ Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.run", start, err) }()

	p, err := s.svc.Inline(ctx, s.owner, toCreateInput(in), toResultsInput(opts))
	if err != nil {
		return Page{}, fmt.Errorf("run search: %w", err)
	}
	return fromInternalPage(p), nil
}

// Get returns a search by id.
func (s *SearchService) Get(ctx context.Context, id string) (_ Search, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.get", start, err) }()

	q, err := s.svc.Get(ctx, s.owner, id)
	if err != nil {
		return Search{}, fmt.Errorf("get search %s: %w", id, err)
	}
	return fromInternalSearch(q), nil
}

// List returns the searches of the client's owner.
func (s *SearchService) List(ctx context.Context) (_ []Search, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.list", start, err) }()

	qs, err := s.svc.List(ctx, s.owner)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	out := make([]Search, len(qs))
	for i, q := range qs {
		out[i] = fromInternalSearch(q)
	}
	return out, nil
}

// Update edits a search. A search that has not started yet runs with the new
// values; a finished one keeps its results until Rerun. Running searches fail
// with ErrInvalidTransition.
func (s *SearchService) Update(ctx context.Context, id string, u SearchUpdate) (_ Search, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.update", start, err) }()

	q, err := s.svc.Update(ctx, s.owner, id, domsearch.Edit{
		Query:            u.Query,
		Providers:        u.Providers,
		ResultsRequested: u.ResultsRequested,
		Mixer:            u.Mixer,
	})
	if err != nil {
		return Search{}, fmt.Errorf("update search %s: %w", id, err)
	}
	return fromInternalSearch(q), nil
}

// Delete removes a search and its stored results.
func (s *SearchService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.delete", start, err) }()

	if err = s.svc.Delete(ctx, s.owner, id); err != nil {
		return fmt.Errorf("delete search %s: %w", id, err)
	}
	return nil
}

// Results mixes the stored results of a search into a page. It fails with
// ErrNotReady while the search is still running.
func (s *SearchService) Results(ctx context.Context, id string, opts ResultsOptions) (_ Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.results", start, err) }()

	p, err := s.svc.Results(ctx, s.owner, id, toResultsInput(opts))
	if err != nil {
		return Page{}, fmt.Errorf("results of %s: %w", id, err)
	}
	return fromInternalPage(p), nil
}

// Rerun discards the results of a finished search and executes it again.
func (s *SearchService) Rerun(ctx context.Context, id string) (_ Search, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.rerun", start, err) }()

	q, err := s.svc.Rerun(ctx, s.owner, id)
	if err != nil {
		return Search{}, fmt.Errorf("rerun search %s: %w", id, err)
	}
	return fromInternalSearch(q), nil
}

// Rescore recomputes relevancy of the stored results without querying
// providers again.
func (s *SearchService) Rescore(ctx context.Context, id string) (_ Search, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.rescore", start, err) }()

	q, err := s.svc.Rescore(ctx, s.owner, id)
	if err != nil {
		return Search{}, fmt.Errorf("rescore search %s: %w", id, err)
	}
	return fromInternalSearch(q), nil
}

func toCreateInput(in SearchInput) searchuc.CreateInput {
	return searchuc.CreateInput{
		Query:            in.Query,
		Providers:        in.Providers,
		ResultsRequested: in.ResultsRequested,
		Mixer:            in.Mixer,
	}
}

func toResultsInput(o ResultsOptions) searchuc.ResultsInput {
	return searchuc.ResultsInput{
		Page:     o.Page,
		Mixer:    o.Mixer,
		Explain:  o.Explain,
		Provider: o.Provider,
	}
}
