package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
	"github.com/kailas-cloud/fedsearch/internal/usecase/dispatch"
	"github.com/kailas-cloud/fedsearch/internal/usecase/execution"
)

// CreateInput is a new query as submitted by a client.
type CreateInput struct {
	Query            string
	Providers        []string
	ResultsRequested int // 0 uses the configured default
	Mixer            string
}

// ResultsInput selects a page of mixed results.
type ResultsInput struct {
	Page     int    // 0 means 1
	Mixer    string // overrides the search's mixer
	Explain  *bool  // nil uses the configured default
	Provider string
}

// Service owns the lifecycle of searches: creation, reruns, rescoring and
// mixing their results. Execution itself happens in the background.
type Service struct {
	searches  Repository
	results   ResultPurger
	locker    Locker
	scheduler Scheduler
	waiter    Waiter
	runner    Runner
	mixer     Mixer
	cfg       domain.SearchConfig
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a search service.
func New(
	searches Repository,
	results ResultPurger,
	locker Locker,
	scheduler Scheduler,
	waiter Waiter,
	runner Runner,
	mixer Mixer,
	cfg domain.SearchConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		searches:  searches,
		results:   results,
		locker:    locker,
		scheduler: scheduler,
		waiter:    waiter,
		runner:    runner,
		mixer:     mixer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Create stores a new search, schedules its execution and waits up to the
// create budget for results. The returned search may still be in progress.
func (s *Service) Create(ctx context.Context, owner string, in CreateInput) (domsearch.Search, error) {
	q, err := s.newSearch(owner, in)
	if err != nil {
		return domsearch.Search{}, err
	}
	if err := s.searches.Save(ctx, q); err != nil {
		return domsearch.Search{}, fmt.Errorf("save search: %w", err)
	}

	if err := s.schedule(ctx, q, dispatch.TaskSearch); err != nil {
		return domsearch.Search{}, err
	}
	return s.await(ctx, q, s.cfg.CreateWait, status.Status.IsSettled)
}

// Inline creates a search, executes it in the caller's goroutine and returns
// the first page of mixed results. Results that are still not mixable after
// the bounded retry fail with domain.ErrNotReady.
func (s *Service) Inline(ctx context.Context, owner string, in CreateInput, ri ResultsInput) (mix.Page, error) {
	q, err := s.newSearch(owner, in)
	if err != nil {
		return mix.Page{}, err
	}
	if err := s.searches.Save(ctx, q); err != nil {
		return mix.Page{}, fmt.Errorf("save search: %w", err)
	}

	if _, err := s.runner.Run(ctx, q.ID()); err != nil {
		return mix.Page{}, err
	}

	var ready domsearch.Search
	err = dispatch.Retry(ctx, s.cfg.InlineRetryAttempts, s.cfg.InlineRetryInterval,
		func(ctx context.Context) (bool, error) {
			cur, err := s.searches.Get(ctx, q.ID())
			if err != nil {
				return false, err
			}
			if cur.Status() == status.Failed {
				return false, fmt.Errorf("search %s failed: %w", q.ID(), domain.ErrFatalExecution)
			}
			ready = cur
			return cur.Status().IsMixable(), nil
		})
	if err != nil {
		return mix.Page{}, err
	}
	return s.mixer.Mix(ctx, ready, ri.Mixer, s.mixRequest(ready, ri))
}

// List returns the owner's searches, newest first.
func (s *Service) List(ctx context.Context, owner string) ([]domsearch.Search, error) {
	list, err := s.searches.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	return list, nil
}

// Get returns a search owned by owner. Searches of other owners are not found.
func (s *Service) Get(ctx context.Context, owner, id string) (domsearch.Search, error) {
	q, err := s.searches.Get(ctx, id)
	if err != nil {
		return domsearch.Search{}, err
	}
	if q.Owner() != owner {
		return domsearch.Search{}, fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
	}
	return q, nil
}

// Delete removes a search and all of its result records. A run in flight
// discards its outcome.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	release, err := s.locker.Acquire(ctx, execution.LockKey(id))
	if err != nil {
		return fmt.Errorf("lock search: %w", err)
	}
	defer release()

	q, err := s.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	n, err := s.results.DeleteBySearch(ctx, id)
	if err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	if err := s.searches.Delete(ctx, q); err != nil {
		return fmt.Errorf("delete search: %w", err)
	}
	s.logger.Info("Search deleted", zap.String("search_id", id), zap.Int("results", n))
	return nil
}

// Results mixes one page of a search's results.
func (s *Service) Results(ctx context.Context, owner, id string, ri ResultsInput) (mix.Page, error) {
	q, err := s.Get(ctx, owner, id)
	if err != nil {
		return mix.Page{}, err
	}
	return s.mixer.Mix(ctx, q, ri.Mixer, s.mixRequest(q, ri))
}

// Rerun discards a search's results, resets it to NEW under the same id and
// schedules a fresh execution. Any run still in flight is superseded.
func (s *Service) Rerun(ctx context.Context, owner, id string) (domsearch.Search, error) {
	q, err := s.mutate(ctx, owner, id, func(q *domsearch.Search) error {
		if _, err := s.results.DeleteBySearch(ctx, id); err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		return q.Advance(status.Rerun(s.now()))
	})
	if err != nil {
		return domsearch.Search{}, err
	}

	if err := s.schedule(ctx, q, dispatch.TaskSearch); err != nil {
		return domsearch.Search{}, err
	}
	return s.await(ctx, q, s.cfg.RerunWait, status.Status.IsSettled)
}

// Rescore moves a search with results to RESCORING and schedules relevancy
// reprocessing of its stored records. Searches without results yet fail with
// domain.ErrInvalidTransition.
func (s *Service) Rescore(ctx context.Context, owner, id string) (domsearch.Search, error) {
	q, err := s.mutate(ctx, owner, id, func(q *domsearch.Search) error {
		return q.Advance(status.RescoreRequested())
	})
	if err != nil {
		return domsearch.Search{}, err
	}

	if err := s.scheduler.Schedule(dispatch.Task{Kind: dispatch.TaskRescore, SearchID: id}); err != nil {
		return domsearch.Search{}, fmt.Errorf("schedule rescore: %w", err)
	}
	return s.await(ctx, q, s.cfg.RescoreWait, func(st status.Status) bool {
		return st != status.Rescoring
	})
}

// Update edits a search's query, providers, page size or mixer. A search that
// is still NEW is queued again; other searches keep their status and results
// until rerun. Running or rescoring searches fail with domain.ErrInvalidTransition.
func (s *Service) Update(ctx context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error) {
	if e.Empty() {
		return domsearch.Search{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidRequest)
	}
	if e.Mixer != nil && *e.Mixer != "" && !s.mixer.Known(*e.Mixer) {
		return domsearch.Search{}, fmt.Errorf("%w: mixer %q: %w", domain.ErrInvalidRequest, *e.Mixer, domain.ErrUnknownMixer)
	}

	q, err := s.mutate(ctx, owner, id, func(q *domsearch.Search) error {
		if err := q.Update(e); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		return nil
	})
	if err != nil {
		return domsearch.Search{}, err
	}
	s.logger.Info("Search updated", zap.String("search_id", id), zap.String("status", string(q.Status())))

	if q.Status() != status.New {
		return q, nil
	}
	// A queued task for this generation may already exist; the extra run is skipped.
	if err := s.scheduler.Schedule(dispatch.Task{Kind: dispatch.TaskSearch, SearchID: id}); err != nil {
		return domsearch.Search{}, fmt.Errorf("schedule search: %w", err)
	}
	return q, nil
}

// mutate applies fn to a search under its lock and persists the result.
func (s *Service) mutate(ctx context.Context, owner, id string, fn func(q *domsearch.Search) error) (domsearch.Search, error) {
	release, err := s.locker.Acquire(ctx, execution.LockKey(id))
	if err != nil {
		return domsearch.Search{}, fmt.Errorf("lock search: %w", err)
	}
	defer release()

	q, err := s.Get(ctx, owner, id)
	if err != nil {
		return domsearch.Search{}, err
	}
	if err := fn(&q); err != nil {
		return domsearch.Search{}, err
	}
	if err := s.searches.Save(ctx, q); err != nil {
		return domsearch.Search{}, fmt.Errorf("save search: %w", err)
	}
	return q, nil
}

func (s *Service) newSearch(owner string, in CreateInput) (domsearch.Search, error) {
	results := in.ResultsRequested
	if results == 0 {
		results = s.cfg.DefaultResults
	}
	if in.Mixer != "" && !s.mixer.Known(in.Mixer) {
		return domsearch.Search{}, fmt.Errorf("%w: mixer %q: %w", domain.ErrInvalidRequest, in.Mixer, domain.ErrUnknownMixer)
	}
	q, err := domsearch.New(uuid.NewString(), owner, in.Query, in.Providers, results, in.Mixer)
	if err != nil {
		return domsearch.Search{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return q, nil
}

// schedule queues execution. A search that cannot be queued is marked FAILED
// so it does not sit in NEW forever.
func (s *Service) schedule(ctx context.Context, q domsearch.Search, kind dispatch.TaskKind) error {
	err := s.scheduler.Schedule(dispatch.Task{Kind: kind, SearchID: q.ID()})
	if err == nil {
		return nil
	}

	s.logger.Warn("Search could not be scheduled", zap.String("search_id", q.ID()), zap.Error(err))
	if errors.Is(err, domain.ErrQueueFull) {
		s.failUnscheduled(ctx, q)
	}
	return fmt.Errorf("schedule search: %w", err)
}

// failUnscheduled marks q FAILED under its lock. It does nothing when the search
// was deleted, rerun again or started in the meantime.
func (s *Service) failUnscheduled(ctx context.Context, q domsearch.Search) {
	log := s.logger.With(zap.String("search_id", q.ID()))

	release, err := s.locker.Acquire(ctx, execution.LockKey(q.ID()))
	if err != nil {
		log.Error("Failed to lock unscheduled search", zap.Error(err))
		return
	}
	defer release()

	cur, err := s.searches.Get(ctx, q.ID())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error("Failed to reload unscheduled search", zap.Error(err))
		}
		return
	}
	if cur.Status() != status.New || cur.Generation() != q.Generation() {
		return
	}
	if err := cur.Advance(status.Fail("could not be scheduled")); err != nil {
		return
	}
	if err := s.searches.Save(ctx, cur); err != nil {
		log.Error("Failed to save unscheduled search", zap.Error(err))
	}
}

// await waits up to budget for done and returns the freshest copy of q.
func (s *Service) await(
	ctx context.Context, q domsearch.Search, budget time.Duration, done func(status.Status) bool,
) (domsearch.Search, error) {
	if budget > 0 {
		if _, err := s.waiter.WaitUntil(ctx, q.ID(), budget, done); err != nil {
			s.logger.Debug("Wait ended early", zap.String("search_id", q.ID()), zap.Error(err))
		}
	}
	cur, err := s.searches.Get(ctx, q.ID())
	if err != nil {
		// Deleted while waiting: report what was stored.
		if errors.Is(err, domain.ErrNotFound) {
			return q, nil
		}
		return domsearch.Search{}, fmt.Errorf("reload search: %w", err)
	}
	return cur, nil
}

func (s *Service) mixRequest(q domsearch.Search, ri ResultsInput) mix.Request {
	page := ri.Page
	if page == 0 {
		page = 1
	}
	explain := s.cfg.DefaultExplain
	if ri.Explain != nil {
		explain = *ri.Explain
	}
	return mix.Request{
		SearchID: q.ID(),
		Page:     page,
		PageSize: q.ResultsRequested(),
		Explain:  explain,
		Provider: ri.Provider,
	}
}
