package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
)

// RunOutcome describes what a Run did.
type RunOutcome string

// Run outcomes.
const (
	RunCompleted  RunOutcome = "completed"  // reached a _READY status
	RunFailed     RunOutcome = "failed"     // reached FAILED
	RunSkipped    RunOutcome = "skipped"    // search was not NEW
	RunSuperseded RunOutcome = "superseded" // search was deleted or rerun meanwhile
)

// LockKey returns the lock key guarding a search.
func LockKey(searchID string) string { return "search:" + searchID }

// Executor drives provider steps for one search and advances its status.
type Executor struct {
	searches  SearchRepository
	results   ResultRepository
	providers ProviderCatalog
	locker    Locker
	step      *Step
	relevancy Relevancy
	cfg       domain.SearchConfig
	logger    *zap.Logger
}

// NewExecutor creates a search executor. relevancy may be nil.
func NewExecutor(
	searches SearchRepository,
	results ResultRepository,
	providers ProviderCatalog,
	locker Locker,
	step *Step,
	relevancy Relevancy,
	cfg domain.SearchConfig,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		searches:  searches,
		results:   results,
		providers: providers,
		locker:    locker,
		step:      step,
		relevancy: relevancy,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes a NEW search end to end. A search in any other status is left alone.
// A run that ends FAILED returns an error wrapping domain.ErrFatalExecution.
func (e *Executor) Run(ctx context.Context, id string) (RunOutcome, error) {
	outcome, err := e.run(ctx, id)
	label := string(outcome)
	if outcome == "" {
		label = "error"
	}
	metrics.SearchRunsTotal.WithLabelValues(label).Inc()
	return outcome, err
}

func (e *Executor) run(ctx context.Context, id string) (RunOutcome, error) {
	log := e.logger.With(zap.String("search_id", id))

	st, err := e.start(ctx, id)
	if err != nil {
		return "", err
	}
	if st.skipped {
		log.Debug("Search not NEW, run skipped", zap.String("status", string(st.search.Status())))
		return RunSkipped, nil
	}
	if st.catalogErr != nil {
		return e.finishFatal(ctx, id, st.generation, nil,
			fmt.Sprintf("provider catalog unavailable: %v", st.catalogErr))
	}
	if len(st.runnable) == 0 {
		return e.finishFatal(ctx, id, st.generation, st.rejected, "no runnable providers")
	}

	outcomes := e.fanOut(ctx, st.runnable, st.search.Query(), st.search.ResultsRequested())
	e.score(ctx, log, st.search.Query(), outcomes)

	outcome, err := e.finish(ctx, id, st.generation, st.rejected, outcomes)
	log.Info("Search run finished", zap.String("outcome", string(outcome)), zap.Error(err))
	return outcome, err
}

// started is the state captured when a run takes ownership of a search.
type started struct {
	search     domsearch.Search
	generation int
	skipped    bool
	runnable   []domprov.Provider
	rejected   []rejection
	catalogErr error
}

// start moves the search from NEW to RUNNING under the lock.
func (e *Executor) start(ctx context.Context, id string) (started, error) {
	release, err := e.locker.Acquire(ctx, LockKey(id))
	if err != nil {
		return started{}, fmt.Errorf("lock search: %w", err)
	}
	defer release()

	s, err := e.searches.Get(ctx, id)
	if err != nil {
		return started{}, fmt.Errorf("load search: %w", err)
	}
	if s.Status() != status.New {
		return started{search: s, skipped: true}, nil
	}

	st := started{}
	st.runnable, st.rejected, st.catalogErr = e.resolveProviders(ctx, s.Providers())

	if err := s.Advance(status.Start(len(st.runnable))); err != nil {
		return started{}, err
	}
	if err := e.searches.Save(ctx, s); err != nil {
		return started{}, fmt.Errorf("save search: %w", err)
	}
	st.search = s
	st.generation = s.Generation()
	return st, nil
}

// rejection is a selected provider that cannot run.
type rejection struct {
	id     string
	reason string
}

// resolveProviders maps selected ids to catalog entries. An empty selection means
// every active default provider.
func (e *Executor) resolveProviders(ctx context.Context, selected []string) ([]domprov.Provider, []rejection, error) {
	all, err := e.providers.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list providers: %w", err)
	}

	if len(selected) == 0 {
		var out []domprov.Provider
		for _, p := range all {
			if p.Active() && p.Default() {
				out = append(out, p)
			}
		}
		return out, nil, nil
	}

	byID := make(map[string]domprov.Provider, len(all))
	for _, p := range all {
		byID[p.ID()] = p
	}
	var (
		out      []domprov.Provider
		rejected []rejection
	)
	for _, id := range selected {
		p, ok := byID[id]
		switch {
		case !ok:
			rejected = append(rejected, rejection{id: id, reason: "unknown provider"})
		case !p.Active():
			rejected = append(rejected, rejection{id: id, reason: "provider is inactive"})
		default:
			out = append(out, p)
		}
	}
	return out, rejected, nil
}

// fanOut runs one step per provider, at most MaxInFlightProviders at a time.
// Outcomes keep the provider order.
func (e *Executor) fanOut(ctx context.Context, providers []domprov.Provider, query string, results int) []Outcome {
	limit := int64(e.cfg.MaxInFlightProviders)
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)
	outcomes := make([]Outcome, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = Outcome{Provider: p, Kind: OutcomeError, Err: fmt.Errorf("%w: %w", err, domain.ErrProviderFailure)}
			continue
		}
		wg.Add(1)
		go func(i int, p domprov.Provider) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = e.step.Execute(ctx, p, query, results)
		}(i, p)
	}
	wg.Wait()
	return outcomes
}

// score applies relevancy processing to successful outcomes in place.
// Scoring failures leave items unscored; they are not provider failures.
func (e *Executor) score(ctx context.Context, log *zap.Logger, query string, outcomes []Outcome) {
	if e.relevancy == nil {
		return
	}
	for i := range outcomes {
		if outcomes[i].Kind != OutcomeOK {
			continue
		}
		items, err := e.relevancy.Process(ctx, query, outcomes[i].Items)
		if err != nil {
			log.Warn("Relevancy processing failed", zap.String("provider", outcomes[i].Provider.ID()), zap.Error(err))
			continue
		}
		outcomes[i].Items = items
	}
}

// finish persists records and applies terminal transitions, unless the run was superseded.
func (e *Executor) finish(
	ctx context.Context, id string, generation int, rejected []rejection, outcomes []Outcome,
) (RunOutcome, error) {
	release, err := e.locker.Acquire(ctx, LockKey(id))
	if err != nil {
		return "", fmt.Errorf("lock search: %w", err)
	}
	defer release()

	s, superseded, err := e.reload(ctx, id, generation)
	if err != nil || superseded {
		return RunSuperseded, err
	}

	var (
		records   []result.Record
		failed    []string
		succeeded int
		retrieved int
	)
	for _, r := range rejected {
		failed = append(failed, r.id)
		if err := s.Advance(status.ProviderFailed(r.id, r.reason)); err != nil {
			return "", err
		}
	}
	for _, o := range outcomes {
		if o.Failed() {
			failed = append(failed, o.Provider.ID())
			e.logger.Warn("Provider failed",
				zap.String("search_id", id), zap.String("provider", o.Provider.ID()),
				zap.String("outcome", string(o.Kind)), zap.Error(o.Err))
			if err := s.Advance(status.ProviderFailed(o.Provider.ID(), o.Reason())); err != nil {
				return "", err
			}
			continue
		}
		rec, err := result.New(uuid.NewString(), id, s.Owner(), o.Provider.ID(), o.Provider.Name(), o.Items, o.Found)
		if err != nil {
			return "", fmt.Errorf("build result record: %w", err)
		}
		records = append(records, rec)
		succeeded++
		retrieved += len(o.Items)
		if err := s.Advance(status.ProviderFinished(o.Provider.ID(), len(o.Items))); err != nil {
			return "", err
		}
	}

	if err := e.results.SaveAll(ctx, records); err != nil {
		return "", fmt.Errorf("save results: %w", err)
	}
	if err := s.Advance(status.AllFinished(succeeded, len(failed))); err != nil {
		return "", err
	}
	s.SetRunSummary(failed, retrieved)
	if err := e.searches.Save(ctx, s); err != nil {
		return "", fmt.Errorf("save search: %w", err)
	}

	if s.Status() == status.Failed {
		return RunFailed, fmt.Errorf("search %s: no provider returned results: %w", id, domain.ErrFatalExecution)
	}
	return RunCompleted, nil
}

// finishFatal records rejected providers and moves the search to FAILED.
func (e *Executor) finishFatal(
	ctx context.Context, id string, generation int, rejected []rejection, reason string,
) (RunOutcome, error) {
	release, err := e.locker.Acquire(ctx, LockKey(id))
	if err != nil {
		return "", fmt.Errorf("lock search: %w", err)
	}
	defer release()

	s, superseded, err := e.reload(ctx, id, generation)
	if err != nil || superseded {
		return RunSuperseded, err
	}

	failed := make([]string, 0, len(rejected))
	for _, r := range rejected {
		failed = append(failed, r.id)
		if err := s.Advance(status.ProviderFailed(r.id, r.reason)); err != nil {
			return "", err
		}
	}
	if err := s.Advance(status.Fail(reason)); err != nil {
		return "", err
	}
	s.SetRunSummary(failed, 0)
	if err := e.searches.Save(ctx, s); err != nil {
		return "", fmt.Errorf("save search: %w", err)
	}

	e.logger.Warn("Search failed", zap.String("search_id", id), zap.String("reason", reason))
	return RunFailed, fmt.Errorf("search %s: %s: %w", id, reason, domain.ErrFatalExecution)
}

// reload fetches the search and reports whether this run no longer owns it.
func (e *Executor) reload(ctx context.Context, id string, generation int) (domsearch.Search, bool, error) {
	s, err := e.searches.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Info("Search deleted during run, discarding outcome", zap.String("search_id", id))
			return domsearch.Search{}, true, nil
		}
		return domsearch.Search{}, false, fmt.Errorf("reload search: %w", err)
	}
	if s.Generation() != generation || s.Status() != status.Running {
		e.logger.Info("Search superseded during run, discarding outcome",
			zap.String("search_id", id),
			zap.Int("generation", generation),
			zap.Int("current_generation", s.Generation()))
		return domsearch.Search{}, true, nil
	}
	return s, false, nil
}
