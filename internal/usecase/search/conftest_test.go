package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
	"github.com/kailas-cloud/fedsearch/internal/usecase/dispatch"
	"github.com/kailas-cloud/fedsearch/internal/usecase/execution"
)

// --- Mocks ---

type mockRepo struct {
	mu      sync.Mutex
	data    map[string]domsearch.Search
	deleted []string
	saveErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{data: make(map[string]domsearch.Search)}
}

func (m *mockRepo) Get(_ context.Context, id string) (domsearch.Search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return domsearch.Search{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) Save(_ context.Context, s domsearch.Search) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[s.ID()] = s
	return nil
}

func (m *mockRepo) List(_ context.Context, owner string) ([]domsearch.Search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domsearch.Search{}
	for _, s := range m.data {
		if s.Owner() == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, s domsearch.Search) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, s.ID())
	m.deleted = append(m.deleted, s.ID())
	return nil
}

// setStatus overwrites the stored status, simulating background progress.
func (m *mockRepo) setStatus(id string, st status.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.data[id]
	m.data[id] = domsearch.Reconstruct(s.ID(), s.Owner(), s.Query(), s.Providers(), s.ResultsRequested(),
		s.Mixer(), st, s.Messages(), s.Generation(), s.FailedProviders(), s.Retrieved(), s.CreatedAt(), s.UpdatedAt())
}

type mockPurger struct {
	purged []string
}

func (m *mockPurger) DeleteBySearch(_ context.Context, searchID string) (int, error) {
	m.purged = append(m.purged, searchID)
	return 2, nil
}

type mockLocker struct {
	mu       sync.Mutex
	acquired []string
}

func (m *mockLocker) Acquire(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	return func() {
		m.acquired = append(m.acquired, key)
		m.mu.Unlock()
	}, nil
}

type mockScheduler struct {
	tasks      []dispatch.Task
	err        error
	scheduleFn func(t dispatch.Task) error
}

func (m *mockScheduler) Schedule(t dispatch.Task) error {
	if m.scheduleFn != nil {
		return m.scheduleFn(t)
	}
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, t)
	return nil
}

type mockWaiter struct {
	budgets []time.Duration
	waitFn  func(id string)
}

func (m *mockWaiter) WaitUntil(
	_ context.Context, id string, budget time.Duration, _ func(status.Status) bool,
) (status.Status, error) {
	m.budgets = append(m.budgets, budget)
	if m.waitFn != nil {
		m.waitFn(id)
	}
	return "", nil
}

type mockRunner struct {
	runFn func(id string) (execution.RunOutcome, error)
}

func (m *mockRunner) Run(_ context.Context, id string) (execution.RunOutcome, error) {
	if m.runFn != nil {
		return m.runFn(id)
	}
	return execution.RunCompleted, nil
}

type mockMixer struct {
	known        map[string]bool
	lastReq      mix.Request
	lastOverride string
	calls        int
}

func (m *mockMixer) Known(name string) bool { return m.known[name] }

func (m *mockMixer) Mix(_ context.Context, s domsearch.Search, override string, req mix.Request) (mix.Page, error) {
	m.calls++
	m.lastReq = req
	m.lastOverride = override
	if !s.Status().IsMixable() {
		return mix.Page{}, &domain.NotReadyError{Status: string(s.Status())}
	}
	return mix.Page{SearchID: s.ID(), Page: req.Page, PageSize: req.PageSize, Hits: []mix.Hit{}}, nil
}

// --- Helpers ---

type testEnv struct {
	repo      *mockRepo
	purger    *mockPurger
	locker    *mockLocker
	scheduler *mockScheduler
	waiter    *mockWaiter
	runner    *mockRunner
	mixer     *mockMixer
	cfg       domain.SearchConfig
	svc       *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:      newMockRepo(),
		purger:    &mockPurger{},
		locker:    &mockLocker{},
		scheduler: &mockScheduler{},
		waiter:    &mockWaiter{},
		runner:    &mockRunner{},
		mixer:     &mockMixer{known: map[string]bool{"RelevancyMixer": true, "DateMixer": true}},
		cfg:       domain.DefaultSearchConfig(),
	}
	env.cfg.InlineRetryAttempts = 3
	env.cfg.InlineRetryInterval = time.Millisecond
	env.svc = New(env.repo, env.purger, env.locker, env.scheduler, env.waiter, env.runner, env.mixer,
		env.cfg, zap.NewNop())
	return env
}

// seed stores a search in st with a non-trivial message log.
func (env *testEnv) seed(t *testing.T, id, owner string, st status.Status) domsearch.Search {
	t.Helper()
	s := domsearch.Reconstruct(id, owner, "rust vs go", nil, 10, "",
		st, []string{"Running 2 providers", "Provider web returned 3 results"}, 1, nil, 3, 1, 1)
	if err := env.repo.Save(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s
}
