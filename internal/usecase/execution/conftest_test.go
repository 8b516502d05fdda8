package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
)

// mockSearches is a map-backed SearchRepository.
type mockSearches struct {
	mu     sync.Mutex
	data   map[string]domsearch.Search
	saves  int
	getErr error
}

func newMockSearches() *mockSearches {
	return &mockSearches{data: make(map[string]domsearch.Search)}
}

func (m *mockSearches) Get(_ context.Context, id string) (domsearch.Search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domsearch.Search{}, m.getErr
	}
	s, ok := m.data[id]
	if !ok {
		return domsearch.Search{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockSearches) Save(_ context.Context, s domsearch.Search) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.data[s.ID()] = s
	return nil
}

func (m *mockSearches) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
}

func (m *mockSearches) get(t *testing.T, id string) domsearch.Search {
	t.Helper()
	s, err := m.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return s
}

// mockResults is a slice-backed ResultRepository.
type mockResults struct {
	mu      sync.Mutex
	records map[string]result.Record
	saveErr error
}

func newMockResults() *mockResults {
	return &mockResults{records: make(map[string]result.Record)}
}

func (m *mockResults) SaveAll(_ context.Context, recs []result.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, r := range recs {
		m.records[r.ID()] = r
	}
	return nil
}

func (m *mockResults) ListBySearch(_ context.Context, searchID string) ([]result.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []result.Record
	for _, r := range m.records {
		if r.SearchID() == searchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockResults) count(searchID string) int {
	recs, _ := m.ListBySearch(context.Background(), searchID)
	return len(recs)
}

// mockCatalog lists a fixed provider set.
type mockCatalog struct {
	providers []domprov.Provider
	err       error
}

func (m *mockCatalog) List(_ context.Context) ([]domprov.Provider, error) {
	return m.providers, m.err
}

// connectorFunc adapts a function to domain.Connector.
type connectorFunc func(ctx context.Context, req domain.ConnectorRequest) (domain.ConnectorResponse, error)

func (f connectorFunc) Execute(ctx context.Context, req domain.ConnectorRequest) (domain.ConnectorResponse, error) {
	return f(ctx, req)
}

// mockResolver returns a connector per provider id.
type mockResolver struct {
	connectors map[string]domain.Connector
}

func (m *mockResolver) Resolve(p domprov.Provider) (domain.Connector, error) {
	c, ok := m.connectors[p.ID()]
	if !ok {
		return nil, errors.New("no connector")
	}
	return c, nil
}

// mockLocker provides per-key mutexes.
type mockLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (m *mockLocker) Acquire(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*sync.Mutex)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock, nil
}

// mockRelevancy scores every item 1.0 and records an explain entry.
type mockRelevancy struct {
	calls int
	err   error
	mu    sync.Mutex
}

func (m *mockRelevancy) Process(_ context.Context, query string, items []result.Item) ([]result.Item, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]result.Item, len(items))
	for i, it := range items {
		it.Score = 1
		it.Explain = map[string]any{"query": query}
		out[i] = it
	}
	return out, nil
}

func items(n int, prefix string) []result.Item {
	out := make([]result.Item, n)
	for i := range out {
		out[i] = result.Item{Title: prefix + " result", URL: "https://example.org/" + prefix}
	}
	return out
}

func okConnector(n int) domain.Connector {
	return connectorFunc(func(_ context.Context, req domain.ConnectorRequest) (domain.ConnectorResponse, error) {
		return domain.ConnectorResponse{Found: n * 10, Items: items(n, req.ProviderID)}, nil
	})
}

func slowConnector() domain.Connector {
	return connectorFunc(func(ctx context.Context, _ domain.ConnectorRequest) (domain.ConnectorResponse, error) {
		<-ctx.Done()
		return domain.ConnectorResponse{}, ctx.Err()
	})
}

func testProvider(t *testing.T, id string, isDefault bool, timeout time.Duration) domprov.Provider {
	t.Helper()
	p, err := domprov.New(id, "", "http://connector.local/"+id, "admin", true, isDefault, 0, timeout)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

type testEnv struct {
	searches  *mockSearches
	results   *mockResults
	catalog   *mockCatalog
	resolver  *mockResolver
	relevancy *mockRelevancy
	exec      *Executor
}

func newTestEnv(t *testing.T, providers []domprov.Provider, connectors map[string]domain.Connector) *testEnv {
	t.Helper()
	env := &testEnv{
		searches:  newMockSearches(),
		results:   newMockResults(),
		catalog:   &mockCatalog{providers: providers},
		resolver:  &mockResolver{connectors: connectors},
		relevancy: &mockRelevancy{},
	}
	cfg := domain.DefaultSearchConfig()
	cfg.ProviderTimeout = time.Second
	logger := zap.NewNop()
	env.exec = NewExecutor(
		env.searches, env.results, env.catalog, &mockLocker{},
		NewStep(env.resolver, cfg.ProviderTimeout, logger),
		env.relevancy, cfg, logger,
	)
	return env
}

func (env *testEnv) addSearch(t *testing.T, id string, providers ...string) domsearch.Search {
	t.Helper()
	s, err := domsearch.New(id, "alice", "rust vs go", providers, 10, "RelevancyMixer")
	if err != nil {
		t.Fatalf("new search: %v", err)
	}
	_ = env.searches.Save(context.Background(), s)
	return s
}
