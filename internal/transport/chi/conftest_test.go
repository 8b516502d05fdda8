package chi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	domresult "github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
	healthuc "github.com/kailas-cloud/fedsearch/internal/usecase/health"
	provideruc "github.com/kailas-cloud/fedsearch/internal/usecase/provider"
	searchuc "github.com/kailas-cloud/fedsearch/internal/usecase/search"
)

// --- mock search service ---

type mockSearches struct {
	createFn  func(ctx context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error)
	inlineFn  func(ctx context.Context, owner string, in searchuc.CreateInput, ri searchuc.ResultsInput) (mix.Page, error)
	listFn    func(ctx context.Context, owner string) ([]domsearch.Search, error)
	getFn     func(ctx context.Context, owner, id string) (domsearch.Search, error)
	deleteFn  func(ctx context.Context, owner, id string) error
	resultsFn func(ctx context.Context, owner, id string, ri searchuc.ResultsInput) (mix.Page, error)
	rerunFn   func(ctx context.Context, owner, id string) (domsearch.Search, error)
	rescoreFn func(ctx context.Context, owner, id string) (domsearch.Search, error)
	updateFn  func(ctx context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error)
}

func (m *mockSearches) Update(ctx context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, owner, id, e)
	}
	return testSearch(id, owner, status.New), nil
}

func (m *mockSearches) Create(ctx context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, in)
	}
	return testSearch("s1", owner, status.New), nil
}

func (m *mockSearches) Inline(
	ctx context.Context, owner string, in searchuc.CreateInput, ri searchuc.ResultsInput,
) (mix.Page, error) {
	if m.inlineFn != nil {
		return m.inlineFn(ctx, owner, in, ri)
	}
	return testPage("s1"), nil
}

func (m *mockSearches) List(ctx context.Context, owner string) ([]domsearch.Search, error) {
	if m.listFn != nil {
		return m.listFn(ctx, owner)
	}
	return nil, nil
}

func (m *mockSearches) Get(ctx context.Context, owner, id string) (domsearch.Search, error) {
	if m.getFn != nil {
		return m.getFn(ctx, owner, id)
	}
	return domsearch.Search{}, domain.ErrNotFound
}

func (m *mockSearches) Delete(ctx context.Context, owner, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, owner, id)
	}
	return nil
}

func (m *mockSearches) Results(ctx context.Context, owner, id string, ri searchuc.ResultsInput) (mix.Page, error) {
	if m.resultsFn != nil {
		return m.resultsFn(ctx, owner, id, ri)
	}
	return testPage(id), nil
}

func (m *mockSearches) Rerun(ctx context.Context, owner, id string) (domsearch.Search, error) {
	if m.rerunFn != nil {
		return m.rerunFn(ctx, owner, id)
	}
	return testSearch(id, owner, status.New), nil
}

func (m *mockSearches) Rescore(ctx context.Context, owner, id string) (domsearch.Search, error) {
	if m.rescoreFn != nil {
		return m.rescoreFn(ctx, owner, id)
	}
	return testSearch(id, owner, status.FullResultsReady), nil
}

// --- mock result service ---

type mockResults struct {
	listFn   func(ctx context.Context, owner string) ([]domresult.Record, error)
	getFn    func(ctx context.Context, owner, id string) (domresult.Record, error)
	deleteFn func(ctx context.Context, owner, id string) error
}

func (m *mockResults) List(ctx context.Context, owner string) ([]domresult.Record, error) {
	if m.listFn != nil {
		return m.listFn(ctx, owner)
	}
	return nil, nil
}

func (m *mockResults) Get(ctx context.Context, owner, id string) (domresult.Record, error) {
	if m.getFn != nil {
		return m.getFn(ctx, owner, id)
	}
	return domresult.Record{}, domain.ErrNotFound
}

func (m *mockResults) Delete(ctx context.Context, owner, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, owner, id)
	}
	return nil
}

// --- mock provider service ---

type mockProviders struct {
	listFn   func(ctx context.Context) ([]domprov.Provider, error)
	createFn func(ctx context.Context, owner string, in provideruc.CreateInput) (domprov.Provider, error)
}

func (m *mockProviders) List(ctx context.Context) ([]domprov.Provider, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockProviders) Create(ctx context.Context, owner string, in provideruc.CreateInput) (domprov.Provider, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, in)
	}
	return domprov.Reconstruct(in.ID, in.Name, in.Connector, owner, in.Active, in.Default,
		in.ResultsPerQuery, in.Timeout), nil
}

// --- mock health ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report {
	return m.report
}

// --- helpers ---

type testServer struct {
	searches  *mockSearches
	results   *mockResults
	providers *mockProviders
	health    *mockHealth
	handler   http.Handler
}

func newTestServer(t *testing.T, apiKeys map[string]string) *testServer {
	t.Helper()
	ts := &testServer{
		searches:  &mockSearches{},
		results:   &mockResults{},
		providers: &mockProviders{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	srv := NewServer(ts.searches, ts.results, ts.providers, ts.health, zap.NewNop())
	ts.handler = NewRouter(srv, apiKeys, zap.NewNop())
	return ts
}

func testSearch(id, owner string, st status.Status) domsearch.Search {
	now := time.Now().UnixMilli()
	return domsearch.Reconstruct(id, owner, "rust vs go", nil, 10, "", st,
		[]string{"Running 1 providers"}, 0, nil, 0, now, now)
}

func testPage(id string) mix.Page {
	return mix.Page{
		SearchID: id,
		Query:    "rust vs go",
		Status:   string(status.FullResultsReady),
		Mixer:    "RelevancyMixer",
		Page:     1,
		PageSize: 10,
		Found:    20,
		Hits: []mix.Hit{{
			Rank: 1, ProviderID: "web", ProviderName: "Web", ProviderRank: 1,
			Title: "Go", URL: "https://go.dev", Score: 0.5,
			Explain: map[string]any{"mixer": "RelevancyMixer"},
		}},
	}
}
