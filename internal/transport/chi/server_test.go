package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rr.Body.String())
	}
	return resp
}

func TestCreateSearch_Created(t *testing.T) {
	ts := newTestServer(t, nil)
	var got searchuc.CreateInput
	var gotOwner string
	ts.searches.createFn = func(_ context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error) {
		got, gotOwner = in, owner
		return testSearch("s1", owner, status.FullResultsReady), nil
	}

	rr := do(t, ts.handler, "POST", "/api/v1/searches",
		`{"query":"rust vs go","providers":["web","news"],"results_requested":5,"mixer":"DateMixer"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/searches/s1" {
		t.Errorf("location: %q", loc)
	}
	if gotOwner != DefaultOwner {
		t.Errorf("owner: %q", gotOwner)
	}
	if got.Query != "rust vs go" || len(got.Providers) != 2 || got.ResultsRequested != 5 || got.Mixer != "DateMixer" {
		t.Errorf("input: %+v", got)
	}

	var body Search
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "s1" || body.Status != string(status.FullResultsReady) {
		t.Errorf("body: %+v", body)
	}
	if body.Providers == nil || body.FailedProviders == nil {
		t.Error("lists must encode as [] not null")
	}
}

func TestCreateSearch_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ErrorResponseCode
	}{
		{"malformed json", `{`, ErrorResponseCodeBadRequest},
		{"missing query", `{"providers":["web"]}`, ErrorResponseCodeValidationFailed},
		{"zero results", `{"query":"x","results_requested":0}`, ErrorResponseCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.searches.createFn = func(context.Context, string, searchuc.CreateInput) (domsearch.Search, error) {
				t.Fatal("service must not be called")
				return domsearch.Search{}, nil
			}
			rr := do(t, ts.handler, "POST", "/api/v1/searches", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			if resp := decodeError(t, rr); resp.Code != tt.code {
				t.Errorf("code: got %s, want %s", resp.Code, tt.code)
			}
		})
	}
}

func TestCreateSearch_UnknownMixerIsValidationError(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.searches.createFn = func(context.Context, string, searchuc.CreateInput) (domsearch.Search, error) {
		return domsearch.Search{}, fmt.Errorf("%w: mixer %q: %w", domain.ErrInvalidRequest, "Nope", domain.ErrUnknownMixer)
	}

	rr := do(t, ts.handler, "POST", "/api/v1/searches", `{"query":"x","mixer":"Nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != ErrorResponseCodeValidationFailed || !strings.Contains(resp.Message, "Nope") {
		t.Errorf("resp: %+v", resp)
	}
}

func TestCreateSearch_QueueFull(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.searches.createFn = func(context.Context, string, searchuc.CreateInput) (domsearch.Search, error) {
		return domsearch.Search{}, fmt.Errorf("schedule search: %w", domain.ErrQueueFull)
	}

	rr := do(t, ts.handler, "POST", "/api/v1/searches", `{"query":"x"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeQueueFull {
		t.Errorf("code: %s", resp.Code)
	}
}

func TestListSearches(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.searches.listFn = func(_ context.Context, owner string) ([]domsearch.Search, error) {
		return []domsearch.Search{
			testSearch("s2", owner, status.Running),
			testSearch("s1", owner, status.FullResultsReady),
		}, nil
	}

	rr := do(t, ts.handler, "GET", "/api/v1/searches", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var body SearchListResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || body.Items[0].ID != "s2" {
		t.Errorf("body: %+v", body)
	}
}

func TestListSearches_QuickCreateRedirects(t *testing.T) {
	ts := newTestServer(t, nil)
	var got searchuc.CreateInput
	ts.searches.createFn = func(_ context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error) {
		got = in
		return testSearch("s9", owner, status.Running), nil
	}

	rr := do(t, ts.handler, "GET", "/api/v1/searches?q=rust+vs+go&providers=web,news&explain=true", "")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303 (%s)", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/searches/s9/results?explain=true" {
		t.Errorf("location: %q", loc)
	}
	if got.Query != "rust vs go" {
		t.Errorf("query: %q", got.Query)
	}
	if len(got.Providers) != 2 || got.Providers[0] != "web" || got.Providers[1] != "news" {
		t.Errorf("providers: %v", got.Providers)
	}
}

func TestListSearches_Inline(t *testing.T) {
	ts := newTestServer(t, nil)
	var gotIn searchuc.CreateInput
	var gotRI searchuc.ResultsInput
	ts.searches.inlineFn = func(
		_ context.Context, _ string, in searchuc.CreateInput, ri searchuc.ResultsInput,
	) (mix.Page, error) {
		gotIn, gotRI = in, ri
		return testPage("s1"), nil
	}

	rr := do(t, ts.handler, "GET", "/api/v1/searches?qx=golang&result_mixer=RoundRobinMixer&page=2&explain=false", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	if gotIn.Query != "golang" || gotIn.Mixer != "RoundRobinMixer" {
		t.Errorf("create input: %+v", gotIn)
	}
	if gotRI.Page != 2 || gotRI.Explain == nil || *gotRI.Explain {
		t.Errorf("results input: %+v", gotRI)
	}

	var page ResultsPage
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].Rank != 1 || page.Results[0].Explain["mixer"] != "RelevancyMixer" {
		t.Errorf("page: %+v", page)
	}
}

func TestListSearches_InlineFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorResponseCode
	}{
		{"fatal", fmt.Errorf("search s1 failed: %w", domain.ErrFatalExecution),
			http.StatusInternalServerError, ErrorResponseCodeExecutionFailed},
		{"not ready", &domain.NotReadyError{Status: string(status.Running)},
			http.StatusServiceUnavailable, ErrorResponseCodeNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.searches.inlineFn = func(
				context.Context, string, searchuc.CreateInput, searchuc.ResultsInput,
			) (mix.Page, error) {
				return mix.Page{}, tt.err
			}
			rr := do(t, ts.handler, "GET", "/api/v1/searches?qx=golang", "")
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
			if resp := decodeError(t, rr); resp.Code != tt.code {
				t.Errorf("code: got %s, want %s", resp.Code, tt.code)
			}
		})
	}
}

func TestGetSearch(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.searches.getFn = func(_ context.Context, owner, id string) (domsearch.Search, error) {
		if id != "s1" {
			return domsearch.Search{}, fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
		}
		return testSearch(id, owner, status.PartialResultsReady), nil
	}

	rr := do(t, ts.handler, "GET", "/api/v1/searches/s1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	rr = do(t, ts.handler, "GET", "/api/v1/searches/other", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeNotFound || resp.Message != "not found" {
		t.Errorf("resp: %+v", resp)
	}
}

func TestDeleteSearch(t *testing.T) {
	ts := newTestServer(t, nil)
	deleted := ""
	ts.searches.deleteFn = func(_ context.Context, _, id string) error {
		if id == "missing" {
			return domain.ErrNotFound
		}
		deleted = id
		return nil
	}

	if rr := do(t, ts.handler, "DELETE", "/api/v1/searches/s1", ""); rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
	if deleted != "s1" {
		t.Errorf("deleted: %q", deleted)
	}
	if rr := do(t, ts.handler, "DELETE", "/api/v1/searches/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestUpdateSearch(t *testing.T) {
	ts := newTestServer(t, nil)
	var got domsearch.Edit
	ts.searches.updateFn = func(_ context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error) {
		got = e
		return testSearch(id, owner, status.New), nil
	}

	rr := do(t, ts.handler, "PUT", "/api/v1/searches/s1", `{"query":"go generics","mixer":"DateMixer"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if got.Query == nil || *got.Query != "go generics" || got.Mixer == nil || *got.Mixer != "DateMixer" {
		t.Errorf("edit: %+v", got)
	}
	if got.Providers != nil || got.ResultsRequested != nil {
		t.Errorf("omitted fields should stay nil: %+v", got)
	}
	var body Search
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "s1" {
		t.Errorf("id: %q", body.ID)
	}
}

func TestUpdateSearch_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
		code ErrorResponseCode
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ErrorResponseCodeBadRequest},
		{"invalid", `{"results_requested":0}`,
			fmt.Errorf("%w: results requested must be between 1 and 100", domain.ErrInvalidRequest),
			http.StatusBadRequest, ErrorResponseCodeValidationFailed},
		{"missing", `{"query":"x"}`, domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound},
		{"running", `{"query":"x"}`, &domain.TransitionError{From: "RUNNING", Event: "Update"},
			http.StatusConflict, ErrorResponseCodeInvalidTransition},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.searches.updateFn = func(context.Context, string, string, domsearch.Edit) (domsearch.Search, error) {
				return domsearch.Search{}, tc.err
			}
			rr := do(t, ts.handler, "PUT", "/api/v1/searches/s1", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tc.want)
			}
			if resp := decodeError(t, rr); resp.Code != tc.code {
				t.Errorf("code: %s, want %s", resp.Code, tc.code)
			}
		})
	}
}

func TestRerunAndRescore_Redirect(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, action := range []string{"rerun", "rescore"} {
		rr := do(t, ts.handler, "POST", "/api/v1/searches/s1/"+action, "")
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("%s: got %d, want 303", action, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/api/v1/searches/s1/results" {
			t.Errorf("%s location: %q", action, loc)
		}
	}
}

func TestRescore_InvalidTransition(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.searches.rescoreFn = func(context.Context, string, string) (domsearch.Search, error) {
		return domsearch.Search{}, &domain.TransitionError{From: "RUNNING", Event: "rescore_requested"}
	}

	rr := do(t, ts.handler, "POST", "/api/v1/searches/s1/rescore", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeInvalidTransition {
		t.Errorf("code: %s", resp.Code)
	}
}

func TestGetResults_Params(t *testing.T) {
	ts := newTestServer(t, nil)
	var got searchuc.ResultsInput
	ts.searches.resultsFn = func(_ context.Context, _, id string, ri searchuc.ResultsInput) (mix.Page, error) {
		got = ri
		return testPage(id), nil
	}

	rr := do(t, ts.handler, "GET", "/api/v1/searches/s1/results?page=3&result_mixer=DateMixer&explain=true&provider=web", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	if got.Page != 3 || got.Mixer != "DateMixer" || got.Provider != "web" || got.Explain == nil || !*got.Explain {
		t.Errorf("input: %+v", got)
	}

	rr = do(t, ts.handler, "GET", "/api/v1/searches/s1/results", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if got.Page != 0 || got.Explain != nil {
		t.Errorf("defaults must be left to the service: %+v", got)
	}
}

func TestGetResults_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
		code   ErrorResponseCode
	}{
		{"not ready", "", &domain.NotReadyError{Status: string(status.Running)},
			http.StatusServiceUnavailable, ErrorResponseCodeNotReady},
		{"unknown mixer", "?result_mixer=Evil", fmt.Errorf("mixer %q: %w", "Evil", domain.ErrUnknownMixer),
			http.StatusNotFound, ErrorResponseCodeUnknownMixer},
		{"invalid args", "?provider=bad!", fmt.Errorf("provider filter: %w", domain.ErrInvalidMixerArguments),
			http.StatusBadRequest, ErrorResponseCodeInvalidMixerArguments},
		{"mixer failed", "", fmt.Errorf("mixer panicked: %w", domain.ErrMixerFailed),
			http.StatusInternalServerError, ErrorResponseCodeMixerFailed},
		{"unexpected", "", errors.New("boom"),
			http.StatusInternalServerError, ErrorResponseCodeInternalError},
		{"page zero", "?page=0", nil, http.StatusBadRequest, ErrorResponseCodeInvalidMixerArguments},
		{"page not a number", "?page=abc", nil, http.StatusBadRequest, ErrorResponseCodeBadRequest},
		{"explain not a bool", "?explain=maybe", nil, http.StatusBadRequest, ErrorResponseCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.searches.resultsFn = func(context.Context, string, string, searchuc.ResultsInput) (mix.Page, error) {
				if tt.err == nil {
					t.Fatal("service must not be called")
				}
				return mix.Page{}, tt.err
			}
			rr := do(t, ts.handler, "GET", "/api/v1/searches/s1/results"+tt.query, "")
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if resp := decodeError(t, rr); resp.Code != tt.code {
				t.Errorf("code: got %s, want %s", resp.Code, tt.code)
			}
		})
	}
}

func TestGetResults_NotReadyCarriesStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.searches.resultsFn = func(context.Context, string, string, searchuc.ResultsInput) (mix.Page, error) {
		return mix.Page{}, &domain.NotReadyError{Status: string(status.New)}
	}

	rr := do(t, ts.handler, "GET", "/api/v1/searches/s1/results", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if resp := decodeError(t, rr); resp.Status != string(status.New) {
		t.Errorf("status field: %q", resp.Status)
	}
}

func TestResultRecords(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := domresult.Reconstruct("r1", "s1", DefaultOwner, "web", "Web",
		[]domresult.Item{{Title: "Go", URL: "https://go.dev", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Score: 0.7}},
		12, 1, 2)
	ts.results.listFn = func(context.Context, string) ([]domresult.Record, error) {
		return []domresult.Record{rec}, nil
	}
	ts.results.getFn = func(_ context.Context, _, id string) (domresult.Record, error) {
		if id != "r1" {
			return domresult.Record{}, domain.ErrNotFound
		}
		return rec, nil
	}

	rr := do(t, ts.handler, "GET", "/api/v1/results", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: got %d", rr.Code)
	}
	var list ResultListResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Items[0].Found != 12 || list.Items[0].Retrieved != 1 {
		t.Errorf("list: %+v", list)
	}
	if d := list.Items[0].Items[0].Date; d == nil || d.Year() != 2024 {
		t.Errorf("date: %v", d)
	}

	if rr := do(t, ts.handler, "GET", "/api/v1/results/r1", ""); rr.Code != http.StatusOK {
		t.Errorf("get: got %d", rr.Code)
	}
	if rr := do(t, ts.handler, "GET", "/api/v1/results/r2", ""); rr.Code != http.StatusNotFound {
		t.Errorf("get missing: got %d", rr.Code)
	}
	if rr := do(t, ts.handler, "DELETE", "/api/v1/results/r1", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete: got %d", rr.Code)
	}
}

func TestProviders(t *testing.T) {
	ts := newTestServer(t, nil)
	var got provideruc.CreateInput
	ts.providers.createFn = func(_ context.Context, owner string, in provideruc.CreateInput) (domprov.Provider, error) {
		got = in
		return domprov.Reconstruct(in.ID, in.Name, in.Connector, owner, in.Active, in.Default,
			in.ResultsPerQuery, in.Timeout), nil
	}
	ts.providers.listFn = func(context.Context) ([]domprov.Provider, error) {
		return []domprov.Provider{
			domprov.Reconstruct("web", "Web", "http://web.local/search", "", true, true, 0, 0),
		}, nil
	}

	rr := do(t, ts.handler, "POST", "/api/v1/providers",
		`{"id":"news","connector":"http://news.local/search","timeout_ms":1500}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d (%s)", rr.Code, rr.Body.String())
	}
	if !got.Active || got.Default || got.Timeout != 1500*time.Millisecond {
		t.Errorf("input defaults: %+v", got)
	}
	var created Provider
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Owner != DefaultOwner || created.TimeoutMs != 1500 {
		t.Errorf("created: %+v", created)
	}

	rr = do(t, ts.handler, "GET", "/api/v1/providers", "")
	var list ProviderListResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Items[0].ID != "web" || !list.Items[0].Default {
		t.Errorf("list: %+v", list)
	}
}

func TestProviders_CreateDuplicate(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.providers.createFn = func(context.Context, string, provideruc.CreateInput) (domprov.Provider, error) {
		return domprov.Provider{}, fmt.Errorf("%w: provider web already exists", domain.ErrInvalidRequest)
	}

	rr := do(t, ts.handler, "POST", "/api/v1/providers", `{"id":"web","connector":"http://web.local"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, map[string]string{"secret": "alice"})

	rr := do(t, ts.handler, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthy: got %d", rr.Code)
	}

	ts.health.report = healthuc.Report{
		Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
	}
	rr = do(t, ts.handler, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: got %d", rr.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["database"] != "error" {
		t.Errorf("checks: %v", body.Checks)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := do(t, ts.handler, "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "fedsearch_http_requests_in_flight") {
		t.Error("expected fedsearch HTTP metrics")
	}
}

func TestOwnerScoping(t *testing.T) {
	ts := newTestServer(t, map[string]string{"k-alice": "alice", "k-bob": "bob"})
	var owners []string
	ts.searches.listFn = func(_ context.Context, owner string) ([]domsearch.Search, error) {
		owners = append(owners, owner)
		return nil, nil
	}

	for _, key := range []string{"k-alice", "k-bob"} {
		req := httptest.NewRequest("GET", "/api/v1/searches", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+key)
		rr := httptest.NewRecorder()
		ts.handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: got %d", key, rr.Code)
		}
	}
	if len(owners) != 2 || owners[0] != "alice" || owners[1] != "bob" {
		t.Errorf("owners: %v", owners)
	}

	if rr := do(t, ts.handler, "GET", "/api/v1/searches", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: got %d, want 401", rr.Code)
	}
}

func TestPanicRecovered(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.searches.getFn = func(context.Context, string, string) (domsearch.Search, error) {
		panic("boom")
	}

	rr := do(t, ts.handler, "GET", "/api/v1/searches/s1", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeInternalError {
		t.Errorf("code: %s", resp.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := do(t, ts.handler, "GET", "/api/v2/nothing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeNotFound {
		t.Errorf("code: %s", resp.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := do(t, ts.handler, "GET", "/api/v1/searches", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}
