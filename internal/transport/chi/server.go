package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	domresult "github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	logpkg "github.com/kailas-cloud/fedsearch/internal/logger"
	healthuc "github.com/kailas-cloud/fedsearch/internal/usecase/health"
	provideruc "github.com/kailas-cloud/fedsearch/internal/usecase/provider"
	searchuc "github.com/kailas-cloud/fedsearch/internal/usecase/search"
)

const maxBodyBytes = 1 << 20

// SearchService is the search lifecycle as used by the HTTP layer.
type SearchService interface {
	Create(ctx context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error)
	Inline(ctx context.Context, owner string, in searchuc.CreateInput, ri searchuc.ResultsInput) (mix.Page, error)
	List(ctx context.Context, owner string) ([]domsearch.Search, error)
	Get(ctx context.Context, owner, id string) (domsearch.Search, error)
	Update(ctx context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error)
	Delete(ctx context.Context, owner, id string) error
	Results(ctx context.Context, owner, id string, ri searchuc.ResultsInput) (mix.Page, error)
	Rerun(ctx context.Context, owner, id string) (domsearch.Search, error)
	Rescore(ctx context.Context, owner, id string) (domsearch.Search, error)
}

// ResultService exposes stored result records.
type ResultService interface {
	List(ctx context.Context, owner string) ([]domresult.Record, error)
	Get(ctx context.Context, owner, id string) (domresult.Record, error)
	Delete(ctx context.Context, owner, id string) error
}

// ProviderService manages the provider catalog.
type ProviderService interface {
	List(ctx context.Context) ([]domprov.Provider, error)
	Create(ctx context.Context, owner string, in provideruc.CreateInput) (domprov.Provider, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface on top of the use case services.
type Server struct {
	searches      SearchService
	results       ResultService
	providers     ProviderService
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	searches SearchService,
	results ResultService,
	providers ProviderService,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		searches:  searches,
		results:   results,
		providers: providers,
		health:    health,
		logger:    logger,
	}
	// Order matters: an unknown mixer on create is also an invalid request.
	s.errorHandlers = []errorHandler{
		detailHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrUnknownMixer, http.StatusNotFound, ErrorResponseCodeUnknownMixer),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, ErrorResponseCodeInvalidTransition),
		notReadyHandler,
		detailHandler(domain.ErrInvalidMixerArguments, http.StatusBadRequest, ErrorResponseCodeInvalidMixerArguments),
		sentinelHandler(domain.ErrQueueFull, http.StatusServiceUnavailable, ErrorResponseCodeQueueFull),
		sentinelHandler(domain.ErrFatalExecution, http.StatusInternalServerError, ErrorResponseCodeExecutionFailed),
		sentinelHandler(domain.ErrMixerFailed, http.StatusInternalServerError, ErrorResponseCodeMixerFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError),
	}
	return s
}

// CreateSearch handles POST /api/v1/searches.
func (s *Server) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req CreateSearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "Query text is required")
		return
	}

	in := searchuc.CreateInput{Query: req.Query, Providers: req.Providers}
	if req.ResultsRequested != nil {
		in.ResultsRequested = *req.ResultsRequested
		if in.ResultsRequested < 1 {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "results_requested must be >= 1")
			return
		}
	}
	if req.Mixer != nil {
		in.Mixer = *req.Mixer
	}

	q, err := s.searches.Create(r.Context(), OwnerFromContext(r.Context()), in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", searchURL(q.ID()))
	writeJSON(w, http.StatusCreated, searchToWire(q))
}

// ListSearches handles GET /api/v1/searches. With q it creates a search and
// redirects to its results; with qx it runs one inline and returns the first page.
func (s *Server) ListSearches(w http.ResponseWriter, r *http.Request, params ListSearchesParams) {
	owner := OwnerFromContext(r.Context())

	var providers []string
	if params.Providers != nil {
		providers = *params.Providers
	}

	switch {
	case params.Qx != nil:
		in := searchuc.CreateInput{Query: *params.Qx, Providers: providers, Mixer: deref(params.ResultMixer)}
		ri := searchuc.ResultsInput{Page: deref(params.Page), Explain: params.Explain}
		page, err := s.searches.Inline(r.Context(), owner, in, ri)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageToWire(page))

	case params.Q != nil:
		in := searchuc.CreateInput{Query: *params.Q, Providers: providers, Mixer: deref(params.ResultMixer)}
		q, err := s.searches.Create(r.Context(), owner, in)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		http.Redirect(w, r, resultsURL(q.ID(), params.Explain), http.StatusSeeOther)

	default:
		list, err := s.searches.List(r.Context(), owner)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		items := make([]Search, len(list))
		for i, q := range list {
			items[i] = searchToWire(q)
		}
		writeJSON(w, http.StatusOK, SearchListResponse{Items: items, Count: len(items)})
	}
}

// GetSearch handles GET /api/v1/searches/{id}.
func (s *Server) GetSearch(w http.ResponseWriter, r *http.Request, id string) {
	q, err := s.searches.Get(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchToWire(q))
}

// UpdateSearch handles PUT /api/v1/searches/{id}.
func (s *Server) UpdateSearch(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateSearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := s.searches.Update(r.Context(), OwnerFromContext(r.Context()), id, domsearch.Edit{
		Query:            req.Query,
		Providers:        req.Providers,
		ResultsRequested: req.ResultsRequested,
		Mixer:            req.Mixer,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchToWire(q))
}

// DeleteSearch handles DELETE /api/v1/searches/{id}.
func (s *Server) DeleteSearch(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.searches.Delete(r.Context(), OwnerFromContext(r.Context()), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RerunSearch handles POST /api/v1/searches/{id}/rerun.
func (s *Server) RerunSearch(w http.ResponseWriter, r *http.Request, id string) {
	q, err := s.searches.Rerun(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	http.Redirect(w, r, resultsURL(q.ID(), nil), http.StatusSeeOther)
}

// RescoreSearch handles POST /api/v1/searches/{id}/rescore.
func (s *Server) RescoreSearch(w http.ResponseWriter, r *http.Request, id string) {
	q, err := s.searches.Rescore(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	http.Redirect(w, r, resultsURL(q.ID(), nil), http.StatusSeeOther)
}

// GetResults handles GET /api/v1/searches/{id}/results.
func (s *Server) GetResults(w http.ResponseWriter, r *http.Request, id string, params GetResultsParams) {
	if params.Page != nil && *params.Page < 1 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeInvalidMixerArguments, "page must be >= 1")
		return
	}
	ri := searchuc.ResultsInput{
		Page:     deref(params.Page),
		Mixer:    deref(params.ResultMixer),
		Explain:  params.Explain,
		Provider: deref(params.Provider),
	}

	page, err := s.searches.Results(r.Context(), OwnerFromContext(r.Context()), id, ri)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToWire(page))
}

// ListResults handles GET /api/v1/results.
func (s *Server) ListResults(w http.ResponseWriter, r *http.Request) {
	recs, err := s.results.List(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]ResultRecord, len(recs))
	for i, rec := range recs {
		items[i] = recordToWire(rec)
	}
	writeJSON(w, http.StatusOK, ResultListResponse{Items: items, Count: len(items)})
}

// GetResult handles GET /api/v1/results/{id}.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.results.Get(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToWire(rec))
}

// DeleteResult handles DELETE /api/v1/results/{id}.
func (s *Server) DeleteResult(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.results.Delete(r.Context(), OwnerFromContext(r.Context()), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProviders handles GET /api/v1/providers.
func (s *Server) ListProviders(w http.ResponseWriter, r *http.Request) {
	list, err := s.providers.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]Provider, len(list))
	for i, p := range list {
		items[i] = providerToWire(p)
	}
	writeJSON(w, http.StatusOK, ProviderListResponse{Items: items, Count: len(items)})
}

// CreateProvider handles POST /api/v1/providers.
func (s *Server) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	in := provideruc.CreateInput{
		ID:              req.ID,
		Name:            req.Name,
		Connector:       req.Connector,
		Active:          true,
		ResultsPerQuery: req.ResultsPerQuery,
		Timeout:         time.Duration(req.TimeoutMs) * time.Millisecond,
	}
	if req.Active != nil {
		in.Active = *req.Active
	}
	if req.Default != nil {
		in.Default = *req.Default
	}

	p, err := s.providers.Create(r.Context(), OwnerFromContext(r.Context()), in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, providerToWire(p))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthToWire(report))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func searchURL(id string) string {
	return "/api/v1/searches/" + url.PathEscape(id)
}

func resultsURL(id string, explain *bool) string {
	u := searchURL(id) + "/results"
	if explain != nil && *explain {
		u += "?explain=true"
	}
	return u
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrUnknownMixer,
		domain.ErrInvalidTransition,
		domain.ErrNotReady,
		domain.ErrQueueFull,
		domain.ErrFatalExecution,
		domain.ErrMixerFailed,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// detailHandler is a sentinelHandler for client input errors. The full error
// text is returned since it only describes the rejected input.
func detailHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// notReadyHandler handles ErrNotReady and reports the status the search is in.
func notReadyHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrNotReady) {
		return false
	}
	resp := ErrorResponse{Code: ErrorResponseCodeNotReady, Message: msg}
	var nre *domain.NotReadyError
	if errors.As(err, &nre) {
		resp.Status = nre.Status
	}
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusServiceUnavailable, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
