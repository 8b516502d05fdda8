package chi

import (
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	healthuc "github.com/kailas-cloud/fedsearch/internal/usecase/health"
)

// ErrorResponseCode is a machine readable error code.
type ErrorResponseCode string

// Error codes returned in ErrorResponse.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed       ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeNotFound               ErrorResponseCode = "not_found"
	ErrorResponseCodeUnknownMixer           ErrorResponseCode = "unknown_mixer"
	ErrorResponseCodeInvalidTransition      ErrorResponseCode = "invalid_transition"
	ErrorResponseCodeNotReady               ErrorResponseCode = "not_ready"
	ErrorResponseCodeInvalidMixerArguments  ErrorResponseCode = "invalid_mixer_arguments"
	ErrorResponseCodeQueueFull              ErrorResponseCode = "queue_full"
	ErrorResponseCodeExecutionFailed        ErrorResponseCode = "execution_failed"
	ErrorResponseCodeMixerFailed            ErrorResponseCode = "mixer_failed"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status,omitempty"`
}

// CreateSearchRequest is the body of POST /api/v1/searches.
type CreateSearchRequest struct {
	Query            string   `json:"query"`
	Providers        []string `json:"providers,omitempty"`
	ResultsRequested *int     `json:"results_requested,omitempty"`
	Mixer            *string  `json:"mixer,omitempty"`
}

// UpdateSearchRequest is the body of PUT /api/v1/searches/{id}. Omitted fields are kept.
type UpdateSearchRequest struct {
	Query            *string   `json:"query,omitempty"`
	Providers        *[]string `json:"providers,omitempty"`
	ResultsRequested *int      `json:"results_requested,omitempty"`
	Mixer            *string   `json:"mixer,omitempty"`
}

// Search is the wire form of a search.
type Search struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	Query            string    `json:"query"`
	Providers        []string  `json:"providers"`
	ResultsRequested int       `json:"results_requested"`
	Mixer            string    `json:"mixer,omitempty"`
	Status           string    `json:"status"`
	Messages         []string  `json:"messages"`
	FailedProviders  []string  `json:"failed_providers"`
	Retrieved        int       `json:"retrieved"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SearchListResponse wraps a list of searches.
type SearchListResponse struct {
	Items []Search `json:"items"`
	Count int      `json:"count"`
}

// MixedResult is one ranked entry of a results page.
type MixedResult struct {
	Rank         int            `json:"rank"`
	ProviderID   string         `json:"provider_id"`
	ProviderName string         `json:"provider_name"`
	ProviderRank int            `json:"provider_rank"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Body         string         `json:"body,omitempty"`
	Date         *time.Time     `json:"date,omitempty"`
	Author       string         `json:"author,omitempty"`
	Score        float64        `json:"score"`
	Explain      map[string]any `json:"explain,omitempty"`
}

// ResultsPage is a page of mixed results.
type ResultsPage struct {
	SearchID  string        `json:"search_id"`
	Query     string        `json:"query"`
	Status    string        `json:"status"`
	Mixer     string        `json:"mixer"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
	Found     int           `json:"found"`
	Retrieved int           `json:"retrieved"`
	Messages  []string      `json:"messages"`
	Results   []MixedResult `json:"results"`
}

// ResultItem is one raw provider item.
type ResultItem struct {
	Title   string         `json:"title"`
	URL     string         `json:"url"`
	Body    string         `json:"body,omitempty"`
	Date    *time.Time     `json:"date,omitempty"`
	Author  string         `json:"author,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Score   float64        `json:"score"`
	Explain map[string]any `json:"explain,omitempty"`
}

// ResultRecord is the wire form of a stored result record.
type ResultRecord struct {
	ID           string       `json:"id"`
	SearchID     string       `json:"search_id"`
	ProviderID   string       `json:"provider_id"`
	ProviderName string       `json:"provider_name"`
	Found        int          `json:"found"`
	Retrieved    int          `json:"retrieved"`
	Items        []ResultItem `json:"items"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ResultListResponse wraps a list of result records.
type ResultListResponse struct {
	Items []ResultRecord `json:"items"`
	Count int            `json:"count"`
}

// CreateProviderRequest is the body of POST /api/v1/providers.
type CreateProviderRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Connector       string `json:"connector"`
	Active          *bool  `json:"active,omitempty"`
	Default         *bool  `json:"default,omitempty"`
	ResultsPerQuery int    `json:"results_per_query,omitempty"`
	TimeoutMs       int    `json:"timeout_ms,omitempty"`
}

// Provider is the wire form of a search provider.
type Provider struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Connector       string `json:"connector"`
	Owner           string `json:"owner,omitempty"`
	Active          bool   `json:"active"`
	Default         bool   `json:"default"`
	ResultsPerQuery int    `json:"results_per_query"`
	TimeoutMs       int64  `json:"timeout_ms"`
}

// ProviderListResponse wraps a list of providers.
type ProviderListResponse struct {
	Items []Provider `json:"items"`
	Count int        `json:"count"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func searchToWire(s domsearch.Search) Search {
	providers := s.Providers()
	if providers == nil {
		providers = []string{}
	}
	messages := s.Messages()
	if messages == nil {
		messages = []string{}
	}
	failed := s.FailedProviders()
	if failed == nil {
		failed = []string{}
	}
	return Search{
		ID:               s.ID(),
		Owner:            s.Owner(),
		Query:            s.Query(),
		Providers:        providers,
		ResultsRequested: s.ResultsRequested(),
		Mixer:            s.Mixer(),
		Status:           string(s.Status()),
		Messages:         messages,
		FailedProviders:  failed,
		Retrieved:        s.Retrieved(),
		CreatedAt:        time.UnixMilli(s.CreatedAt()).UTC(),
		UpdatedAt:        time.UnixMilli(s.UpdatedAt()).UTC(),
	}
}

func pageToWire(p mix.Page) ResultsPage {
	results := make([]MixedResult, len(p.Hits))
	for i, h := range p.Hits {
		results[i] = MixedResult{
			Rank:         h.Rank,
			ProviderID:   h.ProviderID,
			ProviderName: h.ProviderName,
			ProviderRank: h.ProviderRank,
			Title:        h.Title,
			URL:          h.URL,
			Body:         h.Body,
			Date:         datePtr(h.Date),
			Author:       h.Author,
			Score:        h.Score,
			Explain:      h.Explain,
		}
	}
	messages := p.Messages
	if messages == nil {
		messages = []string{}
	}
	return ResultsPage{
		SearchID:  p.SearchID,
		Query:     p.Query,
		Status:    p.Status,
		Mixer:     p.Mixer,
		Page:      p.Page,
		PageSize:  p.PageSize,
		Found:     p.Found,
		Retrieved: p.Retrieved,
		Messages:  messages,
		Results:   results,
	}
}

func recordToWire(r result.Record) ResultRecord {
	items := make([]ResultItem, len(r.Items()))
	for i, it := range r.Items() {
		items[i] = ResultItem{
			Title:   it.Title,
			URL:     it.URL,
			Body:    it.Body,
			Date:    datePtr(it.Date),
			Author:  it.Author,
			Payload: it.Payload,
			Score:   it.Score,
			Explain: it.Explain,
		}
	}
	return ResultRecord{
		ID:           r.ID(),
		SearchID:     r.SearchID(),
		ProviderID:   r.ProviderID(),
		ProviderName: r.ProviderName(),
		Found:        r.Found(),
		Retrieved:    r.Retrieved(),
		Items:        items,
		CreatedAt:    time.UnixMilli(r.CreatedAt()).UTC(),
		UpdatedAt:    time.UnixMilli(r.UpdatedAt()).UTC(),
	}
}

func providerToWire(p domprov.Provider) Provider {
	return Provider{
		ID:              p.ID(),
		Name:            p.Name(),
		Connector:       p.Connector(),
		Owner:           p.Owner(),
		Active:          p.Active(),
		Default:         p.Default(),
		ResultsPerQuery: p.ResultsPerQuery(),
		TimeoutMs:       p.Timeout().Milliseconds(),
	}
}

func healthToWire(r healthuc.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	return HealthResponse{Status: string(r.Status), Checks: checks}
}

func datePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
