package fedsearch

import (
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
)

// Status is the lifecycle state of a search.
type Status string

// Search statuses.
const (
	StatusNew                 = Status(status.New)
	StatusRunning             = Status(status.Running)
	StatusFullResultsReady    = Status(status.FullResultsReady)
	StatusPartialResultsReady = Status(status.PartialResultsReady)
	StatusRescoring           = Status(status.Rescoring)
	StatusFailed              = Status(status.Failed)
)

// Ready reports whether results of a search in this status can be mixed.
func (s Status) Ready() bool {
	return s == StatusFullResultsReady || s == StatusPartialResultsReady
}

// SearchInput describes a new search.
type SearchInput struct {
	Query string
	// Providers restricts the search to these provider ids. Empty uses the
	// default providers.
	Providers        []string
	ResultsRequested int    // 0 uses the default
	Mixer            string // empty uses the default mixer
}

// SearchUpdate edits a stored search. Nil fields are left unchanged.
type SearchUpdate struct {
	Query            *string
	Providers        *[]string
	ResultsRequested *int
	Mixer            *string
}

// ResultsOptions selects a page of mixed results.
type ResultsOptions struct {
	Page     int    // 0 means 1
	Mixer    string // overrides the mixer stored on the search
	Explain  *bool  // nil uses the default
	Provider string // restricts the page to one provider
}

// Search is a stored query and its execution state.
type Search struct {
	ID               string
	Owner            string
	Query            string
	Providers        []string
	ResultsRequested int
	Mixer            string
	Status           Status
	Messages         []string
	FailedProviders  []string
	Retrieved        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Hit is one ranked entry of a results page.
type Hit struct {
	Rank         int
	ProviderID   string
	ProviderName string
	ProviderRank int
	Title        string
	URL          string
	Body         string
	Date         time.Time
	Author       string
	Score        float64
	Explain      map[string]any
}

// Page is a page of mixed results.
type Page struct {
	SearchID  string
	Query     string
	Status    Status
	Mixer     string
	Page      int
	PageSize  int
	Found     int
	Retrieved int
	Messages  []string
	Hits      []Hit
}

// ProviderInput describes a search provider.
type ProviderInput struct {
	ID              string
	Name            string
	Connector       string
	Inactive        bool
	Default         bool
	ResultsPerQuery int
	Timeout         time.Duration
}

// Provider is a registered search provider.
type Provider struct {
	ID              string
	Name            string
	Connector       string
	Owner           string
	Active          bool
	Default         bool
	ResultsPerQuery int
	Timeout         time.Duration
}

func fromInternalSearch(s domsearch.Search) Search {
	return Search{
		ID:               s.ID(),
		Owner:            s.Owner(),
		Query:            s.Query(),
		Providers:        s.Providers(),
		ResultsRequested: s.ResultsRequested(),
		Mixer:            s.Mixer(),
		Status:           Status(s.Status()),
		Messages:         s.Messages(),
		FailedProviders:  s.FailedProviders(),
		Retrieved:        s.Retrieved(),
		CreatedAt:        time.UnixMilli(s.CreatedAt()),
		UpdatedAt:        time.UnixMilli(s.UpdatedAt()),
	}
}

func fromInternalPage(p mix.Page) Page {
	hits := make([]Hit, len(p.Hits))
	for i, h := range p.Hits {
		hits[i] = Hit(h)
	}
	return Page{
		SearchID:  p.SearchID,
		Query:     p.Query,
		Status:    Status(p.Status),
		Mixer:     p.Mixer,
		Page:      p.Page,
		PageSize:  p.PageSize,
		Found:     p.Found,
		Retrieved: p.Retrieved,
		Messages:  p.Messages,
		Hits:      hits,
	}
}

func fromInternalProvider(p domprov.Provider) Provider {
	return Provider{
		ID:              p.ID(),
		Name:            p.Name(),
		Connector:       p.Connector(),
		Owner:           p.Owner(),
		Active:          p.Active(),
		Default:         p.Default(),
		ResultsPerQuery: p.ResultsPerQuery(),
		Timeout:         p.Timeout(),
	}
}
