package search

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
)

// MaxResultsRequested caps the page size a search may ask for.
const MaxResultsRequested = 100

var providerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// Search is a user-submitted query tracked through its lifecycle.
type Search struct {
	id               string
	owner            string
	query            string
	providers        []string
	resultsRequested int
	mixer            string
	status           status.Status
	messages         []string
	generation       int
	failedProviders  []string
	retrieved        int
	createdAt        int64
	updatedAt        int64
}

// New creates a search in status NEW.
func New(id, owner, query string, providers []string, resultsRequested int, mixer string) (Search, error) {
	if id == "" {
		return Search{}, fmt.Errorf("search id is required")
	}
	if owner == "" {
		return Search{}, fmt.Errorf("owner is required")
	}
	query, err := cleanQuery(query)
	if err != nil {
		return Search{}, err
	}
	if err := checkResults(resultsRequested); err != nil {
		return Search{}, err
	}
	clean, err := cleanProviders(providers)
	if err != nil {
		return Search{}, err
	}

	now := time.Now().UnixMilli()
	return Search{
		id:               id,
		owner:            owner,
		query:            query,
		providers:        clean,
		resultsRequested: resultsRequested,
		mixer:            mixer,
		status:           status.New,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// Reconstruct restores a search from storage without validation.
func Reconstruct(
	id, owner, query string, providers []string, resultsRequested int, mixer string,
	st status.Status, messages []string, generation int, failedProviders []string, retrieved int,
	createdAt, updatedAt int64,
) Search {
	return Search{
		id: id, owner: owner, query: query, providers: providers,
		resultsRequested: resultsRequested, mixer: mixer, status: st,
		messages: messages, generation: generation, failedProviders: failedProviders,
		retrieved: retrieved, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the search identifier.
func (s *Search) ID() string { return s.id }

// Owner returns the principal that submitted the search.
func (s *Search) Owner() string { return s.owner }

// Query returns the query text.
func (s *Search) Query() string { return s.query }

// Providers returns the selected provider ids (empty means the default set).
func (s *Search) Providers() []string { return slices.Clone(s.providers) }

// ResultsRequested returns the page size.
func (s *Search) ResultsRequested() int { return s.resultsRequested }

// Mixer returns the configured mixer name.
func (s *Search) Mixer() string { return s.mixer }

// Status returns the lifecycle status.
func (s *Search) Status() status.Status { return s.status }

// Messages returns the status log.
func (s *Search) Messages() []string { return slices.Clone(s.messages) }

// Generation returns the run generation, incremented on every rerun.
func (s *Search) Generation() int { return s.generation }

// FailedProviders returns the providers that failed in the last run.
func (s *Search) FailedProviders() []string { return slices.Clone(s.failedProviders) }

// Retrieved returns the number of items stored by the last run.
func (s *Search) Retrieved() int { return s.retrieved }

// CreatedAt returns the creation time in unix millis.
func (s *Search) CreatedAt() int64 { return s.createdAt }

// UpdatedAt returns the last update time in unix millis.
func (s *Search) UpdatedAt() int64 { return s.updatedAt }

// Apply records a computed transition. A log reset also starts a new generation.
func (s *Search) Apply(t status.Transition) {
	s.status = t.To
	if t.ResetLog {
		s.messages = nil
		s.generation++
		s.failedProviders = nil
		s.retrieved = 0
	}
	if t.Message != "" {
		s.messages = append(s.messages, t.Message)
	}
	s.touch()
}

// Advance computes and applies the next status for ev.
func (s *Search) Advance(ev status.Event) error {
	t, err := status.Advance(s.status, ev)
	if err != nil {
		return err
	}
	s.Apply(t)
	return nil
}

// Edit holds client changes to a search. Nil fields are left as they are.
type Edit struct {
	Query            *string
	Providers        *[]string
	ResultsRequested *int
	Mixer            *string
}

// Empty reports whether e changes nothing.
func (e Edit) Empty() bool {
	return e.Query == nil && e.Providers == nil && e.ResultsRequested == nil && e.Mixer == nil
}

// Update applies e. A search that is running or rescoring cannot be edited.
// The status and message log are kept.
func (s *Search) Update(e Edit) error {
	if s.status == status.Running || s.status == status.Rescoring {
		return &domain.TransitionError{From: string(s.status), Event: "Update"}
	}

	query, results, providers, mixer := s.query, s.resultsRequested, s.providers, s.mixer
	var err error
	if e.Query != nil {
		if query, err = cleanQuery(*e.Query); err != nil {
			return err
		}
	}
	if e.ResultsRequested != nil {
		results = *e.ResultsRequested
		if err := checkResults(results); err != nil {
			return err
		}
	}
	if e.Providers != nil {
		if providers, err = cleanProviders(*e.Providers); err != nil {
			return err
		}
	}
	if e.Mixer != nil {
		mixer = *e.Mixer
	}

	s.query, s.resultsRequested, s.providers, s.mixer = query, results, providers, mixer
	s.touch()
	return nil
}

// SetRunSummary stores the outcome counters of a finished run.
func (s *Search) SetRunSummary(failedProviders []string, retrieved int) {
	s.failedProviders = failedProviders
	s.retrieved = retrieved
	s.touch()
}

func (s *Search) touch() {
	now := time.Now().UnixMilli()
	if now <= s.updatedAt {
		now = s.updatedAt + 1
	}
	s.updatedAt = now
}

func cleanQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("query text is required")
	}
	return q, nil
}

func checkResults(n int) error {
	if n < 1 || n > MaxResultsRequested {
		return fmt.Errorf("results requested must be between 1 and %d", MaxResultsRequested)
	}
	return nil
}

// cleanProviders trims, deduplicates and validates provider ids, keeping order.
func cleanProviders(providers []string) ([]string, error) {
	clean := make([]string, 0, len(providers))
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		if !providerIDRegex.MatchString(p) {
			return nil, fmt.Errorf("invalid provider id %q", p)
		}
		seen[p] = true
		clean = append(clean, p)
	}
	return clean, nil
}
