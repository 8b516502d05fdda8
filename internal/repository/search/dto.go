package search

import (
	"encoding/json"
	"fmt"

	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
)

// searchRow is the stored JSON shape of a search.
type searchRow struct {
	ID               string   `json:"id"`
	Owner            string   `json:"owner"`
	Query            string   `json:"query"`
	Providers        []string `json:"providers,omitempty"`
	ResultsRequested int      `json:"results_requested"`
	Mixer            string   `json:"mixer"`
	Status           string   `json:"status"`
	Messages         []string `json:"messages"`
	Generation       int      `json:"generation"`
	FailedProviders  []string `json:"failed_providers,omitempty"`
	Retrieved        int      `json:"retrieved"`
	CreatedAt        int64    `json:"created_at"`
	UpdatedAt        int64    `json:"updated_at"`
}

func marshalSearch(s domsearch.Search) ([]byte, error) {
	row := searchRow{
		ID:               s.ID(),
		Owner:            s.Owner(),
		Query:            s.Query(),
		Providers:        s.Providers(),
		ResultsRequested: s.ResultsRequested(),
		Mixer:            s.Mixer(),
		Status:           string(s.Status()),
		Messages:         s.Messages(),
		Generation:       s.Generation(),
		FailedProviders:  s.FailedProviders(),
		Retrieved:        s.Retrieved(),
		CreatedAt:        s.CreatedAt(),
		UpdatedAt:        s.UpdatedAt(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}
	return data, nil
}

func unmarshalSearch(data []byte) (domsearch.Search, error) {
	var row searchRow
	if err := json.Unmarshal(data, &row); err != nil {
		return domsearch.Search{}, fmt.Errorf("unmarshal search: %w", err)
	}
	st := status.Status(row.Status)
	if !st.IsValid() {
		return domsearch.Search{}, fmt.Errorf("search %s has unknown status %q", row.ID, row.Status)
	}
	return domsearch.Reconstruct(
		row.ID, row.Owner, row.Query, row.Providers, row.ResultsRequested, row.Mixer,
		st, row.Messages, row.Generation, row.FailedProviders, row.Retrieved,
		row.CreatedAt, row.UpdatedAt,
	), nil
}
