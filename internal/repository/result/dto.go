package result

import (
	"encoding/json"
	"fmt"
	"time"

	domresult "github.com/kailas-cloud/fedsearch/internal/domain/result"
)

type itemRow struct {
	Title   string         `json:"title,omitempty"`
	URL     string         `json:"url,omitempty"`
	Body    string         `json:"body,omitempty"`
	Date    *time.Time     `json:"date,omitempty"`
	Author  string         `json:"author,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Score   float64        `json:"score"`
	Explain map[string]any `json:"explain,omitempty"`
}

type recordRow struct {
	ID           string    `json:"id"`
	SearchID     string    `json:"search_id"`
	Owner        string    `json:"owner"`
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	Items        []itemRow `json:"items"`
	Found        int       `json:"found"`
	CreatedAt    int64     `json:"created_at"`
	UpdatedAt    int64     `json:"updated_at"`
}

func marshalRecord(rec domresult.Record) ([]byte, error) {
	items := rec.Items()
	rows := make([]itemRow, len(items))
	for i, it := range items {
		rows[i] = itemRow{
			Title: it.Title, URL: it.URL, Body: it.Body, Author: it.Author,
			Payload: it.Payload, Score: it.Score, Explain: it.Explain,
		}
		if !it.Date.IsZero() {
			d := it.Date.UTC()
			rows[i].Date = &d
		}
	}
	data, err := json.Marshal(recordRow{
		ID:           rec.ID(),
		SearchID:     rec.SearchID(),
		Owner:        rec.Owner(),
		ProviderID:   rec.ProviderID(),
		ProviderName: rec.ProviderName(),
		Items:        rows,
		Found:        rec.Found(),
		CreatedAt:    rec.CreatedAt(),
		UpdatedAt:    rec.UpdatedAt(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return data, nil
}

func unmarshalRecord(data []byte) (domresult.Record, error) {
	var row recordRow
	if err := json.Unmarshal(data, &row); err != nil {
		return domresult.Record{}, fmt.Errorf("unmarshal result: %w", err)
	}
	items := make([]domresult.Item, len(row.Items))
	for i, it := range row.Items {
		items[i] = domresult.Item{
			Title: it.Title, URL: it.URL, Body: it.Body, Author: it.Author,
			Payload: it.Payload, Score: it.Score, Explain: it.Explain,
		}
		if it.Date != nil {
			items[i].Date = *it.Date
		}
	}
	return domresult.Reconstruct(
		row.ID, row.SearchID, row.Owner, row.ProviderID, row.ProviderName,
		items, row.Found, row.CreatedAt, row.UpdatedAt,
	), nil
}
