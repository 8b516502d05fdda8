package result

import (
	"fmt"
	"time"
)

// Item is one raw hit returned by a provider connector.
type Item struct {
	Title   string
	URL     string
	Body    string
	Date    time.Time
	Author  string
	Payload map[string]any

	// Relevance metadata written by post-processing.
	Score   float64
	Explain map[string]any
}

// Record groups the items one provider returned for one search run.
type Record struct {
	id           string
	searchID     string
	owner        string
	providerID   string
	providerName string
	items        []Item
	found        int
	createdAt    int64
	updatedAt    int64
}

// New creates a result record.
func New(id, searchID, owner, providerID, providerName string, items []Item, found int) (Record, error) {
	if id == "" || searchID == "" {
		return Record{}, fmt.Errorf("result id and search id are required")
	}
	if providerID == "" {
		return Record{}, fmt.Errorf("provider id is required")
	}
	if found < len(items) {
		found = len(items)
	}
	now := time.Now().UnixMilli()
	return Record{
		id: id, searchID: searchID, owner: owner,
		providerID: providerID, providerName: providerName,
		items: items, found: found,
		createdAt: now, updatedAt: now,
	}, nil
}

// Reconstruct restores a record from storage without validation.
func Reconstruct(
	id, searchID, owner, providerID, providerName string,
	items []Item, found int, createdAt, updatedAt int64,
) Record {
	return Record{
		id: id, searchID: searchID, owner: owner,
		providerID: providerID, providerName: providerName,
		items: items, found: found,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// SearchID returns the owning search.
func (r *Record) SearchID() string { return r.searchID }

// Owner returns the owning principal.
func (r *Record) Owner() string { return r.owner }

// ProviderID returns the provider that produced the items.
func (r *Record) ProviderID() string { return r.providerID }

// ProviderName returns the provider display name.
func (r *Record) ProviderName() string { return r.providerName }

// Items returns the raw items.
func (r *Record) Items() []Item { return r.items }

// Found returns the total the provider reported, at least len(Items).
func (r *Record) Found() int { return r.found }

// Retrieved returns the number of stored items.
func (r *Record) Retrieved() int { return len(r.items) }

// CreatedAt returns the creation time in unix millis.
func (r *Record) CreatedAt() int64 { return r.createdAt }

// UpdatedAt returns the last update time in unix millis.
func (r *Record) UpdatedAt() int64 { return r.updatedAt }

// WithItems returns a copy with rescored items.
func (r Record) WithItems(items []Item) Record {
	r.items = items
	r.updatedAt = time.Now().UnixMilli()
	return r
}
