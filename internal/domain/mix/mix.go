package mix

import (
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain"
)

// Request is an ephemeral mixing request.
type Request struct {
	SearchID string
	Page     int // 1-based
	PageSize int
	Explain  bool
	Provider string // optional single-provider filter
}

// Validate checks the request arguments.
func (r Request) Validate() error {
	if r.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d: %w", r.Page, domain.ErrInvalidMixerArguments)
	}
	if r.PageSize < 1 {
		return fmt.Errorf("page size must be >= 1, got %d: %w", r.PageSize, domain.ErrInvalidMixerArguments)
	}
	// Page*PageSize must fit in an int so Offset and the page end never wrap.
	if r.Page > math.MaxInt/r.PageSize {
		return fmt.Errorf("page %d out of range for page size %d: %w", r.Page, r.PageSize, domain.ErrInvalidMixerArguments)
	}
	return nil
}

// Offset returns the index of the first hit on the requested page.
func (r Request) Offset() int { return (r.Page - 1) * r.PageSize }

// Hit is one ranked entry of a mixed page.
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

// Page is the ordered, paginated output of a mixer. It is never persisted.
type Page struct {
	SearchID  string
	Query     string
	Status    string
	Mixer     string
	Page      int
	PageSize  int
	Found     int
	Retrieved int
	Messages  []string
	Hits      []Hit
}
