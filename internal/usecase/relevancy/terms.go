package relevancy

import (
	"context"
	"math"

	"github.com/kailas-cloud/fedsearch/internal/domain/result"
)

const (
	titleWeight = 2.0
	bodyWeight  = 1.0
)

// Terms scores items by query term coverage, weighting title matches over body matches.
// Scores fall in [0, 1].
type Terms struct{}

// NewTerms creates a term-overlap processor.
func NewTerms() *Terms { return &Terms{} }

// Process implements Processor.
func (t *Terms) Process(_ context.Context, query string, items []result.Item) ([]result.Item, error) {
	terms := unique(tokenize(query))
	out := cloneItems(items)
	if len(terms) == 0 {
		for i := range out {
			out[i].Score = 0
			out[i].Explain = map[string]any{"processor": KindTerms, "matched": []string{}}
		}
		return out, nil
	}

	for i := range out {
		title := set(tokenize(out[i].Title))
		body := set(tokenize(out[i].Body))

		matched := make([]string, 0, len(terms))
		var titleHits, bodyHits int
		for _, term := range terms {
			inTitle, inBody := title[term], body[term]
			if inTitle {
				titleHits++
			}
			if inBody {
				bodyHits++
			}
			if inTitle || inBody {
				matched = append(matched, term)
			}
		}

		raw := titleWeight*float64(titleHits) + bodyWeight*float64(bodyHits)
		score := raw / ((titleWeight + bodyWeight) * float64(len(terms)))
		out[i].Score = math.Round(score*1e4) / 1e4
		out[i].Explain = map[string]any{
			"processor":  KindTerms,
			"matched":    matched,
			"title_hits": titleHits,
			"body_hits":  bodyHits,
			"coverage":   float64(len(matched)) / float64(len(terms)),
		}
	}
	return out, nil
}

func unique(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func set(tokens []string) map[string]bool {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	return m
}
