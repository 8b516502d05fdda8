package mixer

import (
	"context"
	"sort"

	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// Built-in mixer names.
const (
	RelevancyMixer  = "RelevancyMixer"
	DateMixer       = "DateMixer"
	RoundRobinMixer = "RoundRobinMixer"
	StackMixer      = "StackMixer"
)

func hitFrom(rec *result.Record, idx int, it result.Item) mix.Hit {
	return mix.Hit{
		ProviderID:   rec.ProviderID(),
		ProviderName: rec.ProviderName(),
		ProviderRank: idx + 1,
		Title:        it.Title,
		URL:          it.URL,
		Body:         it.Body,
		Date:         it.Date,
		Author:       it.Author,
		Score:        it.Score,
		Explain:      it.Explain,
	}
}

// flatten returns hits in record order, each record's items in provider rank order.
func flatten(recs []result.Record) []mix.Hit {
	var hits []mix.Hit
	for i := range recs {
		for j, it := range recs[i].Items() {
			hits = append(hits, hitFrom(&recs[i], j, it))
		}
	}
	return hits
}

// mixByRelevancy orders by score, then provider rank, then provider id.
func mixByRelevancy(_ context.Context, in Input) ([]mix.Hit, error) {
	hits := flatten(in.Records)
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ProviderRank != b.ProviderRank {
			return a.ProviderRank < b.ProviderRank
		}
		return a.ProviderID < b.ProviderID
	})
	return hits, nil
}

// mixByDate orders newest first. Undated hits go last, ordered by score.
func mixByDate(_ context.Context, in Input) ([]mix.Hit, error) {
	hits := flatten(in.Records)
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		switch {
		case a.Date.IsZero() != b.Date.IsZero():
			return !a.Date.IsZero()
		case !a.Date.Equal(b.Date):
			return a.Date.After(b.Date)
		default:
			return a.Score > b.Score
		}
	})
	return hits, nil
}

// mixRoundRobin takes the next hit from each provider in turn.
func mixRoundRobin(_ context.Context, in Input) ([]mix.Hit, error) {
	var hits []mix.Hit
	for rank := 0; ; rank++ {
		added := false
		for i := range in.Records {
			items := in.Records[i].Items()
			if rank < len(items) {
				hits = append(hits, hitFrom(&in.Records[i], rank, items[rank]))
				added = true
			}
		}
		if !added {
			return hits, nil
		}
	}
}

// mixStacked keeps each provider's hits together, providers in record order.
func mixStacked(_ context.Context, in Input) ([]mix.Hit, error) {
	return flatten(in.Records), nil
}
