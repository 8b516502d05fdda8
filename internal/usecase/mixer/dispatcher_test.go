package mixer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
)

func page(n, size int) mix.Request {
	return mix.Request{SearchID: "s1", Page: n, PageSize: size}
}

func TestMix_Paginates(t *testing.T) {
	results := recordsOf(testRecord("web", 0.9, 0.7, 0.5), testRecord("news", 0.8, 0.6))
	d := newTestDispatcher(results)

	p, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), "", page(2, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustEqual(t, titles(p.Hits), []string{"web-2", "news-2"})
	if p.Hits[0].Rank != 3 || p.Hits[1].Rank != 4 {
		t.Errorf("ranks = %d,%d", p.Hits[0].Rank, p.Hits[1].Rank)
	}
	if p.Mixer != RelevancyMixer || p.Found != 50 || p.Retrieved != 5 {
		t.Errorf("page = %+v", p)
	}
	if p.Query != "rust vs go" || p.Status != string(status.FullResultsReady) {
		t.Errorf("page meta = %+v", p)
	}
	if p.Hits[0].Explain != nil {
		t.Error("explain must be stripped unless requested")
	}
}

func TestMix_PageBeyondEnd(t *testing.T) {
	d := newTestDispatcher(recordsOf(testRecord("web", 0.9)))
	p, err := d.Mix(context.Background(), testSearch(status.PartialResultsReady, ""), "", page(5, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Hits == nil || len(p.Hits) != 0 {
		t.Errorf("hits = %v, want empty", p.Hits)
	}
}

func TestMix_HugePageRejected(t *testing.T) {
	d := newTestDispatcher(recordsOf(testRecord("web", 0.9)))
	for _, req := range []mix.Request{
		page((1<<62)+1, 10),
		page(math.MaxInt, 2),
		page(2, math.MaxInt),
	} {
		_, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), "", req)
		if !errors.Is(err, domain.ErrInvalidMixerArguments) {
			t.Errorf("page=%d size=%d: err = %v, want ErrInvalidMixerArguments", req.Page, req.PageSize, err)
		}
	}
}

func TestMix_LastRepresentablePage(t *testing.T) {
	d := newTestDispatcher(recordsOf(testRecord("web", 0.9)))
	p, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), "", page(math.MaxInt, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Hits) != 0 {
		t.Errorf("hits = %v, want empty", p.Hits)
	}
}

func TestMix_ExplainDoesNotAliasRecords(t *testing.T) {
	rec := testRecord("web", 0.9)
	d := newTestDispatcher(recordsOf(rec))
	req := page(1, 10)
	req.Explain = true

	p, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), StackMixer, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex := p.Hits[0].Explain
	if ex["mixer"] != StackMixer || ex["provider_rank"] != 1 || ex["terms"] != 0 {
		t.Errorf("explain = %v", ex)
	}
	if _, ok := rec.Items()[0].Explain["mixer"]; ok {
		t.Error("stored explain map was mutated")
	}
}

func TestMix_NotReady(t *testing.T) {
	for _, st := range []status.Status{status.New, status.Running, status.Failed} {
		results := &mockResults{}
		d := newTestDispatcher(results)
		_, err := d.Mix(context.Background(), testSearch(st, ""), "", page(1, 10))
		if !errors.Is(err, domain.ErrNotReady) {
			t.Errorf("%s: err = %v, want ErrNotReady", st, err)
		}
		if results.calls != 0 {
			t.Errorf("%s: results loaded before readiness check", st)
		}
	}
}

func TestMix_RescoringIsMixable(t *testing.T) {
	d := newTestDispatcher(recordsOf(testRecord("web", 0.9)))
	if _, err := d.Mix(context.Background(), testSearch(status.Rescoring, ""), "", page(1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMix_UnknownMixerNeverExecutes(t *testing.T) {
	results := &mockResults{}
	d := newTestDispatcher(results)
	for _, name := range []string{"Nope", "os.Exit", "__import__"} {
		_, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), name, page(1, 10))
		if !errors.Is(err, domain.ErrUnknownMixer) {
			t.Errorf("%q: err = %v, want ErrUnknownMixer", name, err)
		}
	}
	if results.calls != 0 {
		t.Error("results loaded for unknown mixer")
	}
}

func TestMix_NotReadyCheckedBeforeName(t *testing.T) {
	d := newTestDispatcher(&mockResults{})
	_, err := d.Mix(context.Background(), testSearch(status.Running, ""), "Nope", page(1, 10))
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestMix_MixerPrecedence(t *testing.T) {
	d := newTestDispatcher(recordsOf(testRecord("web", 0.1)))
	ctx := context.Background()

	p, _ := d.Mix(ctx, testSearch(status.FullResultsReady, DateMixer), "", page(1, 10))
	if p.Mixer != DateMixer {
		t.Errorf("search mixer: got %s", p.Mixer)
	}
	p, _ = d.Mix(ctx, testSearch(status.FullResultsReady, DateMixer), StackMixer, page(1, 10))
	if p.Mixer != StackMixer {
		t.Errorf("override: got %s", p.Mixer)
	}
	p, _ = d.Mix(ctx, testSearch(status.FullResultsReady, ""), "", page(1, 10))
	if p.Mixer != RelevancyMixer {
		t.Errorf("default: got %s", p.Mixer)
	}
}

func TestMix_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		req  mix.Request
	}{
		{"zero page", page(0, 10)},
		{"zero size", page(1, 0)},
		{"bad provider", mix.Request{Page: 1, PageSize: 10, Provider: "a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(&mockResults{})
			_, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), "", tt.req)
			if !errors.Is(err, domain.ErrInvalidMixerArguments) {
				t.Fatalf("err = %v, want ErrInvalidMixerArguments", err)
			}
		})
	}
}

func TestMix_ProviderFilter(t *testing.T) {
	d := newTestDispatcher(recordsOf(testRecord("web", 0.9), testRecord("news", 0.8, 0.7)))
	req := page(1, 10)
	req.Provider = "news"

	p, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), "", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustEqual(t, titles(p.Hits), []string{"news-1", "news-2"})
	if p.Found != 20 {
		t.Errorf("found = %d", p.Found)
	}
}

func TestMix_StrategyFailures(t *testing.T) {
	reg := NewDefaultRegistry()
	reg.MustRegister("Boom", StrategyFunc(func(context.Context, Input) ([]mix.Hit, error) {
		panic("boom")
	}))
	reg.MustRegister("Broken", StrategyFunc(func(context.Context, Input) ([]mix.Hit, error) {
		return nil, errors.New("backend down")
	}))
	reg.MustRegister("Picky", StrategyFunc(func(context.Context, Input) ([]mix.Hit, error) {
		return nil, fmt.Errorf("needs two providers: %w", domain.ErrInvalidMixerArguments)
	}))
	d := NewDispatcher(reg, recordsOf(testRecord("web", 0.9)), "", zap.NewNop())
	s := testSearch(status.FullResultsReady, "")

	before := testutil.ToFloat64(metrics.MixerInvocationsTotal.WithLabelValues("Boom", "panic"))
	if _, err := d.Mix(context.Background(), s, "Boom", page(1, 10)); !errors.Is(err, domain.ErrMixerFailed) {
		t.Errorf("panic: err = %v", err)
	}
	if got := testutil.ToFloat64(metrics.MixerInvocationsTotal.WithLabelValues("Boom", "panic")); got != before+1 {
		t.Errorf("panic metric = %v, want %v", got, before+1)
	}
	if _, err := d.Mix(context.Background(), s, "Broken", page(1, 10)); !errors.Is(err, domain.ErrMixerFailed) {
		t.Errorf("error: err = %v", err)
	}
	_, err := d.Mix(context.Background(), s, "Picky", page(1, 10))
	if !errors.Is(err, domain.ErrInvalidMixerArguments) || errors.Is(err, domain.ErrMixerFailed) {
		t.Errorf("invalid args: err = %v", err)
	}
}

func TestMix_LoadError(t *testing.T) {
	d := newTestDispatcher(&mockResults{listFn: func(context.Context, string) ([]result.Record, error) {
		return nil, errors.New("store down")
	}})
	if _, err := d.Mix(context.Background(), testSearch(status.FullResultsReady, ""), "", page(1, 10)); err == nil {
		t.Fatal("expected error")
	}
}
