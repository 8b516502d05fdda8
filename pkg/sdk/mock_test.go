package fedsearch

import (
	"context"

	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	provideruc "github.com/kailas-cloud/fedsearch/internal/usecase/provider"
	searchuc "github.com/kailas-cloud/fedsearch/internal/usecase/search"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	createFn  func(ctx context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error)
	inlineFn  func(ctx context.Context, owner string, in searchuc.CreateInput, ri searchuc.ResultsInput) (mix.Page, error)
	listFn    func(ctx context.Context, owner string) ([]domsearch.Search, error)
	getFn     func(ctx context.Context, owner, id string) (domsearch.Search, error)
	deleteFn  func(ctx context.Context, owner, id string) error
	resultsFn func(ctx context.Context, owner, id string, ri searchuc.ResultsInput) (mix.Page, error)
	rerunFn   func(ctx context.Context, owner, id string) (domsearch.Search, error)
	rescoreFn func(ctx context.Context, owner, id string) (domsearch.Search, error)
	updateFn  func(ctx context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error)
}

func (m *mockSearchUC) Update(ctx context.Context, owner, id string, e domsearch.Edit) (domsearch.Search, error) {
	return m.updateFn(ctx, owner, id, e)
}

func (m *mockSearchUC) Create(ctx context.Context, owner string, in searchuc.CreateInput) (domsearch.Search, error) {
	return m.createFn(ctx, owner, in)
}

func (m *mockSearchUC) Inline(
	ctx context.Context, owner string, in searchuc.CreateInput, ri searchuc.ResultsInput,
) (mix.Page, error) {
	return m.inlineFn(ctx, owner, in, ri)
}

func (m *mockSearchUC) List(ctx context.Context, owner string) ([]domsearch.Search, error) {
	return m.listFn(ctx, owner)
}

func (m *mockSearchUC) Get(ctx context.Context, owner, id string) (domsearch.Search, error) {
	return m.getFn(ctx, owner, id)
}

func (m *mockSearchUC) Delete(ctx context.Context, owner, id string) error {
	return m.deleteFn(ctx, owner, id)
}

func (m *mockSearchUC) Results(ctx context.Context, owner, id string, ri searchuc.ResultsInput) (mix.Page, error) {
	return m.resultsFn(ctx, owner, id, ri)
}

func (m *mockSearchUC) Rerun(ctx context.Context, owner, id string) (domsearch.Search, error) {
	return m.rerunFn(ctx, owner, id)
}

func (m *mockSearchUC) Rescore(ctx context.Context, owner, id string) (domsearch.Search, error) {
	return m.rescoreFn(ctx, owner, id)
}

// --- providerUseCase mock ---

type mockProviderUC struct {
	listFn   func(ctx context.Context) ([]domprov.Provider, error)
	createFn func(ctx context.Context, owner string, in provideruc.CreateInput) (domprov.Provider, error)
}

func (m *mockProviderUC) List(ctx context.Context) ([]domprov.Provider, error) {
	return m.listFn(ctx)
}

func (m *mockProviderUC) Create(ctx context.Context, owner string, in provideruc.CreateInput) (domprov.Provider, error) {
	return m.createFn(ctx, owner, in)
}
