package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
)

// MaxBatchTexts bounds the texts sent in one upstream batch request.
const MaxBatchTexts = 256

var (
	_ domain.Embedder      = (*Metered)(nil)
	_ domain.BatchEmbedder = (*Metered)(nil)
)

// Metered charges embedding calls against a Budget.
type Metered struct {
	inner  domain.Embedder
	budget *Budget
	logger *zap.Logger
}

// NewMetered wraps inner with budget enforcement.
func NewMetered(inner domain.Embedder, budget *Budget, logger *zap.Logger) *Metered {
	return &Metered{inner: inner, budget: budget, logger: logger}
}

// Embed implements domain.Embedder.
func (m *Metered) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := m.budget.Check(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("budget: %w", err)
	}
	res, err := m.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	m.budget.Record(ctx, res.TotalTokens)
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder. Large inputs are split into
// chunks of MaxBatchTexts, and the budget is checked before each chunk.
func (m *Metered) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for offset := 0; offset < len(texts); offset += MaxBatchTexts {
		if err := m.budget.Check(ctx); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("budget: %w", err)
		}
		chunk := texts[offset:min(offset+MaxBatchTexts, len(texts))]

		res, err := domain.EmbedAll(ctx, m.inner, chunk)
		if err != nil {
			m.logger.Warn("Batch embedding failed",
				zap.Int("chunk_offset", offset), zap.Int("chunk_size", len(chunk)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, err
		}
		m.budget.Record(ctx, res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}
