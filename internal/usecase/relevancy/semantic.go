package relevancy

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// Semantic scores items by cosine similarity between the query and item embeddings.
type Semantic struct {
	embedder domain.Embedder
}

// NewSemantic creates an embedding-based processor.
func NewSemantic(embedder domain.Embedder) *Semantic {
	return &Semantic{embedder: embedder}
}

// Process implements Processor. The query and all items are embedded in one call
// when the embedder supports batching.
func (s *Semantic) Process(ctx context.Context, query string, items []result.Item) ([]result.Item, error) {
	if len(items) == 0 {
		return []result.Item{}, nil
	}

	texts := make([]string, 0, len(items)+1)
	texts = append(texts, query)
	for _, it := range items {
		texts = append(texts, itemText(it))
	}

	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("embed items: %w", err)
	}

	qv := res.Embeddings[0]
	out := cloneItems(items)
	for i := range out {
		sim := cosine(qv, res.Embeddings[i+1])
		out[i].Score = math.Round(sim*1e4) / 1e4
		out[i].Explain = map[string]any{
			"processor": KindSemantic,
			"cosine":    sim,
		}
	}
	return out, nil
}

// cosine returns the cosine similarity of a and b, 0 for mismatched or zero vectors.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
