// Package relevancy scores provider items against the query text.
// Processors fill Item.Score and Item.Explain and never modify their input slice.
package relevancy

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// Processor kinds accepted by New.
const (
	KindTerms    = "terms"
	KindSemantic = "semantic"
)

// Processor scores items against a query.
type Processor interface {
	Process(ctx context.Context, query string, items []result.Item) ([]result.Item, error)
}

// New builds the processor for kind. The semantic processor requires an embedder.
func New(kind string, embedder domain.Embedder) (Processor, error) {
	switch kind {
	case "", KindTerms:
		return NewTerms(), nil
	case KindSemantic:
		if embedder == nil {
			return nil, fmt.Errorf("semantic relevancy requires an embedder")
		}
		return NewSemantic(embedder), nil
	default:
		return nil, fmt.Errorf("unknown relevancy processor %q", kind)
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// itemText is the text an item is scored on.
func itemText(it result.Item) string {
	if it.Body == "" {
		return it.Title
	}
	return it.Title + "\n" + it.Body
}

func cloneItems(items []result.Item) []result.Item {
	out := make([]result.Item, len(items))
	copy(out, items)
	return out
}
