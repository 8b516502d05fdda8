package fedsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// Connector queries one search source in-process, instead of calling the
// provider's connector URL over HTTP. It must honor ctx cancellation.
type Connector interface {
	Execute(ctx context.Context, req ConnectorRequest) (ConnectorResponse, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, req ConnectorRequest) (ConnectorResponse, error)

// Execute calls f.
func (f ConnectorFunc) Execute(ctx context.Context, req ConnectorRequest) (ConnectorResponse, error) {
	return f(ctx, req)
}

// ConnectorRequest is one query sent to a connector.
type ConnectorRequest struct {
	Query      string
	Results    int
	ProviderID string
}

// ConnectorResponse carries the items a connector returned and the total it
// reports as found.
type ConnectorResponse struct {
	Found int
	Items []Item
}

// Item is one raw search result.
type Item struct {
	Title   string
	URL     string
	Body    string
	Date    time.Time
	Author  string
	Payload map[string]any
}

// WithConnector serves a provider with an in-process connector. The provider
// still needs a valid connector URL, which is then never called.
func WithConnector(providerID string, c Connector) Option {
	return optionFunc(func(cfg *clientConfig) {
		if cfg.connectors == nil {
			cfg.connectors = make(map[string]Connector)
		}
		cfg.connectors[providerID] = c
	})
}

// connectorAdapter wraps a public Connector to satisfy domain.Connector.
type connectorAdapter struct {
	inner Connector
}

func (a *connectorAdapter) Execute(ctx context.Context, req domain.ConnectorRequest) (domain.ConnectorResponse, error) {
	resp, err := a.inner.Execute(ctx, ConnectorRequest(req))
	if err != nil {
		return domain.ConnectorResponse{}, fmt.Errorf("connector %s: %w", req.ProviderID, err)
	}
	items := make([]result.Item, len(resp.Items))
	for i, it := range resp.Items {
		items[i] = result.Item{
			Title:   it.Title,
			URL:     it.URL,
			Body:    it.Body,
			Date:    it.Date,
			Author:  it.Author,
			Payload: it.Payload,
		}
	}
	return domain.ConnectorResponse{Found: resp.Found, Items: items}, nil
}
