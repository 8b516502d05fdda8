package domain

import (
	"context"

	"github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// ConnectorRequest is what a provider connector receives for one query.
type ConnectorRequest struct {
	Query      string
	Results    int
	ProviderID string
}

// ConnectorResponse carries raw items and the provider-reported total.
type ConnectorResponse struct {
	Found int
	Items []result.Item
}

// Connector performs the outbound query against one external search source.
// It must honor ctx cancellation.
type Connector interface {
	Execute(ctx context.Context, req ConnectorRequest) (ConnectorResponse, error)
}
