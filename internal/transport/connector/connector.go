// Package connector calls remote provider connectors over HTTP JSON.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	"github.com/kailas-cloud/fedsearch/internal/version"
)

// maxResponseBytes caps a connector response body.
const maxResponseBytes = 8 << 20

type request struct {
	Query      string `json:"query"`
	Results    int    `json:"results"`
	ProviderID string `json:"provider_id"`
}

type response struct {
	Found int    `json:"found"`
	Items []item `json:"items"`
}

type item struct {
	Title   string         `json:"title"`
	URL     string         `json:"url"`
	Body    string         `json:"body"`
	Date    string         `json:"date,omitempty"`
	Author  string         `json:"author,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// HTTP is a domain.Connector that POSTs the query to one endpoint.
type HTTP struct {
	endpoint string
	client   *http.Client
	apiKey   string
}

var _ domain.Connector = (*HTTP)(nil)

// NewHTTP creates a connector for endpoint. A nil client uses http.DefaultClient.
func NewHTTP(endpoint string, client *http.Client, apiKey string) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{endpoint: endpoint, client: client, apiKey: apiKey}
}

// Execute implements domain.Connector. Cancellation and deadlines come from ctx.
func (c *HTTP) Execute(ctx context.Context, req domain.ConnectorRequest) (domain.ConnectorResponse, error) {
	body, err := json.Marshal(request{Query: req.Query, Results: req.Results, ProviderID: req.ProviderID})
	if err != nil {
		return domain.ConnectorResponse{}, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ConnectorResponse{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.ConnectorResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ConnectorResponse{}, fmt.Errorf("connector status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return domain.ConnectorResponse{}, fmt.Errorf("decode: %w", err)
	}

	items := make([]result.Item, 0, len(out.Items))
	for _, it := range out.Items {
		items = append(items, result.Item{
			Title:   it.Title,
			URL:     it.URL,
			Body:    it.Body,
			Date:    parseDate(it.Date),
			Author:  it.Author,
			Payload: it.Payload,
		})
	}
	return domain.ConnectorResponse{Found: out.Found, Items: items}, nil
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate accepts the common layouts connectors emit. Unparseable dates are dropped.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
