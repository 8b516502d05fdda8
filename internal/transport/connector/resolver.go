package connector

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
)

// Resolver maps providers to connectors. Providers with a registered in-process
// connector use it; all others are reached over HTTP at their connector URL.
type Resolver struct {
	client  *http.Client
	apiKeys map[string]string

	mu      sync.RWMutex
	local   map[string]domain.Connector
	remotes map[string]*HTTP
}

// NewResolver creates a resolver. apiKeys maps provider id to a bearer token.
func NewResolver(client *http.Client, apiKeys map[string]string) *Resolver {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Resolver{
		client:  client,
		apiKeys: apiKeys,
		local:   make(map[string]domain.Connector),
		remotes: make(map[string]*HTTP),
	}
}

// Register binds an in-process connector to a provider id.
func (r *Resolver) Register(providerID string, c domain.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[providerID] = c
}

// Resolve returns the connector for p.
func (r *Resolver) Resolve(p domprov.Provider) (domain.Connector, error) {
	r.mu.RLock()
	c, ok := r.local[p.ID()]
	remote, cached := r.remotes[p.ID()]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	if cached && remote.endpoint == p.Connector() {
		return remote, nil
	}

	if p.Connector() == "" {
		return nil, fmt.Errorf("provider %s has no connector endpoint", p.ID())
	}
	remote = NewHTTP(p.Connector(), r.client, r.apiKeys[p.ID()])

	r.mu.Lock()
	r.remotes[p.ID()] = remote
	r.mu.Unlock()
	return remote, nil
}
