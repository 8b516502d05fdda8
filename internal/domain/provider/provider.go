package provider

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// Provider describes an external search source and how to reach its connector.
type Provider struct {
	id              string
	name            string
	connector       string
	owner           string
	active          bool
	isDefault       bool
	resultsPerQuery int
	timeout         time.Duration
}

// New creates a provider. connector is the remote connector endpoint URL.
func New(
	id, name, connector, owner string, active, isDefault bool,
	resultsPerQuery int, timeout time.Duration,
) (Provider, error) {
	if !idRegex.MatchString(id) {
		return Provider{}, fmt.Errorf("provider id must match %s", idRegex.String())
	}
	u, err := url.Parse(connector)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Provider{}, fmt.Errorf("provider connector must be an http(s) URL")
	}
	if resultsPerQuery < 0 {
		return Provider{}, fmt.Errorf("results per query must not be negative")
	}
	if timeout < 0 {
		return Provider{}, fmt.Errorf("timeout must not be negative")
	}
	if name == "" {
		name = id
	}
	return Provider{
		id: id, name: name, connector: connector, owner: owner,
		active: active, isDefault: isDefault,
		resultsPerQuery: resultsPerQuery, timeout: timeout,
	}, nil
}

// Reconstruct restores a provider from storage without validation.
func Reconstruct(
	id, name, connector, owner string, active, isDefault bool,
	resultsPerQuery int, timeout time.Duration,
) Provider {
	return Provider{
		id: id, name: name, connector: connector, owner: owner,
		active: active, isDefault: isDefault,
		resultsPerQuery: resultsPerQuery, timeout: timeout,
	}
}

// ID returns the provider identifier.
func (p *Provider) ID() string { return p.id }

// Name returns the display name.
func (p *Provider) Name() string { return p.name }

// Connector returns the connector endpoint.
func (p *Provider) Connector() string { return p.connector }

// Owner returns the principal that created the provider ("" for shared providers).
func (p *Provider) Owner() string { return p.owner }

// Active reports whether the provider may be queried.
func (p *Provider) Active() bool { return p.active }

// Default reports whether the provider is part of the default set.
func (p *Provider) Default() bool { return p.isDefault }

// ResultsPerQuery returns the per-query result cap (0 = use the search's page size).
func (p *Provider) ResultsPerQuery() int { return p.resultsPerQuery }

// Timeout returns the per-query timeout (0 = use the global default).
func (p *Provider) Timeout() time.Duration { return p.timeout }
