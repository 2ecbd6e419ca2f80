// Package consul lists scheduler instances registered with a local Consul agent.
package consul

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"

	"github.com/hashicorp/consul/api"

	"github.com/zyoung51/on-http/internal/taskgraph"
)

// DefaultURL locates the local Consul agent.
const DefaultURL = "consul://127.0.0.1:8500"

const defaultPort = "8500"

// Compile-time interface satisfaction check.
var _ taskgraph.Registry = (*Registry)(nil)

// Registry implements taskgraph.Registry over the agent's service list.
type Registry struct {
	client *api.Client
}

// New creates a Registry for the agent at addr ("host:port") using scheme
// ("http" or "https"). Empty values fall back to the Consul defaults.
func New(addr, scheme string) (*Registry, error) {
	cfg := api.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	if scheme != "" {
		cfg.Scheme = scheme
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &Registry{client: client}, nil
}

// FromURL creates a Registry from a URL such as "consul://10.1.1.2:8500".
// The "consul" scheme means plain HTTP; a missing port defaults to 8500.
func FromURL(raw string) (*Registry, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse consul url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("parse consul url: missing host in %q", raw)
	}

	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	scheme := "http"
	if u.Scheme == "https" {
		scheme = "https"
	}
	return New(net.JoinHostPort(u.Hostname(), port), scheme)
}

// Services returns the services registered with the agent. The agent reports
// them as a map, so entries are ordered by service ID to keep selection stable.
func (r *Registry) Services(ctx context.Context) ([]taskgraph.Service, error) {
	q := (&api.QueryOptions{}).WithContext(ctx)
	byID, err := r.client.Agent().ServicesWithFilterOpts("", q)
	if err != nil {
		return nil, fmt.Errorf("list agent services: %w", err)
	}

	services := make([]taskgraph.Service, 0, len(byID))
	for id, svc := range byID {
		services = append(services, taskgraph.Service{
			ID:      id,
			Name:    svc.Service,
			Tags:    svc.Tags,
			Address: svc.Address,
			Port:    svc.Port,
		})
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].ID < services[j].ID
	})
	return services, nil
}
