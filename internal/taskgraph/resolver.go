package taskgraph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Default registry identity of the scheduler.
const (
	DefaultServiceName = "taskgraph"
	DefaultServiceTag  = "scheduler"
)

// Retry defaults for registry queries.
const (
	defaultRegistryRetries = 3
	defaultRegistryBackoff = 100 * time.Millisecond
)

// Registry lists the service instances currently registered with the local
// registry agent, in registry order.
type Registry interface {
	Services(ctx context.Context) ([]Service, error)
}

// Resolver finds the scheduler endpoint to use for a call. It queries the
// registry on every Discover and never caches the snapshot.
type Resolver struct {
	registry Registry
	selector Selector
	service  string
	tag      string
	retries  int
	backoff  time.Duration
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSelector replaces the default First selection strategy.
func WithSelector(s Selector) ResolverOption {
	return func(r *Resolver) { r.selector = s }
}

// WithService sets the registry service name and role tag to match.
func WithService(name, tag string) ResolverOption {
	return func(r *Resolver) {
		r.service = name
		r.tag = tag
	}
}

// WithRetry sets how many times a failed registry query is attempted and the
// base delay between attempts. The delay doubles after each failure.
// attempts < 1 is treated as 1.
func WithRetry(attempts int, backoff time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.retries = max(attempts, 1)
		r.backoff = backoff
	}
}

// WithResolverLogger sets the logger used to report retried registry queries.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver over the given registry.
func NewResolver(reg Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: reg,
		selector: First,
		service:  DefaultServiceName,
		tag:      DefaultServiceTag,
		retries:  defaultRegistryRetries,
		backoff:  defaultRegistryBackoff,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover returns the endpoint of a registered scheduler instance.
// It fails with ErrServiceUnavailable when no entry matches and with a
// *TransportError when the registry cannot be queried.
func (r *Resolver) Discover(ctx context.Context) (Endpoint, error) {
	services, err := r.query(ctx)
	if err != nil {
		return Endpoint{}, err
	}

	var matches []Service
	for _, svc := range services {
		if svc.Name == r.service && svc.HasTag(r.tag) {
			matches = append(matches, svc)
		}
	}
	if len(matches) == 0 {
		return Endpoint{}, fmt.Errorf("%w: no registered service found for %s %s",
			ErrServiceUnavailable, r.service, r.tag)
	}

	return r.selector.Select(matches).Endpoint(), nil
}

// query runs the registry query with bounded exponential backoff.
func (r *Resolver) query(ctx context.Context) ([]Service, error) {
	var lastErr error
	backoff := r.backoff

	for attempt := 0; attempt < r.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		services, err := r.registry.Services(ctx)
		if err == nil {
			return services, nil
		}
		lastErr = err

		if attempt < r.retries-1 {
			r.logger.Warn("registry query failed, retrying",
				"attempt", attempt+1,
				"backoff_ms", backoff.Milliseconds(),
				"error", err,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}

	return nil, &TransportError{Op: "registry", Err: lastErr}
}
