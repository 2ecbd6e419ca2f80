package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Envelope is the scheduler's reply wrapper. Response holds JSON text.
type Envelope struct {
	Response string `json:"response"`
}

// Conn is a reusable transport handle bound to one scheduler endpoint.
type Conn interface {
	// Invoke calls the named remote operation with args as its single argument
	// and blocks until the reply envelope or an error arrives.
	Invoke(ctx context.Context, method Method, args any) (*Envelope, error)

	// Close releases the underlying transport.
	Close() error
}

// Dialer creates a Conn bound to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, ep Endpoint) (Conn, error)

// Dial calls f(ctx, ep).
func (f DialerFunc) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	return f(ctx, ep)
}

// dialTimeout bounds a shared dial, which is not tied to any caller's context.
const dialTimeout = 30 * time.Second

// ErrPoolClosed is returned by Get once the pool has been closed.
var ErrPoolClosed = errors.New("connection pool closed")

// Pool caches one Conn per endpoint key for the lifetime of the process.
// Entries are never evicted; a vanished endpoint keeps its Conn, which simply
// fails on its next use. It is safe for concurrent use.
type Pool struct {
	dialer Dialer
	group  singleflight.Group

	mu     sync.RWMutex
	conns  map[string]Conn
	closed bool
}

// NewPool creates an empty Pool that dials new endpoints with d.
func NewPool(d Dialer) *Pool {
	return &Pool{
		dialer: d,
		conns:  make(map[string]Conn),
	}
}

// Get returns the Conn for ep, dialing it on first use. Concurrent first
// callers for the same key share a single dial. Each caller waits for that
// dial only as long as its own ctx allows; the dial itself runs until it
// completes or dialTimeout elapses.
func (p *Pool) Get(ctx context.Context, ep Endpoint) (Conn, error) {
	key := ep.Key()

	p.mu.RLock()
	c, ok := p.conns[key]
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}
	if ok {
		return c, nil
	}

	dialCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		return p.dial(dialCtx, key, ep)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dial creates and caches the Conn for key. A Conn dialed after Close is
// closed instead of cached.
func (p *Pool) dial(ctx context.Context, key string, ep Endpoint) (Conn, error) {
	p.mu.RLock()
	c, ok := p.conns[key]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, err := p.dialer.Dial(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		c.Close()
		return nil, ErrPoolClosed
	}
	p.conns[key] = c
	connsCached.Inc()
	return c, nil
}

// Len returns the number of cached connections.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Keys returns the cached endpoint keys, sorted.
func (p *Pool) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := make([]string, 0, len(p.conns))
	for k := range p.conns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close closes every cached Conn and empties the pool. Later calls to Get
// fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	var errs []error
	for key, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
		delete(p.conns, key)
		connsCached.Dec()
	}
	return errors.Join(errs...)
}
