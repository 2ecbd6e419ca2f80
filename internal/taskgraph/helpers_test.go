package taskgraph_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/zyoung51/on-http/internal/taskgraph"
)

// fakeRegistry serves a fixed snapshot. Queued errors are returned first,
// one per query.
type fakeRegistry struct {
	mu       sync.Mutex
	services []taskgraph.Service
	errs     []error
	calls    int
}

func (f *fakeRegistry) Services(_ context.Context) ([]taskgraph.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.services, nil
}

func (f *fakeRegistry) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func scheduler(id, addr string, port int) taskgraph.Service {
	return taskgraph.Service{
		ID:      id,
		Name:    taskgraph.DefaultServiceName,
		Tags:    []string{taskgraph.DefaultServiceTag},
		Address: addr,
		Port:    port,
	}
}

// recordedCall is one Invoke captured by recordingConn, with args as sent on the wire.
type recordedCall struct {
	Method taskgraph.Method
	Args   json.RawMessage
}

// recordingConn captures calls and answers with reply, or "[]" when reply is nil.
type recordingConn struct {
	endpoint taskgraph.Endpoint
	reply    func(method taskgraph.Method) (*taskgraph.Envelope, error)

	mu     sync.Mutex
	calls  []recordedCall
	closed bool
}

func (c *recordingConn) Invoke(_ context.Context, method taskgraph.Method, args any) (*taskgraph.Envelope, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.calls = append(c.calls, recordedCall{Method: method, Args: b})
	c.mu.Unlock()

	if c.reply == nil {
		return &taskgraph.Envelope{Response: "[]"}, nil
	}
	return c.reply(method)
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) recorded() []recordedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedCall(nil), c.calls...)
}

// countingDialer creates one recordingConn per Dial and counts dials.
type countingDialer struct {
	reply func(method taskgraph.Method) (*taskgraph.Envelope, error)
	err   error
	dials atomic.Int32

	mu    sync.Mutex
	conns []*recordingConn
}

func (d *countingDialer) Dial(_ context.Context, ep taskgraph.Endpoint) (taskgraph.Conn, error) {
	d.dials.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	c := &recordingConn{endpoint: ep, reply: d.reply}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *countingDialer) last() *recordingConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func replyWith(text string) func(taskgraph.Method) (*taskgraph.Envelope, error) {
	return func(taskgraph.Method) (*taskgraph.Envelope, error) {
		return &taskgraph.Envelope{Response: text}, nil
	}
}

// countingResolver wraps a Resolver and counts discoveries.
type countingResolver struct {
	inner *taskgraph.Resolver
	n     atomic.Int32
}

func (r *countingResolver) Discover(ctx context.Context) (taskgraph.Endpoint, error) {
	r.n.Add(1)
	return r.inner.Discover(ctx)
}

func newTestScheduler(reg *fakeRegistry, d *countingDialer, opts ...taskgraph.DispatcherOption) (*taskgraph.Scheduler, *countingResolver) {
	res := &countingResolver{inner: taskgraph.NewResolver(reg, taskgraph.WithRetry(1, 0))}
	disp := taskgraph.NewDispatcher(res, taskgraph.NewPool(d), opts...)
	return taskgraph.NewScheduler(disp), res
}
