package taskgraph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Method names a remote operation of the scheduler's RPC catalog.
type Method string

// Scheduler RPC catalog.
const (
	MethodWorkflowsGetGraphs          Method = "workflowsGetGraphs"
	MethodWorkflowsGetGraphsByName    Method = "workflowsGetGraphsByName"
	MethodWorkflowsPutGraphs          Method = "workflowsPutGraphs"
	MethodWorkflowsDeleteGraphsByName Method = "workflowsDeleteGraphsByName"
	MethodWorkflowsGet                Method = "workflowsGet"
	MethodWorkflowsPost               Method = "workflowsPost"
	MethodWorkflowsGetByInstanceID    Method = "workflowsGetByInstanceId"
	MethodWorkflowsAction             Method = "workflowsAction"
	MethodWorkflowsDeleteByInstanceID Method = "workflowsDeleteByInstanceId"
	MethodWorkflowsPutTask            Method = "workflowsPutTask"
	MethodWorkflowsGetAllTasks        Method = "workflowsGetAllTasks"
	MethodWorkflowsGetTasksByName     Method = "workflowsGetTasksByName"
	MethodWorkflowsDeleteTasksByName  Method = "workflowsDeleteTasksByName"
	MethodGetTasksByID                Method = "getTasksById"
)

// Methods lists the full catalog.
var Methods = []Method{
	MethodWorkflowsGetGraphs,
	MethodWorkflowsGetGraphsByName,
	MethodWorkflowsPutGraphs,
	MethodWorkflowsDeleteGraphsByName,
	MethodWorkflowsGet,
	MethodWorkflowsPost,
	MethodWorkflowsGetByInstanceID,
	MethodWorkflowsAction,
	MethodWorkflowsDeleteByInstanceID,
	MethodWorkflowsPutTask,
	MethodWorkflowsGetAllTasks,
	MethodWorkflowsGetTasksByName,
	MethodWorkflowsDeleteTasksByName,
	MethodGetTasksByID,
}

func (m Method) String() string {
	return string(m)
}

// Discoverer resolves the endpoint for the next call.
type Discoverer interface {
	Discover(ctx context.Context) (Endpoint, error)
}

// CallInfo describes one completed dispatch.
type CallInfo struct {
	Method   Method
	Endpoint Endpoint // zero when discovery failed
	Duration time.Duration
	Err      error
}

// Observer is notified after every dispatch, successful or not.
// ObserveCall runs on the dispatching goroutine and must not block for long.
type Observer interface {
	ObserveCall(ctx context.Context, info CallInfo)
}

// Dispatcher is the single call path into the scheduler:
// discover, get a pooled connection, invoke, decode.
type Dispatcher struct {
	resolver  Discoverer
	pool      *Pool
	timeout   time.Duration
	observers []Observer
	logger    *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each dispatch whose context carries no deadline.
// Zero disables the bound.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) { dp.timeout = d }
}

// WithObserver registers an observer for completed dispatches.
func WithObserver(o Observer) DispatcherOption {
	return func(dp *Dispatcher) { dp.observers = append(dp.observers, o) }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(dp *Dispatcher) { dp.logger = l }
}

// NewDispatcher creates a Dispatcher that owns the given pool.
func NewDispatcher(r Discoverer, p *Pool, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		resolver: r,
		pool:     p,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Pool returns the dispatcher's connection pool.
func (d *Dispatcher) Pool() *Pool {
	return d.pool
}

// Invoke calls method on a discovered scheduler with args as the single
// argument and decodes the envelope's JSON payload into out, which must be a
// non-nil pointer. Errors are returned without retry.
func (d *Dispatcher) Invoke(ctx context.Context, method Method, args any, out any) error {
	start := time.Now()
	ep, err := d.invoke(ctx, method, args, out)
	info := CallInfo{
		Method:   method,
		Endpoint: ep,
		Duration: time.Since(start),
		Err:      err,
	}

	rpcCallsTotal.WithLabelValues(method.String(), resultLabel(err)).Inc()
	rpcCallDuration.WithLabelValues(method.String()).Observe(info.Duration.Seconds())
	if err != nil {
		d.logger.Error("taskgraph rpc failed",
			"method", method,
			"endpoint", ep.Key(),
			"error", err,
		)
	} else {
		d.logger.Debug("taskgraph rpc",
			"method", method,
			"endpoint", ep.Key(),
			"duration_ms", info.Duration.Milliseconds(),
		)
	}
	for _, o := range d.observers {
		o.ObserveCall(ctx, info)
	}

	return err
}

func (d *Dispatcher) invoke(ctx context.Context, method Method, args any, out any) (Endpoint, error) {
	if d.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
	}

	ep, err := d.resolver.Discover(ctx)
	if err != nil {
		return Endpoint{}, err
	}

	conn, err := d.pool.Get(ctx, ep)
	if err != nil {
		return ep, &TransportError{Op: "rpc", Err: err}
	}

	env, err := conn.Invoke(ctx, method, args)
	if err != nil {
		return ep, &TransportError{Op: "rpc", Err: err}
	}
	if env == nil {
		return ep, &DecodeError{Method: method, Err: errors.New("empty envelope")}
	}

	if err := json.Unmarshal([]byte(env.Response), out); err != nil {
		return ep, &DecodeError{Method: method, Err: err}
	}
	return ep, nil
}
