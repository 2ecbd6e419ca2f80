package journal_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zyoung51/on-http/internal/journal"
	"github.com/zyoung51/on-http/internal/model"
	"github.com/zyoung51/on-http/internal/store"
	"github.com/zyoung51/on-http/internal/taskgraph"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ep := taskgraph.Endpoint{Address: "10.0.0.5", Port: 7788}

	tests := []struct {
		name     string
		info     taskgraph.CallInfo
		status   string
		kind     string
		endpoint string
	}{
		{
			name:     "success",
			info:     taskgraph.CallInfo{Method: taskgraph.MethodWorkflowsGet, Endpoint: ep, Duration: 42 * time.Millisecond},
			status:   model.StatusOK,
			endpoint: "10.0.0.5:7788",
		},
		{
			name:   "no scheduler",
			info:   taskgraph.CallInfo{Method: taskgraph.MethodWorkflowsPost, Err: fmt.Errorf("%w: none", taskgraph.ErrServiceUnavailable)},
			status: model.StatusError,
			kind:   "service_unavailable",
		},
		{
			name:     "transport",
			info:     taskgraph.CallInfo{Method: taskgraph.MethodGetTasksByID, Endpoint: ep, Err: &taskgraph.TransportError{Op: "rpc", Err: errors.New("refused")}},
			status:   model.StatusError,
			kind:     "transport",
			endpoint: "10.0.0.5:7788",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := journal.NewCall(tt.info, now)
			if c.ID == "" {
				t.Error("ID is empty")
			}
			if c.Method != tt.info.Method.String() {
				t.Errorf("Method = %q, want %q", c.Method, tt.info.Method)
			}
			if c.Status != tt.status {
				t.Errorf("Status = %q, want %q", c.Status, tt.status)
			}
			if c.ErrorKind != tt.kind {
				t.Errorf("ErrorKind = %q, want %q", c.ErrorKind, tt.kind)
			}
			if c.Endpoint != tt.endpoint {
				t.Errorf("Endpoint = %q, want %q", c.Endpoint, tt.endpoint)
			}
			if c.DurationMS != tt.info.Duration.Milliseconds() {
				t.Errorf("DurationMS = %d, want %d", c.DurationMS, tt.info.Duration.Milliseconds())
			}
			if !c.CreatedAt.Equal(now) {
				t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, now)
			}
		})
	}
}

func TestObserveCallPersistsAndPublishes(t *testing.T) {
	s := newTestStore(t)
	b := journal.NewBroker()
	j := journal.New(s, b, discard())

	ch, unsub := b.Subscribe("")
	defer unsub()

	j.ObserveCall(context.Background(), taskgraph.CallInfo{
		Method:   taskgraph.MethodWorkflowsGetGraphs,
		Endpoint: taskgraph.Endpoint{Address: "10.0.0.5", Port: 7788},
		Duration: 3 * time.Millisecond,
	})

	var published *model.Call
	select {
	case published = <-ch:
	case <-time.After(time.Second):
		t.Fatal("call was not published")
	}

	stored, err := s.GetCall(context.Background(), published.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if stored.Method != "workflowsGetGraphs" || stored.Status != model.StatusOK {
		t.Errorf("stored = %+v", stored)
	}
}

func TestObserveCallWithCancelledContext(t *testing.T) {
	s := newTestStore(t)
	j := journal.New(s, journal.NewBroker(), discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j.ObserveCall(ctx, taskgraph.CallInfo{Method: taskgraph.MethodWorkflowsGet, Err: context.Canceled})

	_, total, err := s.ListCalls(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want the cancelled call journaled", total)
	}
}

// failingStore rejects every insert.
type failingStore struct {
	store.Store
}

func (failingStore) InsertCall(context.Context, *model.Call) error {
	return errors.New("disk full")
}

func TestObserveCallStoreFailureStillPublishes(t *testing.T) {
	b := journal.NewBroker()
	j := journal.New(failingStore{}, b, discard())

	ch, unsub := b.Subscribe("")
	defer unsub()

	j.ObserveCall(context.Background(), taskgraph.CallInfo{Method: taskgraph.MethodWorkflowsGet})

	select {
	case c := <-ch:
		if c.Method != "workflowsGet" {
			t.Errorf("Method = %q, want workflowsGet", c.Method)
		}
	case <-time.After(time.Second):
		t.Fatal("call was not published after store failure")
	}
}

func TestJournalObservesDispatcher(t *testing.T) {
	s := newTestStore(t)
	j := journal.New(s, journal.NewBroker(), discard())

	reg := registryFunc(func(context.Context) ([]taskgraph.Service, error) { return nil, nil })
	disp := taskgraph.NewDispatcher(
		taskgraph.NewResolver(reg, taskgraph.WithRetry(1, 0)),
		taskgraph.NewPool(taskgraph.DialerFunc(func(context.Context, taskgraph.Endpoint) (taskgraph.Conn, error) {
			return nil, errors.New("unexpected dial")
		})),
		taskgraph.WithObserver(j),
	)

	_, err := taskgraph.NewScheduler(disp).WorkflowsGetAllTasks(context.Background())
	if !errors.Is(err, taskgraph.ErrServiceUnavailable) {
		t.Fatalf("error = %v, want ErrServiceUnavailable", err)
	}

	calls, _, err := s.ListCalls(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("journaled %d calls, want 1", len(calls))
	}
	if calls[0].ErrorKind != "service_unavailable" || calls[0].Endpoint != "" {
		t.Errorf("journaled %+v", calls[0])
	}
}

type registryFunc func(context.Context) ([]taskgraph.Service, error)

func (f registryFunc) Services(ctx context.Context) ([]taskgraph.Service, error) { return f(ctx) }
