// testserver starts an on-http API server wired to an in-process stub
// scheduler for E2E testing. No registry agent is needed.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"

	"github.com/zyoung51/on-http/internal/api"
	"github.com/zyoung51/on-http/internal/journal"
	"github.com/zyoung51/on-http/internal/store"
	"github.com/zyoung51/on-http/internal/taskgraph"
	"github.com/zyoung51/on-http/internal/taskgraph/grpcconn"
	"github.com/zyoung51/on-http/internal/workflow"
)

// staticRegistry always reports the stub scheduler.
type staticRegistry []taskgraph.Service

func (r staticRegistry) Services(context.Context) ([]taskgraph.Service, error) {
	return r, nil
}

var seedGraphs = []string{
	`{"injectableName":"Graph.Noop","friendlyName":"No-op graph","tasks":[{"label":"noop","taskName":"Task.Base.Noop"}]}`,
	`{"injectableName":"Graph.Discovery","friendlyName":"Discovery","tasks":[{"label":"bootstrap","taskName":"Task.Base.Noop"}]}`,
}

var seedTasks = []string{
	`{"injectableName":"Task.Base.Noop","friendlyName":"No-op","implementsTask":"Task.Base.Noop","options":{}}`,
}

func main() {
	addr := ":8080"
	if v := os.Getenv("ONHTTP_LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	sched := newMemScheduler()
	for _, def := range seedGraphs {
		if _, err := putDefinition(sched.graphs, def); err != nil {
			log.Fatalf("seed graph: %v", err)
		}
	}
	for _, def := range seedTasks {
		if _, err := putDefinition(sched.tasks, def); err != nil {
			log.Fatalf("seed task: %v", err)
		}
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen for stub scheduler: %v", err)
	}
	grpcSrv := grpcconn.NewServer(sched.Handle)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("stub scheduler stopped", "error", err)
		}
	}()
	defer grpcSrv.Stop()

	port := lis.Addr().(*net.TCPAddr).Port
	reg := staticRegistry{{
		ID:      "taskgraph-stub",
		Name:    taskgraph.DefaultServiceName,
		Tags:    []string{taskgraph.DefaultServiceTag},
		Address: "127.0.0.1",
		Port:    port,
	}}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	pool := taskgraph.NewPool(grpcconn.NewDialer())
	defer pool.Close()

	broker := journal.NewBroker()
	dispatcher := taskgraph.NewDispatcher(taskgraph.NewResolver(reg), pool,
		taskgraph.WithObserver(journal.New(db, broker, logger)),
		taskgraph.WithLogger(logger),
	)
	wf := workflow.NewService(taskgraph.NewScheduler(dispatcher), nil)
	srv := api.NewServer(addr, wf, pool, db, broker, logger)

	logger.Info("testserver: starting",
		"addr", addr,
		"scheduler_port", port,
		"graphs", len(seedGraphs),
		"tasks", len(seedTasks),
	)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
