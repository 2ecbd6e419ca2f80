package main

import (
	"log"
	"os"

	"github.com/zyoung51/on-http/internal/api"
	"github.com/zyoung51/on-http/internal/config"
	"github.com/zyoung51/on-http/internal/journal"
	"github.com/zyoung51/on-http/internal/store"
	"github.com/zyoung51/on-http/internal/taskgraph"
	"github.com/zyoung51/on-http/internal/taskgraph/consul"
	"github.com/zyoung51/on-http/internal/taskgraph/grpcconn"
	"github.com/zyoung51/on-http/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("on-http: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"consul_url", cfg.ConsulURL,
		"service", cfg.ServiceName,
		"tag", cfg.ServiceTag,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	registry, err := consul.FromURL(cfg.ConsulURL)
	if err != nil {
		log.Fatalf("failed to create registry client: %v", err)
	}

	resolver := taskgraph.NewResolver(registry,
		taskgraph.WithService(cfg.ServiceName, cfg.ServiceTag),
		taskgraph.WithRetry(cfg.RegistryRetries, cfg.RegistryBackoff),
		taskgraph.WithResolverLogger(logger),
	)

	pool := taskgraph.NewPool(grpcconn.NewDialer())
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("close scheduler connections", "error", err)
		}
	}()

	broker := journal.NewBroker()
	dispatcher := taskgraph.NewDispatcher(resolver, pool,
		taskgraph.WithTimeout(cfg.RPCTimeout),
		taskgraph.WithObserver(journal.New(db, broker, logger)),
		taskgraph.WithLogger(logger),
	)
	workflows := workflow.NewService(taskgraph.NewScheduler(dispatcher), cfg.ActiveStates)

	srv := api.NewServer(cfg.ListenAddr, workflows, pool, db, broker, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
