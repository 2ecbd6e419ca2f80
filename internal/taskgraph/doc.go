// Package taskgraph is the gateway to the remotely deployed taskgraph scheduler.
// It discovers the scheduler through a service registry, keeps one transport
// connection per discovered endpoint, and exposes the scheduler's RPC catalog
// as typed methods over a single generic dispatch path.
package taskgraph
