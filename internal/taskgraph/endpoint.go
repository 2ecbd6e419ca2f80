package taskgraph

import (
	"net"
	"slices"
	"strconv"
)

// Endpoint is the network location of one live scheduler instance.
type Endpoint struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Key returns the canonical "address:port" form used to key cached connections.
func (e Endpoint) Key() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Key()
}

// Service is one entry of a registry snapshot.
type Service struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Tags    []string `json:"tags"`
	Address string   `json:"address"`
	Port    int      `json:"port"`
}

// HasTag reports whether the service carries the given tag.
func (s Service) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// Endpoint returns the service's network location.
func (s Service) Endpoint() Endpoint {
	return Endpoint{Address: s.Address, Port: s.Port}
}
