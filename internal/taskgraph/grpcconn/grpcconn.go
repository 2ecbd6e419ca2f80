// Package grpcconn carries scheduler calls over gRPC. Arguments and reply
// envelopes are encoded with a JSON codec registered under the "json"
// content-subtype, so any catalog method can be invoked by name without
// generated stubs.
package grpcconn

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/zyoung51/on-http/internal/taskgraph"
)

// ServicePath is the fully qualified gRPC service prefix of the scheduler.
const ServicePath = "/scheduler.Scheduler/"

// CodecName is the content-subtype of the JSON codec.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Compile-time interface satisfaction checks.
var (
	_ taskgraph.Conn   = (*Conn)(nil)
	_ taskgraph.Dialer = (*Dialer)(nil)
)

// Conn is a taskgraph.Conn backed by a gRPC client connection.
type Conn struct {
	cc *grpc.ClientConn
}

// Invoke performs a unary call of ServicePath+method.
func (c *Conn) Invoke(ctx context.Context, method taskgraph.Method, args any) (*taskgraph.Envelope, error) {
	var env taskgraph.Envelope
	if err := c.cc.Invoke(ctx, ServicePath+method.String(), args, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Close tears down the client connection.
func (c *Conn) Close() error {
	return c.cc.Close()
}

// Target returns the dial target of the connection.
func (c *Conn) Target() string {
	return c.cc.Target()
}

// Dialer creates gRPC connections to scheduler endpoints. Connections are
// established lazily by gRPC on first use.
type Dialer struct {
	opts []grpc.DialOption
}

// NewDialer returns a Dialer using plaintext transport and the JSON codec.
// Extra options are appended after the defaults.
func NewDialer(opts ...grpc.DialOption) *Dialer {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	return &Dialer{opts: append(base, opts...)}
}

// Dial creates a client connection bound to ep.
func (d *Dialer) Dial(_ context.Context, ep taskgraph.Endpoint) (taskgraph.Conn, error) {
	cc, err := grpc.NewClient(ep.Key(), d.opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client: %w", err)
	}
	return &Conn{cc: cc}, nil
}
