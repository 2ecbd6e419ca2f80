package grpcconn

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zyoung51/on-http/internal/taskgraph"
)

// HandlerFunc serves one scheduler call. It receives the raw argument object
// and returns the JSON text placed in the reply envelope.
type HandlerFunc func(ctx context.Context, method taskgraph.Method, args json.RawMessage) (string, error)

// NewServer returns a gRPC server that routes every ServicePath method to h.
// It stands in for the scheduler in tests and in the development server.
func NewServer(h HandlerFunc, opts ...grpc.ServerOption) *grpc.Server {
	stream := func(_ any, ss grpc.ServerStream) error {
		full, ok := grpc.MethodFromServerStream(ss)
		if !ok {
			return status.Error(codes.Internal, "method missing from stream")
		}
		method, found := strings.CutPrefix(full, ServicePath)
		if !found {
			return status.Errorf(codes.Unimplemented, "unknown service for %s", full)
		}

		var args json.RawMessage
		if err := ss.RecvMsg(&args); err != nil {
			return err
		}

		resp, err := h(ss.Context(), taskgraph.Method(method), args)
		if err != nil {
			return err
		}
		return ss.SendMsg(&taskgraph.Envelope{Response: resp})
	}

	return grpc.NewServer(append(opts, grpc.UnknownServiceHandler(stream))...)
}
