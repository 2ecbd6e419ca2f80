package taskgraph

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable is returned when no registered service matches the
// scheduler's name and role tag.
var ErrServiceUnavailable = errors.New("service unavailable")

// TransportError reports a failure of the registry query or of the RPC channel.
// Err is the transport's error, unchanged.
type TransportError struct {
	Op  string // "registry" or "rpc"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a response envelope whose payload is not valid JSON for
// the expected result.
type DecodeError struct {
	Method Method
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Method, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies err for metrics and the call journal. It returns ""
// for a nil error.
func ErrorKind(err error) string {
	var te *TransportError
	var de *DecodeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &de):
		return "decode"
	default:
		return "other"
	}
}
