package model

import "time"

// Call status constants.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Call is the journal record of one scheduler RPC dispatch.
type Call struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Failed reports whether the call ended in an error.
func (c *Call) Failed() bool {
	return c.Status == StatusError
}
