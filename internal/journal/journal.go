package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/zyoung51/on-http/internal/model"
	"github.com/zyoung51/on-http/internal/store"
	"github.com/zyoung51/on-http/internal/taskgraph"
)

// persistTimeout bounds a single journal insert.
const persistTimeout = 5 * time.Second

var _ taskgraph.Observer = (*Journal)(nil)

// Journal persists and publishes dispatch records.
type Journal struct {
	store  store.Store
	broker *Broker
	logger *slog.Logger
}

// New creates a Journal writing to s and publishing to b.
func New(s store.Store, b *Broker, logger *slog.Logger) *Journal {
	return &Journal{store: s, broker: b, logger: logger}
}

// Broker returns the broker calls are published to.
func (j *Journal) Broker() *Broker {
	return j.broker
}

// ObserveCall records info. A failed insert is logged and the call is still
// published.
func (j *Journal) ObserveCall(ctx context.Context, info taskgraph.CallInfo) {
	c := NewCall(info, time.Now().UTC())

	// The caller's context may already be done when the dispatch failed on it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := j.store.InsertCall(ctx, c); err != nil {
		j.logger.Error("failed to journal call",
			"call_id", c.ID,
			"method", c.Method,
			"error", err,
		)
	}
	j.broker.Publish(c)
}

// NewCall converts a dispatch observation into a journal record.
func NewCall(info taskgraph.CallInfo, now time.Time) *model.Call {
	c := &model.Call{
		ID:         model.NewID(),
		Method:     info.Method.String(),
		Status:     model.StatusOK,
		DurationMS: info.Duration.Milliseconds(),
		CreatedAt:  now,
	}
	if info.Endpoint.Address != "" {
		c.Endpoint = info.Endpoint.Key()
	}
	if info.Err != nil {
		c.Status = model.StatusError
		c.ErrorKind = taskgraph.ErrorKind(info.Err)
		c.Error = info.Err.Error()
	}
	return c
}
