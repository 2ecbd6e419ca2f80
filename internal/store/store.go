package store

import (
	"context"

	"github.com/zyoung51/on-http/internal/model"
)

// CallStats holds aggregate dispatch statistics.
type CallStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByMethod map[string]int `json:"count_by_method"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for the call journal.
type Store interface {
	InsertCall(ctx context.Context, c *model.Call) error
	GetCall(ctx context.Context, id string) (*model.Call, error)
	ListCalls(ctx context.Context, limit, offset int) ([]*model.Call, int, error)
	GetCallStats(ctx context.Context) (*CallStats, error)
	Close() error
}
