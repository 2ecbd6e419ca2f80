package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, body := do(t, ts, "GET", "/v1/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.Endpoints != 0 {
		t.Errorf("endpoints = %d, want 0", stats.Endpoints)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for i := 0; i < 3; i++ {
		do(t, ts, "GET", "/api/2.0/workflows/graphs", "")
	}
	srv.registry.set(false)
	do(t, ts, "GET", "/api/2.0/tasks/t1", "")

	resp, body := do(t, ts, "GET", "/v1/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus["ok"] != 3 {
		t.Errorf("by_status[ok] = %d, want 3", stats.ByStatus["ok"])
	}
	if stats.ByStatus["error"] != 1 {
		t.Errorf("by_status[error] = %d, want 1", stats.ByStatus["error"])
	}
	if stats.ByMethod["workflowsGetGraphs"] != 3 {
		t.Errorf("by_method[workflowsGetGraphs] = %d, want 3", stats.ByMethod["workflowsGetGraphs"])
	}
	if stats.Endpoints != 1 {
		t.Errorf("endpoints = %d, want 1 cached connection", stats.Endpoints)
	}
}

func TestListEndpoints(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, body := do(t, ts, "GET", "/v1/endpoints", "")
	var before endpointsResponse
	json.Unmarshal(body, &before)
	if before.Endpoints == nil || len(before.Endpoints) != 0 {
		t.Errorf("endpoints before dispatch = %v, want empty list", before.Endpoints)
	}

	do(t, ts, "GET", "/api/2.0/workflows/graphs", "")
	do(t, ts, "GET", "/api/2.0/workflows/tasks", "")

	_, body = do(t, ts, "GET", "/v1/endpoints", "")
	var after endpointsResponse
	json.Unmarshal(body, &after)
	if len(after.Endpoints) != 1 || after.Endpoints[0] != "10.0.0.5:7788" {
		t.Errorf("endpoints = %v, want [10.0.0.5:7788]", after.Endpoints)
	}
}
