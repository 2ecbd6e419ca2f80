package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var allEnv = []string{
	envConfigFile,
	"ONHTTP_LISTEN_ADDR",
	"ONHTTP_DB_PATH",
	"ONHTTP_LOG_LEVEL",
	"ONHTTP_CONSUL_URL",
	"ONHTTP_TASKGRAPH_SERVICE",
	"ONHTTP_TASKGRAPH_TAG",
	"ONHTTP_RPC_TIMEOUT",
	"ONHTTP_REGISTRY_RETRIES",
	"ONHTTP_REGISTRY_BACKOFF",
	"ONHTTP_WORKFLOW_ACTIVE_STATES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Config{
		ListenAddr:      defaultListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		ConsulURL:       defaultConsulURL,
		ServiceName:     "taskgraph",
		ServiceTag:      "scheduler",
		RPCTimeout:      defaultRPCTimeout,
		RegistryRetries: 3,
		RegistryBackoff: 100 * time.Millisecond,
		ActiveStates:    []string{"pending", "running"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ONHTTP_LISTEN_ADDR", ":9090")
	t.Setenv("ONHTTP_DB_PATH", "/tmp/test.db")
	t.Setenv("ONHTTP_LOG_LEVEL", "debug")
	t.Setenv("ONHTTP_CONSUL_URL", "consul://consul.service:8500")
	t.Setenv("ONHTTP_TASKGRAPH_SERVICE", "execution-engine")
	t.Setenv("ONHTTP_RPC_TIMEOUT", "5s")
	t.Setenv("ONHTTP_REGISTRY_RETRIES", "5")
	t.Setenv("ONHTTP_WORKFLOW_ACTIVE_STATES", "pending running paused")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.ConsulURL != "consul://consul.service:8500" {
		t.Errorf("ConsulURL = %q", cfg.ConsulURL)
	}
	if cfg.ServiceName != "execution-engine" {
		t.Errorf("ServiceName = %q, want execution-engine", cfg.ServiceName)
	}
	if cfg.ServiceTag != "scheduler" {
		t.Errorf("ServiceTag = %q, want default scheduler", cfg.ServiceTag)
	}
	if cfg.RPCTimeout != 5*time.Second {
		t.Errorf("RPCTimeout = %v, want 5s", cfg.RPCTimeout)
	}
	if cfg.RegistryRetries != 5 {
		t.Errorf("RegistryRetries = %d, want 5", cfg.RegistryRetries)
	}
	if diff := cmp.Diff([]string{"pending", "running", "paused"}, cfg.ActiveStates); diff != "" {
		t.Errorf("ActiveStates mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "on-http.yaml")
	body := `listen_addr: ":7070"
taskgraph:
  service: scheduler-svc
  tag: primary
rpc:
  timeout: 2s
registry:
  backoff: 250ms
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(envConfigFile, path)
	t.Setenv("ONHTTP_TASKGRAPH_TAG", "override")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want :7070", cfg.ListenAddr)
	}
	if cfg.ServiceName != "scheduler-svc" {
		t.Errorf("ServiceName = %q, want scheduler-svc", cfg.ServiceName)
	}
	if cfg.ServiceTag != "override" {
		t.Errorf("ServiceTag = %q, want env to win over file", cfg.ServiceTag)
	}
	if cfg.RPCTimeout != 2*time.Second {
		t.Errorf("RPCTimeout = %v, want 2s", cfg.RPCTimeout)
	}
	if cfg.RegistryBackoff != 250*time.Millisecond {
		t.Errorf("RegistryBackoff = %v, want 250ms", cfg.RegistryBackoff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing file", map[string]string{envConfigFile: "/nonexistent/on-http.yaml"}},
		{"zero retries", map[string]string{"ONHTTP_REGISTRY_RETRIES": "0"}},
		{"negative timeout", map[string]string{"ONHTTP_RPC_TIMEOUT": "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("dispatch", "method", "workflowsGet")
	logger.Debug("suppressed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not a single JSON line: %v\noutput: %s", err, buf.String())
	}
	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["method"] != "workflowsGet" {
		t.Errorf("method = %v, want workflowsGet", entry["method"])
	}
}
