package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultListenAddr      = ":8080"
	defaultDBPath          = "on-http.db"
	defaultConsulURL       = "consul://127.0.0.1:8500"
	defaultServiceName     = "taskgraph"
	defaultServiceTag      = "scheduler"
	defaultRPCTimeout      = 30 * time.Second
	defaultRegistryRetries = 3
	defaultRegistryBackoff = 100 * time.Millisecond

	envPrefix     = "ONHTTP"
	envConfigFile = "ONHTTP_CONFIG"

	keyListenAddr      = "listen_addr"
	keyDBPath          = "db_path"
	keyLogLevel        = "log_level"
	keyConsulURL       = "consul.url"
	keyServiceName     = "taskgraph.service"
	keyServiceTag      = "taskgraph.tag"
	keyRPCTimeout      = "rpc.timeout"
	keyRegistryRetries = "registry.retries"
	keyRegistryBackoff = "registry.backoff"
	keyActiveStates    = "workflow.active_states"
)

var defaultActiveStates = []string{"pending", "running"}

// Config holds application configuration.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// ConsulURL locates the registry agent, e.g. consul://127.0.0.1:8500.
	ConsulURL   string
	ServiceName string
	ServiceTag  string

	RPCTimeout      time.Duration
	RegistryRetries int
	RegistryBackoff time.Duration

	ActiveStates []string
}

// Load reads configuration from defaults, an optional YAML file named by
// ONHTTP_CONFIG and ONHTTP_* environment variables, in increasing precedence.
// Nested keys map to variables with dots replaced by underscores, so
// rpc.timeout is read from ONHTTP_RPC_TIMEOUT.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyDBPath, defaultDBPath)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyConsulURL, defaultConsulURL)
	v.SetDefault(keyServiceName, defaultServiceName)
	v.SetDefault(keyServiceTag, defaultServiceTag)
	v.SetDefault(keyRPCTimeout, defaultRPCTimeout)
	v.SetDefault(keyRegistryRetries, defaultRegistryRetries)
	v.SetDefault(keyRegistryBackoff, defaultRegistryBackoff)
	v.SetDefault(keyActiveStates, defaultActiveStates)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(envConfigFile); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ListenAddr:      v.GetString(keyListenAddr),
		DBPath:          v.GetString(keyDBPath),
		LogLevel:        parseLogLevel(v.GetString(keyLogLevel)),
		ConsulURL:       v.GetString(keyConsulURL),
		ServiceName:     v.GetString(keyServiceName),
		ServiceTag:      v.GetString(keyServiceTag),
		RPCTimeout:      v.GetDuration(keyRPCTimeout),
		RegistryRetries: v.GetInt(keyRegistryRetries),
		RegistryBackoff: v.GetDuration(keyRegistryBackoff),
		ActiveStates:    v.GetStringSlice(keyActiveStates),
	}

	if cfg.RPCTimeout < 0 {
		return Config{}, fmt.Errorf("%s must not be negative, got %s", keyRPCTimeout, cfg.RPCTimeout)
	}
	if cfg.RegistryRetries < 1 {
		return Config{}, fmt.Errorf("%s must be at least 1, got %d", keyRegistryRetries, cfg.RegistryRetries)
	}
	if len(cfg.ActiveStates) == 0 {
		cfg.ActiveStates = defaultActiveStates
	}

	return cfg, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
