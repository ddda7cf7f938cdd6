package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr    = ":12985"
	defaultDBPath        = "mdt-workflow.db"
	defaultArgoEndpoint  = "https://localhost:2746"
	defaultArgoNamespace = "argo"
	defaultArgoTimeout   = 30 * time.Second
	defaultEnvFile       = "env.file"

	envListenAddr    = "MDT_WF_LISTEN_ADDR"
	envDBPath        = "MDT_WF_DB_PATH"
	envLogLevel      = "MDT_WF_LOG_LEVEL"
	envArgoEndpoint  = "MDT_WF_ARGO_ENDPOINT"
	envArgoNamespace = "MDT_WF_ARGO_NAMESPACE"
	envArgoToken     = "MDT_WF_ARGO_TOKEN"
	envArgoInsecure  = "MDT_WF_ARGO_INSECURE"
	envArgoTimeout   = "MDT_WF_ARGO_TIMEOUT"
	envMDTEndpoint   = "MDT_WF_MDT_ENDPOINT"
	envClientImage   = "MDT_WF_CLIENT_IMAGE"
	envEnvFile       = "MDT_WF_ENV_FILE"
)

// Defaults handed to submitted workflows when neither the environment nor
// the caller names an MDT endpoint or runner image.
const (
	DefaultMDTEndpoint = "http://localhost:12985/instance-manager"
	DefaultClientImage = "kwlee0220/mdt-client:latest"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	ArgoEndpoint  string
	ArgoNamespace string
	ArgoToken     string
	ArgoInsecure  bool
	ArgoTimeout   time.Duration

	// MDTEndpoint and ClientImage are the defaults passed to submitted
	// workflows as the mdt-endpoint and mdt-client-image parameters.
	MDTEndpoint string
	ClientImage string
}

// Load reads configuration from environment variables with sensible defaults.
// Variables named in the env file are applied first; see LoadEnvFile.
func Load() (Config, error) {
	envFile := os.Getenv(envEnvFile)
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := LoadEnvFile(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		ArgoEndpoint:  defaultArgoEndpoint,
		ArgoNamespace: defaultArgoNamespace,
		ArgoInsecure:  true,
		ArgoTimeout:   defaultArgoTimeout,
		MDTEndpoint:   DefaultMDTEndpoint,
		ClientImage:   DefaultClientImage,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envArgoEndpoint); v != "" {
		cfg.ArgoEndpoint = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(envArgoNamespace); v != "" {
		cfg.ArgoNamespace = v
	}
	cfg.ArgoToken = os.Getenv(envArgoToken)
	if v := os.Getenv(envArgoInsecure); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", envArgoInsecure, err)
		}
		cfg.ArgoInsecure = b
	}
	if v := os.Getenv(envArgoTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", envArgoTimeout, err)
		}
		cfg.ArgoTimeout = d
	}
	if v := os.Getenv(envMDTEndpoint); v != "" {
		cfg.MDTEndpoint = v
	}
	if v := os.Getenv(envClientImage); v != "" {
		cfg.ClientImage = v
	}

	return cfg, nil
}

// LoadEnvFile sets the KEY=VALUE pairs of path as environment variables.
// Variables already present in the environment are left alone. Blank lines
// and lines starting with # are skipped; values may be quoted.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("env file %s:%d: expected KEY=VALUE", path, n)
		}
		value = unquote(strings.TrimSpace(value))

		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
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
