package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads and points the env file at a
// path that does not exist.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envListenAddr, envDBPath, envLogLevel, envArgoEndpoint, envArgoNamespace,
		envArgoToken, envArgoInsecure, envArgoTimeout, envMDTEndpoint, envClientImage,
	} {
		t.Setenv(key, "")
	}
	t.Setenv(envEnvFile, filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.ArgoEndpoint != defaultArgoEndpoint {
		t.Errorf("ArgoEndpoint = %q, want %q", cfg.ArgoEndpoint, defaultArgoEndpoint)
	}
	if cfg.ArgoNamespace != defaultArgoNamespace {
		t.Errorf("ArgoNamespace = %q, want %q", cfg.ArgoNamespace, defaultArgoNamespace)
	}
	if !cfg.ArgoInsecure {
		t.Error("ArgoInsecure = false, want true")
	}
	if cfg.ArgoTimeout != defaultArgoTimeout {
		t.Errorf("ArgoTimeout = %v, want %v", cfg.ArgoTimeout, defaultArgoTimeout)
	}
	if cfg.MDTEndpoint != DefaultMDTEndpoint || cfg.ClientImage != DefaultClientImage {
		t.Errorf("MDTEndpoint, ClientImage = %q, %q, want exported defaults", cfg.MDTEndpoint, cfg.ClientImage)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envArgoEndpoint, "https://argo.example:2746/")
	t.Setenv(envArgoNamespace, "mdt")
	t.Setenv(envArgoToken, "secret")
	t.Setenv(envArgoInsecure, "false")
	t.Setenv(envArgoTimeout, "5s")
	t.Setenv(envMDTEndpoint, "http://mdt:12985/instance-manager")
	t.Setenv(envClientImage, "mdt-client:1.2")

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
	if cfg.ArgoEndpoint != "https://argo.example:2746" {
		t.Errorf("ArgoEndpoint = %q, want trailing slash trimmed", cfg.ArgoEndpoint)
	}
	if cfg.ArgoNamespace != "mdt" || cfg.ArgoToken != "secret" {
		t.Errorf("ArgoNamespace, ArgoToken = %q, %q", cfg.ArgoNamespace, cfg.ArgoToken)
	}
	if cfg.ArgoInsecure {
		t.Error("ArgoInsecure = true, want false")
	}
	if cfg.ArgoTimeout != 5*time.Second {
		t.Errorf("ArgoTimeout = %v, want 5s", cfg.ArgoTimeout)
	}
	if cfg.MDTEndpoint != "http://mdt:12985/instance-manager" || cfg.ClientImage != "mdt-client:1.2" {
		t.Errorf("MDTEndpoint, ClientImage = %q, %q", cfg.MDTEndpoint, cfg.ClientImage)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{envArgoInsecure, "maybe"},
		{envArgoTimeout, "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q: expected error", tt.key, tt.value)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "env.file")
	content := `# workflow manager
MDT_WF_ARGO_NAMESPACE=from-file
export MDT_WF_CLIENT_IMAGE="quoted:1"

MDT_WF_DB_PATH='/data/wf.db'
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(envEnvFile, path)
	t.Setenv(envDBPath, "/set/by/env.db")
	// Unset, but registered with t.Setenv so the values the file sets are
	// restored afterwards.
	t.Setenv(envArgoNamespace, "")
	os.Unsetenv(envArgoNamespace)
	t.Setenv(envClientImage, "")
	os.Unsetenv(envClientImage)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ArgoNamespace != "from-file" {
		t.Errorf("ArgoNamespace = %q, want %q", cfg.ArgoNamespace, "from-file")
	}
	if cfg.ClientImage != "quoted:1" {
		t.Errorf("ClientImage = %q, want %q", cfg.ClientImage, "quoted:1")
	}
	if cfg.DBPath != "/set/by/env.db" {
		t.Errorf("DBPath = %q, want env value to win", cfg.DBPath)
	}
}

func TestLoadEnvFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.file")
	if err := os.WriteFile(path, []byte("NOT A PAIR\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := LoadEnvFile(path); err == nil {
		t.Error("expected error for malformed line")
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
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
