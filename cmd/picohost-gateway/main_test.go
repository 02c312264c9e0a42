// ABOUTME: Tests for CLI helpers: config path resolution, config fallback, logging, and ask.
// ABOUTME: The ask client runs against an httptest server standing in for the gateway.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/picohost-gateway/internal/config"
	"github.com/2389/picohost-gateway/internal/gateway"
)

func TestGetConfigPath(t *testing.T) {
	t.Run("env var wins", func(t *testing.T) {
		t.Setenv("PICOHOST_CONFIG", "/tmp/custom.yaml")
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

		path, explicit := getConfigPath()
		assert.Equal(t, "/tmp/custom.yaml", path)
		assert.True(t, explicit)
	})

	t.Run("xdg config home", func(t *testing.T) {
		t.Setenv("PICOHOST_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

		path, explicit := getConfigPath()
		assert.Equal(t, filepath.Join("/tmp/xdg", "picohost", "gateway.yaml"), path)
		assert.False(t, explicit)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")

	t.Run("missing default file falls back to defaults", func(t *testing.T) {
		cfg, err := loadConfig(missing, false)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := loadConfig(missing, true)
		assert.Error(t, err)
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		path := filepath.Join(dir, "gateway.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0600))

		cfg, err := loadConfig(path, true)
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
	})
}

func TestClientBaseURL(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "http://127.0.0.1:18790", clientBaseURL(cfg))

	cfg.Server.Host = "gateway.local"
	assert.Equal(t, "http://gateway.local:18790", clientBaseURL(cfg))
}

func TestNewLogger(t *testing.T) {
	color.NoColor = true

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
		logger.With("component", "test").Info("hello", "n", 1)
		logger.Debug("hidden")

		out := buf.String()
		assert.Contains(t, out, "INF hello component=test n=1")
		assert.NotContains(t, out, "hidden")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
		logger.Debug("hello", "n", 1)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "DEBUG", entry["level"])
	})
}

func TestAsk(t *testing.T) {
	t.Run("returns output", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req gateway.AgentRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			output := "echo: " + req.Message
			_ = json.NewEncoder(w).Encode(gateway.AgentResponse{OK: true, Output: &output})
		}))
		defer srv.Close()

		output, err := ask(context.Background(), srv.Client(), srv.URL, "hi")
		require.NoError(t, err)
		assert.Equal(t, "echo: hi", output)
	})

	t.Run("surfaces gateway errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGatewayTimeout)
			_ = json.NewEncoder(w).Encode(gateway.AgentResponse{OK: false, Error: "Agent request timed out"})
		}))
		defer srv.Close()

		_, err := ask(context.Background(), srv.Client(), srv.URL, "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "504")
		assert.Contains(t, err.Error(), "Agent request timed out")
	})
}
