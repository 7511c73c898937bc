package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/pkg/persist"
)

// writeConfig writes a config using the file backend in dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := config.New()
	cfg.Persist.Backend = config.BackendFile
	cfg.Persist.File.Dir = filepath.Join(dir, "snapshots")
	path := filepath.Join(dir, config.YAMLConfigFileName)
	require.NoError(t, cfg.SaveTo(path))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSnapshotCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	fs, err := persist.NewFileStore(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	data, err := persist.Encode(map[string]map[string]any{
		"cart":    {"lines": []any{map[string]any{"sku": "apple", "qty": 2}}},
		"counter": {"count": 3},
	})
	require.NoError(t, err)
	require.NoError(t, fs.Save(context.Background(), config.DefaultSnapshotKey, data))

	out, err := run(t, "snapshot", "show", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "version:  1")
	assert.Contains(t, out, "counter:")
	assert.Less(t, strings.Index(out, "cart:"), strings.Index(out, "counter:"))

	out, err = run(t, "snapshot", "get", "counter", "-c", cfgPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 3}`, out)

	out, err = run(t, "snapshot", "get", "cart", "lines.0.sku", "-c", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "\"apple\"\n", out)

	_, err = run(t, "snapshot", "get", "todos", "-c", cfgPath)
	assert.ErrorContains(t, err, `no store "todos"`)

	_, err = run(t, "snapshot", "show", "-c", cfgPath, "--key", "other")
	assert.ErrorContains(t, err, `no snapshot under key "other"`)

	out, err = run(t, "snapshot", "delete", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted snapshot")

	loaded, err := fs.Load(context.Background(), config.DefaultSnapshotKey)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	data, err := persist.Encode(map[string]map[string]any{"counter": {"count": 1}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, data, 0644))

	out, err := run(t, "snapshot", "validate", good)
	require.NoError(t, err)
	assert.Equal(t, "valid snapshot: version 1, 1 stores\n", out)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version": 9, "stores": {}}`), 0644))
	_, err = run(t, "snapshot", "validate", bad)
	assert.ErrorContains(t, err, "E021")
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "config", "init", dir, "--yaml")
	require.NoError(t, err)
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Persist.Backend)

	_, err = run(t, "config", "init", dir, "--yaml")
	assert.ErrorContains(t, err, "already exists")
	_, err = run(t, "config", "init", dir, "--yaml", "--force")
	assert.NoError(t, err)

	_, err = run(t, "config", "validate", filepath.Join(dir, config.YAMLConfigFileName))
	assert.NoError(t, err)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	cfg := config.New()

	cfg.Persist.Backend = config.BackendNone
	backend, cleanup, err := openBackend(ctx, cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, backend)

	cfg.Persist.Backend = config.BackendMemory
	backend, _, err = openBackend(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &persist.MemoryStore{}, backend)

	cfg.Persist.Backend = config.BackendFile
	cfg.Persist.File.Dir = t.TempDir()
	backend, _, err = openBackend(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &persist.FileStore{}, backend)

	cfg.Persist.Backend = "mongo"
	_, _, err = openBackend(ctx, cfg)
	assert.ErrorContains(t, err, "unknown persist backend")
}

func TestServerConfigOrigins(t *testing.T) {
	cfg := config.New()
	assert.Nil(t, serverConfig(cfg).CheckOrigin)

	cfg.Server.AllowedOrigins = []string{"https://shop.example.com"}
	check := serverConfig(cfg).CheckOrigin
	require.NotNil(t, check)

	req := httptest.NewRequest("GET", "http://api.example.com/ws", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))
	req.Header.Set("Origin", "http://api.example.com")
	assert.True(t, check(req))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "store", "cart")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vstore dev (none, built unknown)")
	assert.Contains(t, out, "Module:")
	assert.Contains(t, out, "github.com/vango-dev/vstore")
	assert.Contains(t, out, "format v1")
	assert.Contains(t, out, "[none memory file redis postgres s3 nats]")

	out, err = run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}
