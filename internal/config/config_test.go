package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, DefaultAddress)
	}
	if cfg.Persist.Backend != BackendMemory {
		t.Errorf("Persist.Backend = %q, want %q", cfg.Persist.Backend, BackendMemory)
	}
	if cfg.Persist.Key != DefaultSnapshotKey {
		t.Errorf("Persist.Key = %q, want %q", cfg.Persist.Key, DefaultSnapshotKey)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("Expected error for missing config")
	}
	if !strings.Contains(err.Error(), "E031") {
		t.Errorf("Expected E031 error, got: %v", err)
	}

	configJSON := `{
  "server": {
    "address": "127.0.0.1:9090"
  },
  "persist": {
    "backend": "redis",
    "key": "shop",
    "redis": {
      "addrs": ["redis:6379"],
      "ttl": "24h"
    }
  },
  "log": {
    "format": "json"
  }
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Address != "127.0.0.1:9090" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, "127.0.0.1:9090")
	}
	if cfg.Persist.Backend != BackendRedis {
		t.Errorf("Persist.Backend = %q, want %q", cfg.Persist.Backend, BackendRedis)
	}
	if cfg.Persist.Key != "shop" {
		t.Errorf("Persist.Key = %q, want %q", cfg.Persist.Key, "shop")
	}
	if cfg.RedisTTL() != 24*time.Hour {
		t.Errorf("RedisTTL() = %v, want %v", cfg.RedisTTL(), 24*time.Hour)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	// Untouched sections keep their defaults.
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Persist.Interval != DefaultSaveInterval {
		t.Errorf("Persist.Interval = %q, want %q", cfg.Persist.Interval, DefaultSaveInterval)
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configYAML := `name: shop
server:
  address: ":7000"
  allowedOrigins:
    - https://shop.example.com
persist:
  backend: s3
  s3:
    bucket: snapshots
    prefix: prod/
tracing:
  enabled: true
`
	if err := os.WriteFile(filepath.Join(tmpDir, YAMLConfigFileName), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Name != "shop" {
		t.Errorf("Name = %q, want %q", cfg.Name, "shop")
	}
	if cfg.Server.Address != ":7000" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":7000")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://shop.example.com" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Persist.S3.Bucket != "snapshots" || cfg.Persist.S3.Prefix != "prod/" {
		t.Errorf("Persist.S3 = %+v", cfg.Persist.S3)
	}
	if !cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled should be true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestLoadPrefersJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{"name":"json"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, YAMLConfigFileName), []byte("name: yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Name != "json" {
		t.Errorf("Name = %q, want %q", cfg.Name, "json")
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	// Write invalid JSON
	if err := os.WriteFile(configPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "E030") {
		t.Errorf("Expected E030 error, got: %v", err)
	}
}

func TestSave(t *testing.T) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), name)

			cfg := New()
			cfg.Persist.Backend = BackendFile
			cfg.Persist.File.Dir = "data"

			// Save should fail without configPath set
			if err := cfg.Save(); err == nil {
				t.Error("Expected error when saving without path")
			}

			if err := cfg.SaveTo(configPath); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}

			loaded, err := LoadFile(configPath)
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if loaded.Persist.Backend != BackendFile {
				t.Errorf("Persist.Backend = %q, want %q", loaded.Persist.Backend, BackendFile)
			}

			loaded.Persist.File.Dir = "other"
			if err := loaded.Save(); err != nil {
				t.Fatalf("Save error: %v", err)
			}

			reloaded, err := LoadFile(configPath)
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if reloaded.Persist.File.Dir != "other" {
				t.Errorf("Persist.File.Dir = %q, want %q", reloaded.Persist.File.Dir, "other")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Persist.Backend = "mongo" }, "unknown persist backend"},
		{"postgres without dsn", func(c *Config) { c.Persist.Backend = BackendPostgres }, "persist.postgres.dsn"},
		{"s3 without bucket", func(c *Config) { c.Persist.Backend = BackendS3 }, "persist.s3.bucket"},
		{"redis without addrs", func(c *Config) {
			c.Persist.Backend = BackendRedis
			c.Persist.Redis.Addrs = nil
		}, "persist.redis.addrs"},
		{"nats without bucket", func(c *Config) {
			c.Persist.Backend = BackendNATS
			c.Persist.NATS.Bucket = ""
		}, "persist.nats"},
		{"bad interval", func(c *Config) { c.Persist.Interval = "soon" }, "persist.interval"},
		{"negative ttl", func(c *Config) { c.Persist.Redis.TTL = "-1s" }, "persist.redis.ttl"},
		{"negative burst", func(c *Config) { c.Persist.Burst = -1 }, "persist.burst"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), "E030") {
				t.Errorf("Expected E030 error, got: %v", err)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := New()
	if cfg.ShutdownTimeout() != 10*time.Second {
		t.Errorf("ShutdownTimeout() = %v", cfg.ShutdownTimeout())
	}
	if cfg.SaveInterval() != time.Second {
		t.Errorf("SaveInterval() = %v", cfg.SaveInterval())
	}
	if cfg.RedisTTL() != 0 {
		t.Errorf("RedisTTL() = %v", cfg.RedisTTL())
	}

	cfg.Persist.Interval = "250ms"
	if cfg.SaveInterval() != 250*time.Millisecond {
		t.Errorf("SaveInterval() = %v", cfg.SaveInterval())
	}
	cfg.Persist.Interval = "garbage"
	if cfg.SaveInterval() != time.Second {
		t.Errorf("SaveInterval() should fall back, got %v", cfg.SaveInterval())
	}
}

func TestSnapshotDir(t *testing.T) {
	cfg := New()
	cfg.configPath = filepath.Join("/srv/app", ConfigFileName)

	if got := cfg.SnapshotDir(); got != filepath.Join("/srv/app", "snapshots") {
		t.Errorf("SnapshotDir() = %q", got)
	}
	cfg.Persist.File.Dir = "/var/lib/vstore"
	if got := cfg.SnapshotDir(); got != "/var/lib/vstore" {
		t.Errorf("SnapshotDir() = %q", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, DefaultAddress)
	}
	if cfg.Persist.Backend != BackendNone {
		t.Errorf("Persist.Backend = %q, want %q", cfg.Persist.Backend, BackendNone)
	}
	if cfg.Persist.Burst != 1 {
		t.Errorf("Persist.Burst = %d, want 1", cfg.Persist.Burst)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, YAMLConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	// Create nested directory structure
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Should fail when no config exists
	_, err := FindProjectRoot(nestedDir)
	if err == nil {
		t.Error("FindProjectRoot should fail when no config exists")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}
}
