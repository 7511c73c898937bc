package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vstore/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "vstore.json"

	// YAMLConfigFileName is the name of the YAML configuration file. It is
	// used when no JSON file exists.
	YAMLConfigFileName = "vstore.yaml"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultSnapshotKey is the default key snapshots are saved under.
	DefaultSnapshotKey = "default"

	// DefaultSaveInterval is the default minimum time between snapshot saves.
	DefaultSaveInterval = "1s"
)

// Backend names accepted by PersistConfig.Backend.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendNATS     = "nats"
)

// Backends returns every accepted backend name.
func Backends() []string {
	return []string{BackendNone, BackendMemory, BackendFile, BackendRedis, BackendPostgres, BackendS3, BackendNATS}
}

// Config represents the complete vstore configuration.
type Config struct {
	// Name is the application name, used as the service name in traces.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Server  ServerConfig  `json:"server" yaml:"server"`
	Persist PersistConfig `json:"persist" yaml:"persist"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Log     LogConfig     `json:"log" yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP and WebSocket settings.
type ServerConfig struct {
	// Address is the listen address (default: ":8080").
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// SendBuffer is the number of frames queued per WebSocket client.
	SendBuffer int `json:"sendBuffer,omitempty" yaml:"sendBuffer,omitempty"`

	// AllowedOrigins lists the WebSocket origins accepted besides the
	// server's own. "*" accepts any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// PersistConfig selects and configures the snapshot backend.
type PersistConfig struct {
	// Backend is one of none, memory, file, redis, postgres, s3 or nats.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Key is the snapshot key.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Interval is the minimum time between saves (e.g., "1s").
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"`

	// Burst is the number of saves allowed back to back.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`

	// Restore loads the snapshot on startup.
	Restore bool `json:"restore,omitempty" yaml:"restore,omitempty"`

	File     FileConfig     `json:"file,omitempty" yaml:"file,omitempty"`
	Redis    RedisConfig    `json:"redis,omitempty" yaml:"redis,omitempty"`
	Postgres PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
	S3       S3Config       `json:"s3,omitempty" yaml:"s3,omitempty"`
	NATS     NATSConfig     `json:"nats,omitempty" yaml:"nats,omitempty"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir is the snapshot directory, relative to the config file.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addrs    []string `json:"addrs,omitempty" yaml:"addrs,omitempty"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int      `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string   `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// TTL expires snapshots (e.g., "24h"). Empty keeps them forever.
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// PostgresConfig configures the SQL backend.
type PostgresConfig struct {
	DSN   string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	// CreateTable creates the snapshot table on startup.
	CreateTable bool `json:"createTable,omitempty" yaml:"createTable,omitempty"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// NATSConfig configures the JetStream key-value backend.
type NATSConfig struct {
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
}

// MetricsConfig controls the Prometheus plugin and endpoint.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// TracingConfig controls the OpenTelemetry plugin.
type TracingConfig struct {
	Enabled     bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	IncludeArgs bool `json:"includeArgs,omitempty" yaml:"includeArgs,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Name: "vstore",
		Server: ServerConfig{
			Address:         DefaultAddress,
			ShutdownTimeout: "10s",
			SendBuffer:      64,
		},
		Persist: PersistConfig{
			Backend:  BackendMemory,
			Key:      DefaultSnapshotKey,
			Interval: DefaultSaveInterval,
			Burst:    1,
			Restore:  true,
			File:     FileConfig{Dir: "snapshots"},
			Redis:    RedisConfig{Addrs: []string{"localhost:6379"}},
			Postgres: PostgresConfig{Table: "vstore_snapshots"},
			NATS:     NATSConfig{URL: "nats://127.0.0.1:4222", Bucket: "vstore"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "vstore",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// vstore.json, then vstore.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		yamlPath := filepath.Join(dir, YAMLConfigFileName)
		if _, yerr := os.Stat(yamlPath); yerr == nil {
			path = yamlPath
		}
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E031").
				WithDetail("No vstore.json or vstore.yaml found in " + filepath.Dir(path)).
				WithSuggestion("Run 'vstore config init' to create one")
		}
		return nil, errors.New("E030").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E030").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML when the
// path ends in .yaml or .yml.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E030").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E030").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = d.Server.SendBuffer
	}

	if c.Persist.Backend == "" {
		c.Persist.Backend = BackendNone
	}
	if c.Persist.Key == "" {
		c.Persist.Key = d.Persist.Key
	}
	if c.Persist.Interval == "" {
		c.Persist.Interval = d.Persist.Interval
	}
	if c.Persist.Burst == 0 {
		c.Persist.Burst = d.Persist.Burst
	}
	if c.Persist.File.Dir == "" {
		c.Persist.File.Dir = d.Persist.File.Dir
	}
	if len(c.Persist.Redis.Addrs) == 0 {
		c.Persist.Redis.Addrs = d.Persist.Redis.Addrs
	}
	if c.Persist.Postgres.Table == "" {
		c.Persist.Postgres.Table = d.Persist.Postgres.Table
	}
	if c.Persist.NATS.URL == "" {
		c.Persist.NATS.URL = d.Persist.NATS.URL
	}
	if c.Persist.NATS.Bucket == "" {
		c.Persist.NATS.Bucket = d.Persist.NATS.Bucket
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(detail string) error {
		return errors.New("E030").WithDetail(detail)
	}

	switch c.Persist.Backend {
	case "", BackendNone, BackendMemory, BackendFile:
	case BackendRedis:
		if len(c.Persist.Redis.Addrs) == 0 {
			return invalid("persist.redis.addrs must list at least one address")
		}
	case BackendPostgres:
		if c.Persist.Postgres.DSN == "" {
			return invalid("persist.postgres.dsn is required for the postgres backend")
		}
	case BackendS3:
		if c.Persist.S3.Bucket == "" {
			return invalid("persist.s3.bucket is required for the s3 backend")
		}
	case BackendNATS:
		if c.Persist.NATS.URL == "" || c.Persist.NATS.Bucket == "" {
			return invalid("persist.nats.url and persist.nats.bucket are required for the nats backend")
		}
	default:
		return invalid("unknown persist backend " + `"` + c.Persist.Backend + `"`)
	}

	durations := map[string]string{
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
		"persist.interval":       c.Persist.Interval,
		"persist.redis.ttl":      c.Persist.Redis.TTL,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return invalid(name + " must be a non-negative duration, got " + `"` + value + `"`)
		}
	}

	if c.Persist.Burst < 0 {
		return invalid("persist.burst must not be negative")
	}
	if c.Server.SendBuffer < 0 {
		return invalid("server.sendBuffer must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return invalid("log.format must be text or json")
	}
	return nil
}

// ShutdownTimeout returns server.shutdownTimeout, or 10s when unset.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// SaveInterval returns persist.interval, or 1s when unset.
func (c *Config) SaveInterval() time.Duration {
	return parseDuration(c.Persist.Interval, time.Second)
}

// RedisTTL returns persist.redis.ttl, or 0 (no expiry) when unset.
func (c *Config) RedisTTL() time.Duration {
	return parseDuration(c.Persist.Redis.TTL, 0)
}

// SnapshotDir returns the absolute path to the file backend directory.
func (c *Config) SnapshotDir() string {
	path := c.Persist.File.Dir
	if path == "" {
		path = "snapshots"
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory holding a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E031").
				WithDetail("No vstore.json or vstore.yaml found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'vstore config init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent holding a config file.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
