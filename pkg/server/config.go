package server

import (
	"net/http"
	"time"
)

// Config holds HTTP and WebSocket settings.
type Config struct {
	// Address is the listen address (default: ":8080").
	Address string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// SendBuffer is the number of frames queued per WebSocket client
	// before frames are dropped (default: 64).
	SendBuffer int

	// PingInterval is how often clients are pinged (default: 30s).
	PingInterval time.Duration

	// CheckOrigin validates the WebSocket Origin header.
	// Default: same-origin only.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		SendBuffer:        64,
		PingInterval:      30 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.SendBuffer <= 0 {
		out.SendBuffer = d.SendBuffer
	}
	if out.PingInterval <= 0 {
		out.PingInterval = d.PingInterval
	}
	return &out
}
