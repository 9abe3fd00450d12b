package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/vango-dev/streamres/internal/config"
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address. Default: ":8080".
	Addr string

	// MetricsPath is where Prometheus metrics are mounted when a gatherer
	// is configured. Default: "/metrics".
	MetricsPath string

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers. Default: 10s.
	ReadHeaderTimeout time.Duration

	// WriteTimeout bounds each WebSocket write. Default: 10s.
	WriteTimeout time.Duration

	// PingInterval is how often WebSocket clients are pinged. Default: 30s.
	PingInterval time.Duration

	// CheckOrigin validates WebSocket origins. Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a Config with defaults filled in.
func DefaultConfig() *Config {
	return &Config{
		Addr:              config.DefaultAddr,
		MetricsPath:       config.DefaultMetricsPath,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		CheckOrigin:       SameOriginCheck,
	}
}

// withDefaults returns a copy of c with unset fields defaulted.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	out := *c
	if out.Addr == "" {
		out.Addr = defaults.Addr
	}
	if out.MetricsPath == "" {
		out.MetricsPath = defaults.MetricsPath
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.PingInterval == 0 {
		out.PingInterval = defaults.PingInterval
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	return &out
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host matches the request host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
