// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Server configuration: defaults, JSON loading and validation.

package control

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/momentics/hioload-httpd/api"
)

// Duration is a time.Duration encoded as a Go duration string ("10s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr          string   `json:"listen_addr"`           // fixed bind address, e.g. "127.0.0.1:8888"
	Backlog             int      `json:"backlog"`               // listen(2) backlog
	MaxHeadBytes        int      `json:"max_head_bytes"`        // request head cap, delimiter included
	ReadChunk           int      `json:"read_chunk"`            // bytes per read call
	MaxEvents           int      `json:"max_events"`            // readiness events per wait
	MaxConnections      int      `json:"max_connections"`       // event loop admission limit, 0 = unbounded
	LoopCPU             int      `json:"loop_cpu"`              // CPU the event loop thread is pinned to, -1 = none
	ResponseBody        string   `json:"response_body"`         // static response payload
	ResponseContentType string   `json:"response_content_type"` // Content-Type of the payload
	WorkerTimeout       Duration `json:"worker_timeout"`        // worker I/O deadline, 0 = none
	ShutdownGrace       Duration `json:"shutdown_grace"`        // supervisor wait for live workers
	LogLevel            string   `json:"log_level"`
	LogFormat           string   `json:"log_format"`   // "text" or "json"
	MetricsAddr         string   `json:"metrics_addr"` // metrics/debug endpoint, "" = disabled
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:          "127.0.0.1:8888",
		Backlog:             1024,
		MaxHeadBytes:        8 << 10,
		ReadChunk:           1024,
		MaxEvents:           128,
		MaxConnections:      0,
		LoopCPU:             -1,
		ResponseBody:        "Hello World!",
		ResponseContentType: "text/plain; charset=utf-8",
		WorkerTimeout:       Duration(10 * time.Second),
		ShutdownGrace:       Duration(5 * time.Second),
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// LoadConfig reads a JSON file over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode serializes the configuration for handing it to a worker process.
func (c *Config) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(b), nil
}

// DecodeConfig is the inverse of Encode, applied over the defaults.
func DecodeConfig(s string) (*Config, error) {
	cfg := DefaultConfig()
	if s == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(s), cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	invalid := func(field string, value any) error {
		return api.NewError(api.ErrCodeInvalidArgument, "invalid configuration").
			WithContext("field", field).
			WithContext("value", value)
	}
	switch {
	case c.ListenAddr == "":
		return invalid("listen_addr", c.ListenAddr)
	case c.Backlog <= 0:
		return invalid("backlog", c.Backlog)
	case c.MaxHeadBytes < 16:
		return invalid("max_head_bytes", c.MaxHeadBytes)
	case c.ReadChunk <= 0:
		return invalid("read_chunk", c.ReadChunk)
	case c.MaxEvents <= 0:
		return invalid("max_events", c.MaxEvents)
	case c.MaxConnections < 0:
		return invalid("max_connections", c.MaxConnections)
	case c.LoopCPU < -1:
		return invalid("loop_cpu", c.LoopCPU)
	case c.WorkerTimeout < 0:
		return invalid("worker_timeout", c.WorkerTimeout.Std().String())
	case c.ShutdownGrace < 0:
		return invalid("shutdown_grace", c.ShutdownGrace.Std().String())
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format", c.LogFormat)
	}
	return nil
}
