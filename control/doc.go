// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, logging, runtime metrics and debug introspection layer.
// Part of hioload-httpd core.
//
// Provides:
//   - JSON configuration with defaults and validation
//   - Structured logger construction
//   - Prometheus metrics for connections and worker processes
//   - Debug probe registration and an HTTP mux exposing metrics and state
package control
