// File: server/options.go
// Package server defines functional options for the event loop server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-httpd/control"
	"github.com/sirupsen/logrus"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics shares a metrics set, e.g. one exposed over HTTP.
func WithMetrics(m *control.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithProbes registers the server state probes on dp.
func WithProbes(dp *control.DebugProbes) ServerOption {
	return func(s *Server) {
		s.probes = dp
	}
}
