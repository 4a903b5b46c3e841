// File: supervisor/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package supervisor

import (
	"github.com/momentics/hioload-httpd/control"
	"github.com/sirupsen/logrus"
)

// Option customizes supervisor initialization.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Supervisor) {
		s.log = log
	}
}

// WithMetrics shares a metrics set.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithProbes registers the supervisor state probes on dp.
func WithProbes(dp *control.DebugProbes) Option {
	return func(s *Supervisor) {
		s.probes = dp
	}
}

// WithSpawner replaces the process spawner.
func WithSpawner(sp Spawner) Option {
	return func(s *Supervisor) {
		s.spawner = sp
	}
}

// WithWaitFunc replaces the child status collector used by the reaper.
func WithWaitFunc(wait WaitFunc) Option {
	return func(s *Supervisor) {
		s.wait = wait
	}
}
