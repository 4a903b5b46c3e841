// File: supervisor/reaper.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Termination reaper: drains every terminated worker on each notification.

package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/momentics/hioload-httpd/control"
	"github.com/sirupsen/logrus"
)

// ExitStatus is the final status of a terminated process.
type ExitStatus struct {
	Exited   bool
	Code     int
	Signaled bool
	Signal   string
}

func (s ExitStatus) String() string {
	switch {
	case s.Signaled:
		return "signal: " + s.Signal
	case s.Exited:
		return fmt.Sprintf("exit status %d", s.Code)
	default:
		return "unknown"
	}
}

// WaitFunc collects one terminated child without blocking. It returns
// pid 0 when no terminated child is pending, including when there are no
// children at all.
type WaitFunc func() (pid int, status ExitStatus, err error)

// Reaper collects terminated workers.
type Reaper struct {
	registry *Registry
	wait     WaitFunc
	log      logrus.FieldLogger
	metrics  *control.Metrics

	mu sync.Mutex
}

// NewReaper builds a reaper over registry. wait defaults to the platform
// non-blocking wait for any child.
func NewReaper(registry *Registry, wait WaitFunc, log logrus.FieldLogger, m *control.Metrics) *Reaper {
	if wait == nil {
		wait = waitAny
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if m == nil {
		m = control.NewMetrics()
	}
	return &Reaper{registry: registry, wait: wait, log: log, metrics: m}
}

// Run drains on every notification until ctx is done. Notifications may be
// coalesced; a single one can stand for any number of terminations.
func (r *Reaper) Run(ctx context.Context, notify <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			r.Drain()
		}
	}
}

// Drain collects every currently terminated child and returns how many
// registered workers it reaped. It never waits for a running child and is
// safe to call concurrently; overlapping calls are serialized.
func (r *Reaper) Drain() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for {
		pid, status, w, known, err := r.registry.collect(r.wait)
		if err != nil {
			r.log.WithError(err).Warn("wait for workers failed")
			return reaped
		}
		if pid <= 0 {
			return reaped
		}
		if !known {
			r.log.WithField("pid", pid).Debug("reaped unknown child, ignoring")
			continue
		}
		reaped++
		r.metrics.WorkersReaped.Inc()
		r.metrics.WorkersLive.Dec()
		r.log.WithFields(logrus.Fields{
			"pid":    pid,
			"peer":   w.Peer,
			"status": status.String(),
		}).Debug("worker reaped")
	}
}
