// File: supervisor/supervisor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Accept loop delegating every connection to a worker process.

package supervisor

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/transport"
	"github.com/sirupsen/logrus"
)

var ErrAlreadyRunning = errors.New("supervisor already running")

// acceptBackoff paces the accept loop while descriptors or memory are exhausted.
const acceptBackoff = 10 * time.Millisecond

// Supervisor accepts connections and never performs an exchange itself.
type Supervisor struct {
	cfg     *control.Config
	log     logrus.FieldLogger
	metrics *control.Metrics
	probes  *control.DebugProbes
	spawner Spawner
	wait    WaitFunc

	registry *Registry
	reaper   *Reaper
	listener *transport.Listener
	running  atomic.Bool
}

// NewSupervisor builds a supervisor from cfg.
func NewSupervisor(cfg *control.Config, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Supervisor{
		cfg:      cfg,
		log:      logrus.StandardLogger(),
		registry: NewRegistry(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics()
	}
	if s.spawner == nil {
		sp, err := NewProcessSpawner(cfg)
		if err != nil {
			return nil, err
		}
		s.spawner = sp
	}
	s.reaper = NewReaper(s.registry, s.wait, s.log, s.metrics)
	if s.probes != nil {
		s.probes.RegisterProbe("supervisor.live_workers", func() any { return s.registry.Live() })
	}
	return s, nil
}

// Listen binds the blocking listening socket. Serve calls it when the
// caller did not.
func (s *Supervisor) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := transport.Listen(s.cfg.ListenAddr, transport.ListenConfig{Backlog: s.cfg.Backlog})
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.WithField("addr", ln.Addr().String()).Info("supervisor listening")
	return nil
}

// Addr returns the bound address, or the zero value before Listen.
func (s *Supervisor) Addr() netip.AddrPort {
	if s.listener == nil {
		return netip.AddrPort{}
	}
	return s.listener.Addr()
}

// Registry returns the live worker registry.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Reaper returns the termination reaper.
func (s *Supervisor) Reaper() *Reaper {
	return s.reaper
}

// Metrics returns the collectors updated by this supervisor.
func (s *Supervisor) Metrics() *control.Metrics {
	return s.metrics
}

// Serve accepts until ctx is cancelled. On the way out it closes the
// listening socket, waits up to ShutdownGrace for live workers and drains
// the reaper one last time.
func (s *Supervisor) Serve(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if err := s.Listen(); err != nil {
		return err
	}

	notify := make(chan os.Signal, 1)
	notifyTermination(notify)
	defer stopNotify(notify)

	reapCtx, stopReaper := context.WithCancel(context.Background())
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		s.reaper.Run(reapCtx, notify)
	}()

	stop := context.AfterFunc(ctx, func() {
		if err := s.listener.Shutdown(); err != nil {
			s.log.WithError(err).Warn("listener shutdown failed")
		}
	})
	defer stop()

	err := s.acceptLoop(ctx)
	if cerr := s.listener.Close(); cerr != nil {
		s.log.WithError(cerr).Debug("listener close failed")
	}
	s.awaitWorkers(s.cfg.ShutdownGrace.Std())
	stopReaper()
	<-reaperDone
	s.reaper.Drain()
	s.log.WithField("live_workers", s.registry.Live()).Info("supervisor stopped")
	return err
}

func (s *Supervisor) acceptLoop(ctx context.Context) error {
	for {
		fd, peer, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if transport.IsRetryable(err) {
				// Interrupted, typically by a worker termination.
				continue
			}
			if transport.IsTemporary(err) {
				s.log.WithError(err).Warn("accept failed, retrying")
				time.Sleep(acceptBackoff)
				continue
			}
			return err
		}
		s.dispatch(fd, peer)
	}
}

// dispatch hands fd to a new worker and closes the supervisor's copy,
// whether or not the spawn succeeded.
func (s *Supervisor) dispatch(fd int, peer string) {
	conn := os.NewFile(uintptr(fd), "conn:"+peer)
	w, err := s.registry.Spawn(func() (*Worker, error) {
		pid, err := s.spawner.Spawn(conn, peer)
		if err != nil {
			return nil, err
		}
		return &Worker{Pid: pid, Peer: peer, Started: time.Now()}, nil
	})
	if cerr := conn.Close(); cerr != nil {
		s.log.WithError(cerr).WithField("peer", peer).Debug("close connection copy failed")
	}
	if err != nil {
		s.metrics.SpawnFailures.Inc()
		s.log.WithError(err).WithField("peer", peer).Warn("spawn worker failed, dropping connection")
		return
	}
	s.metrics.WorkersSpawned.Inc()
	s.metrics.WorkersLive.Inc()
	s.log.WithFields(logrus.Fields{"peer": peer, "pid": w.Pid}).Debug("connected, worker spawned")
}

func (s *Supervisor) awaitWorkers(grace time.Duration) {
	deadline := time.Now().Add(grace)
	for s.registry.Live() > 0 && time.Now().Before(deadline) {
		s.reaper.Drain()
		time.Sleep(acceptBackoff)
	}
	if n := s.registry.Live(); n > 0 {
		s.log.WithField("live_workers", n).Warn("workers still running at shutdown")
	}
}
