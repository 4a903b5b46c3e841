// File: server/server.go
// Package server implements the single-threaded, readiness-multiplexed
// HTTP event loop: listener setup, accept, per-connection dispatch and
// teardown.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/momentics/hioload-httpd/affinity"
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/transport"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/sirupsen/logrus"
)

var ErrAlreadyRunning = errors.New("server already running")

// acceptBackoff is how long the listener stays disarmed after accept fails
// for a reason other than an empty queue, e.g. descriptor exhaustion.
const acceptBackoff = 50 * time.Millisecond

// NewServer builds an event loop server from cfg.
func NewServer(cfg *control.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		log:      logrus.StandardLogger(),
		response: protocol.BuildResponse(cfg.ResponseContentType, []byte(cfg.ResponseBody)),
		conns:    make(map[int]*Conn),
		scratch:  make([]byte, cfg.ReadChunk),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics()
	}
	if s.probes != nil {
		s.probes.RegisterProbe("server.active_connections", func() any { return s.ActiveConnections() })
	}
	return s, nil
}

// Listen binds the non-blocking listening socket. Serve calls it when the
// caller did not.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := transport.Listen(s.cfg.ListenAddr, transport.ListenConfig{
		Backlog:     s.cfg.Backlog,
		NonBlocking: true,
	})
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.WithField("addr", ln.Addr().String()).Info("event loop listening")
	return nil
}

// Addr returns the bound address, or the zero value before Listen.
func (s *Server) Addr() netip.AddrPort {
	if s.listener == nil {
		return netip.AddrPort{}
	}
	return s.listener.Addr()
}

// ActiveConnections returns the size of the active connection set.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

// Metrics returns the collectors updated by this server.
func (s *Server) Metrics() *control.Metrics {
	return s.metrics
}

// Serve runs the event loop until ctx is cancelled. On return the listening
// socket and every active connection are closed; responses still pending
// are abandoned.
func (s *Server) Serve(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if err := s.Listen(); err != nil {
		return err
	}
	if cpu := s.cfg.LoopCPU; cpu != affinity.Disabled {
		release, err := affinity.Pin(cpu)
		if err != nil {
			s.log.WithError(err).WithField("cpu", cpu).Warn("event loop not pinned")
		} else {
			defer release()
			s.log.WithField("cpu", cpu).Debug("event loop pinned")
		}
	}
	r, err := reactor.NewReactor(s.cfg.MaxEvents)
	if err != nil {
		s.listener.Close()
		return err
	}
	s.reactor = r
	defer s.teardown()

	lfd := s.listener.Fd()
	if err := r.Add(lfd, api.InterestRead); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		if err := r.Wake(); err != nil {
			s.log.WithError(err).Warn("reactor wake failed")
		}
	})
	defer stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		events, err := r.Wait(s.waitTimeout(lfd))
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.Fd == lfd {
				s.acceptAll()
				continue
			}
			if c, ok := s.conns[ev.Fd]; ok {
				s.dispatch(c, ev)
			}
		}
	}
}

// acceptAll drains the accept queue until it would block.
func (s *Server) acceptAll() {
	for {
		fd, peer, err := s.listener.Accept()
		if err != nil {
			switch {
			case errors.Is(err, api.ErrWouldBlock):
			case transport.IsRetryable(err):
				continue
			default:
				s.pauseAccept(err)
			}
			return
		}
		sock := transport.NewFDSocket(fd)
		if limit := s.cfg.MaxConnections; limit > 0 && len(s.conns) >= limit {
			sock.Close()
			s.metrics.ConnectionsClosed.WithLabelValues(control.ReasonRejected).Inc()
			s.log.WithField("peer", peer).Warn("connection limit reached, rejecting")
			continue
		}
		if err := s.adopt(NewConn(fd, sock, peer, s.cfg.MaxHeadBytes)); err != nil {
			s.log.WithError(err).WithField("peer", peer).Warn("register connection failed")
		}
	}
}

// adopt registers c with the reactor and the active set. On failure c is
// released and never enters the set.
func (s *Server) adopt(c *Conn) error {
	if err := s.reactor.Add(c.Fd(), c.Interest()); err != nil {
		c.release()
		return err
	}
	s.conns[c.Fd()] = c
	s.active.Add(1)
	s.metrics.ConnectionsAccepted.Inc()
	s.metrics.ConnectionsActive.Inc()
	s.log.WithFields(logrus.Fields{"peer": c.Peer(), "fd": c.Fd()}).Debug("connected")
	return nil
}

// pauseAccept stops read interest on the listener for acceptBackoff. The
// listener is level-triggered, so leaving it armed while accept keeps
// failing would spin the loop.
func (s *Server) pauseAccept(err error) {
	lfd := s.listener.Fd()
	if merr := s.reactor.Modify(lfd, api.InterestNone); merr != nil {
		s.log.WithError(merr).Warn("disarm listener failed")
	}
	s.acceptPaused = true
	s.resumeAt = time.Now().Add(acceptBackoff)
	entry := s.log.WithError(err).WithField("backoff", acceptBackoff)
	if transport.IsTemporary(err) {
		entry.Warn("accept failed, pausing")
	} else {
		entry.Error("accept failed, pausing")
	}
}

// waitTimeout re-arms a paused listener whose backoff expired and returns
// the readiness wait timeout in milliseconds, -1 for none.
func (s *Server) waitTimeout(lfd int) int {
	if !s.acceptPaused {
		return -1
	}
	if left := time.Until(s.resumeAt); left > 0 {
		return int((left + time.Millisecond - 1) / time.Millisecond)
	}
	if err := s.reactor.Modify(lfd, api.InterestRead); err != nil {
		s.log.WithError(err).Warn("re-arm listener failed")
		s.resumeAt = time.Now().Add(acceptBackoff)
		return int(acceptBackoff / time.Millisecond)
	}
	s.acceptPaused = false
	return -1
}

// dispatch applies one readiness event to c and keeps the registered
// interest in step with the resulting state.
func (s *Server) dispatch(c *Conn, ev reactor.Event) {
	prev := c.Interest()
	func() {
		defer func() {
			if p := recover(); p != nil {
				c.Fail(fmt.Errorf("panic: %v", p))
			}
		}()
		switch c.State() {
		case api.StateAwaitingRequest:
			if ev.Readable || ev.Hangup {
				c.HandleReadable(s.scratch, s.response)
			}
		case api.StateResponsePending:
			if ev.Writable || ev.Hangup {
				c.HandleWritable()
			}
		}
	}()

	if c.State() == api.StateClosing {
		s.closeConn(c)
		return
	}
	if next := c.Interest(); next != prev {
		if err := s.reactor.Modify(c.Fd(), next); err != nil {
			c.Fail(err)
			s.closeConn(c)
		}
	}
}

// closeConn unregisters and closes c. It is the only place a connection
// leaves the active set.
func (s *Server) closeConn(c *Conn) {
	if _, ok := s.conns[c.Fd()]; !ok {
		return
	}
	reason, cerr := c.CloseReason()
	if reason == "" {
		reason = control.ReasonShutdown
	}
	if err := s.reactor.Remove(c.Fd()); err != nil {
		s.log.WithError(err).WithField("fd", c.Fd()).Debug("unregister failed")
	}
	delete(s.conns, c.Fd())
	if err := c.release(); err != nil {
		s.log.WithError(err).WithField("fd", c.Fd()).Debug("close failed")
	}
	s.active.Add(-1)
	s.metrics.ConnectionsActive.Dec()
	s.metrics.ConnectionsClosed.WithLabelValues(reason).Inc()

	entry := s.log.WithFields(logrus.Fields{"peer": c.Peer(), "reason": reason})
	switch reason {
	case control.ReasonDone:
		s.metrics.Responses.Inc()
		entry.Debug("terminating connection")
	case control.ReasonOversized:
		s.metrics.HeadsRejected.Inc()
		entry.Warn("request head too large, dropping connection")
	default:
		if cerr != nil {
			entry = entry.WithError(cerr)
		}
		entry.Debug("terminating connection")
	}
}

func (s *Server) teardown() {
	for _, c := range s.conns {
		if c.State() != api.StateClosing {
			c.fail(control.ReasonShutdown, nil)
		}
		s.closeConn(c)
	}
	if err := s.reactor.Close(); err != nil {
		s.log.WithError(err).Debug("reactor close failed")
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.log.WithError(err).Debug("listener close failed")
		}
	}
	s.log.Info("event loop stopped")
}
