// internal/transport/listener_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux listening socket built directly on socket(2), bind(2) and listen(2).

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// DefaultBacklog is the pending connection queue length.
const DefaultBacklog = 1024

// ListenConfig controls listening socket creation.
type ListenConfig struct {
	Backlog int
	// NonBlocking puts the listening socket and every accepted socket in
	// non-blocking mode. The event loop requires it; the supervisor does not.
	NonBlocking bool
}

// Listener owns one bound, listening TCP socket.
type Listener struct {
	fd          int
	addr        netip.AddrPort
	nonBlocking bool
	closeOnce   sync.Once
	closeErr    error
}

// Listen binds addr ("host:port") and starts listening. All descriptors are
// close-on-exec so that spawned workers never inherit the listening socket.
func Listen(addr string, cfg ListenConfig) (*Listener, error) {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return nil, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}

	family := unix.AF_INET
	if ap.Addr().Is6() && !ap.Addr().Is4In6() {
		family = unix.AF_INET6
	}
	typ := unix.SOCK_STREAM | unix.SOCK_CLOEXEC
	if cfg.NonBlocking {
		typ |= unix.SOCK_NONBLOCK
	}
	fd, err := unix.Socket(family, typ, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, toSockaddr(ap)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, cfg.Backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	l := &Listener{fd: fd, addr: ap, nonBlocking: cfg.NonBlocking}
	if sa, err := unix.Getsockname(fd); err == nil {
		if bound, ok := fromSockaddr(sa); ok {
			l.addr = bound
		}
	}
	return l, nil
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int {
	return l.fd
}

// Addr returns the bound address, with the kernel-chosen port when port 0 was requested.
func (l *Listener) Addr() netip.AddrPort {
	return l.addr
}

// Accept takes one pending connection. It returns api.ErrWouldBlock when a
// non-blocking listener has nothing pending. Descriptor and memory
// exhaustion wrap api.ErrResourceExhausted; use IsTemporary to tell
// retryable errors apart.
func (l *Listener) Accept() (fd int, peer string, err error) {
	flags := unix.SOCK_CLOEXEC
	if l.nonBlocking {
		flags |= unix.SOCK_NONBLOCK
	}
	nfd, sa, err := unix.Accept4(l.fd, flags)
	if err != nil {
		switch err {
		case unix.EAGAIN:
			return -1, "", api.ErrWouldBlock
		case unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM:
			return -1, "", fmt.Errorf("accept: %w: %w", api.ErrResourceExhausted, err)
		}
		return -1, "", fmt.Errorf("accept: %w", err)
	}
	return nfd, sockaddrString(sa), nil
}

// Shutdown stops the listening socket so a goroutine blocked in Accept
// returns. The descriptor stays open until Close.
func (l *Listener) Shutdown() error {
	if err := unix.Shutdown(l.fd, unix.SHUT_RDWR); err != nil && err != unix.ENOTCONN {
		return fmt.Errorf("shutdown listener: %w", err)
	}
	return nil
}

// Close closes the listening socket exactly once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = unix.Close(l.fd)
	})
	return l.closeErr
}

// IsTemporary reports accept errors after which the accept loop should
// simply continue: interruption by a signal, a connection aborted before it
// was accepted, and transient descriptor or memory exhaustion.
func IsTemporary(err error) bool {
	return IsRetryable(err) ||
		errors.Is(err, api.ErrResourceExhausted) ||
		errors.Is(err, api.ErrWouldBlock)
}

// IsRetryable reports accept errors that concern only the one pending
// connection or the call itself, so accept can be issued again at once.
func IsRetryable(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) || errors.Is(err, unix.EPROTO)
}

func toSockaddr(ap netip.AddrPort) unix.Sockaddr {
	if ap.Addr().Is4() || ap.Addr().Is4In6() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().Unmap().As4()}
	}
	return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ap.Addr().As16()}
}

func fromSockaddr(sa unix.Sockaddr) (netip.AddrPort, bool) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port)), true
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr), uint16(v.Port)), true
	default:
		return netip.AddrPort{}, false
	}
}

func sockaddrString(sa unix.Sockaddr) string {
	if ap, ok := fromSockaddr(sa); ok {
		return ap.String()
	}
	return "unknown"
}
