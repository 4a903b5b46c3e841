// internal/transport/socket_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// api.Socket over a raw socket descriptor.

package transport

import (
	"io"
	"sync/atomic"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// FDSocket adapts a connected socket descriptor to api.Socket. It owns the
// descriptor and closes it at most once.
type FDSocket struct {
	fd     int
	closed atomic.Bool
}

// NewFDSocket wraps fd. Ownership of fd moves to the returned socket.
func NewFDSocket(fd int) *FDSocket {
	return &FDSocket{fd: fd}
}

// Fd returns the wrapped descriptor.
func (s *FDSocket) Fd() int {
	return s.fd
}

// Read performs one read(2). EAGAIN maps to api.ErrWouldBlock, a zero-byte
// read to io.EOF.
func (s *FDSocket) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, api.ErrClosed
	}
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, err
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write performs one write(2) and may write fewer than len(p) bytes.
func (s *FDSocket) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, api.ErrClosed
	}
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, err
		}
		return n, nil
	}
}

// CloseWrite half-closes the connection: the peer reads EOF while data it
// still sends can be drained.
func (s *FDSocket) CloseWrite() error {
	if s.closed.Load() {
		return api.ErrClosed
	}
	return unix.Shutdown(s.fd, unix.SHUT_WR)
}

// Close closes the descriptor. Later calls return api.ErrClosed.
func (s *FDSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return api.ErrClosed
	}
	return unix.Close(s.fd)
}
