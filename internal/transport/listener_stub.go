//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub transport for unsupported platforms.

package transport

import (
	"net/netip"

	"github.com/momentics/hioload-httpd/api"
)

const DefaultBacklog = 1024

type ListenConfig struct {
	Backlog     int
	NonBlocking bool
}

type Listener struct{}

func Listen(addr string, cfg ListenConfig) (*Listener, error) {
	return nil, api.ErrNotSupported
}

func (l *Listener) Fd() int {
	return -1
}

func (l *Listener) Addr() netip.AddrPort {
	return netip.AddrPort{}
}

func (l *Listener) Accept() (fd int, peer string, err error) {
	return -1, "", api.ErrNotSupported
}

func (l *Listener) Shutdown() error {
	return api.ErrNotSupported
}

func (l *Listener) Close() error {
	return nil
}

func IsTemporary(err error) bool {
	return false
}

func IsRetryable(err error) bool {
	return false
}

type FDSocket struct{ fd int }

func NewFDSocket(fd int) *FDSocket {
	return &FDSocket{fd: fd}
}

func (s *FDSocket) Fd() int {
	return s.fd
}

func (s *FDSocket) Read(p []byte) (int, error) {
	return 0, api.ErrNotSupported
}

func (s *FDSocket) Write(p []byte) (int, error) {
	return 0, api.ErrNotSupported
}

func (s *FDSocket) CloseWrite() error {
	return api.ErrNotSupported
}

func (s *FDSocket) Close() error {
	return api.ErrNotSupported
}
