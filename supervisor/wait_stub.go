//go:build !linux
// +build !linux

// File: supervisor/wait_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for unsupported platforms.

package supervisor

import (
	"os"

	"github.com/momentics/hioload-httpd/api"
)

func waitAny() (int, ExitStatus, error) {
	return 0, ExitStatus{}, api.ErrNotSupported
}

func notifyTermination(ch chan<- os.Signal) {}

func stopNotify(ch chan<- os.Signal) {}
