// File: api/socket.go
// Author: momentics <momentics@gmail.com>
//
// I/O capability shared by the event loop and the worker processes.

package api

// Socket is a byte-stream endpoint. A non-blocking implementation reports
// ErrWouldBlock from Read or Write when readiness is not available; a
// blocking one never does. Read returns io.EOF once the peer has closed.
//
// Both concurrency engines drive the same framing and response logic
// through this interface.
type Socket interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}
