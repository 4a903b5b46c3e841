// File: supervisor/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker side: one synchronous request/response exchange, then exit.

package supervisor

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"
)

// ErrIncompleteRequest reports a peer that closed before finishing its head.
var ErrIncompleteRequest = errors.New("peer closed before request head completed")

// IsWorker reports whether this process was started as a worker.
func IsWorker() bool {
	return os.Getenv(WorkerEnv) == "1"
}

// RunWorker serves the inherited connection and returns the process exit code.
func RunWorker() int {
	cfg, err := control.DecodeConfig(os.Getenv(WorkerConfigEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker config: %v\n", err)
		return 2
	}
	logger, err := control.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker logger: %v\n", err)
		return 2
	}
	log := logger.WithFields(logrus.Fields{
		"role": "worker",
		"pid":  os.Getpid(),
		"peer": os.Getenv(WorkerPeerEnv),
	})

	if err := checkInherited(workerConnFd); err != nil {
		log.WithError(err).Error("connection descriptor missing")
		return 2
	}
	f := os.NewFile(workerConnFd, "conn")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		log.WithError(err).Error("adopt connection")
		return 2
	}
	defer conn.Close()
	if d := cfg.WorkerTimeout.Std(); d > 0 {
		if err := conn.SetDeadline(time.Now().Add(d)); err != nil {
			log.WithError(err).Warn("worker deadline not set")
		}
	}

	resp := protocol.BuildResponse(cfg.ResponseContentType, []byte(cfg.ResponseBody))
	head, err := Exchange(conn, protocol.NewFramer(cfg.MaxHeadBytes), resp, cfg.ReadChunk)
	if err != nil {
		entry := log.WithError(err)
		if errors.Is(err, api.ErrHeadTooLarge) {
			entry.Warn("request head too large, dropping connection")
		} else {
			entry.Debug("exchange aborted")
		}
		return 1
	}
	log.WithField("request", head.RequestLine()).Debug("response sent")
	if err := Linger(conn, lingerTimeout); err != nil {
		log.WithError(err).Debug("linger")
	}
	return 0
}

// Bounds of the post-response drain.
const (
	lingerLimit   = 64 << 10
	lingerTimeout = 250 * time.Millisecond
)

// Linger half-closes conn after a complete response and discards request
// bytes that were never read, so the final close does not reset the
// connection while the response is still unread by the peer. It returns
// once the peer closes, after wait, or after lingerLimit bytes.
func Linger(conn net.Conn, wait time.Duration) error {
	hc, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return nil
	}
	if err := hc.CloseWrite(); err != nil {
		return err
	}
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	_, err := io.Copy(io.Discard, io.LimitReader(conn, lingerLimit))
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil
	}
	return err
}

// Exchange reads one request head from a blocking socket, writes resp in
// full and returns the framed head. The socket is not closed.
func Exchange(sock api.Socket, framer *protocol.Framer, resp *protocol.Response, chunk int) (*protocol.Head, error) {
	if chunk <= 0 {
		chunk = 1024
	}
	in := bytebufferpool.Get()
	defer bytebufferpool.Put(in)
	scratch := make([]byte, chunk)

	var head *protocol.Head
	for head == nil {
		n, err := sock.Read(scratch)
		if n > 0 {
			in.Write(scratch[:n])
			var ferr error
			if head, ferr = framer.Frame(in.B); ferr != nil {
				return nil, ferr
			}
		}
		if head != nil {
			break
		}
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrIncompleteRequest
		case err != nil:
			return nil, err
		}
	}

	for _, seg := range resp.Segments() {
		if err := writeFull(sock, seg); err != nil {
			return head, err
		}
	}
	return head, nil
}

// writeFull repeats Write until p is sent, keeping the unwritten suffix.
func writeFull(sock api.Socket, p []byte) error {
	for len(p) > 0 {
		n, err := sock.Write(p)
		p = p[n:]
		if err != nil && !errors.Is(err, api.ErrWouldBlock) {
			return err
		}
	}
	return nil
}
