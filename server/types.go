// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/transport"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/sirupsen/logrus"
)

// Server is the readiness-multiplexed event loop. It owns the listening
// socket, the reactor and the registry of active connections; all of them
// are touched only by the goroutine running Serve.
type Server struct {
	cfg      *control.Config
	log      logrus.FieldLogger
	metrics  *control.Metrics
	probes   *control.DebugProbes
	response *protocol.Response

	listener *transport.Listener
	reactor  reactor.EventReactor
	conns    map[int]*Conn
	scratch  []byte

	// acceptPaused is set while the listener is unregistered for reads after
	// an accept failure; Serve re-arms it at resumeAt.
	acceptPaused bool
	resumeAt     time.Time

	active  atomic.Int64
	running atomic.Bool
}
