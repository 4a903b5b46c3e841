// Package supervisor
// Author: momentics <momentics@gmail.com>
//
// Process-per-connection HTTP server: a supervisor blocks in accept, hands
// every accepted socket to a freshly started worker process and closes its
// own copy immediately. Workers run one synchronous request/response
// exchange and exit. A reaper collects terminated workers whenever the
// kernel reports a child termination, so no zombie accumulates.
//
// Workers are started by re-executing the current binary with the
// connection inherited as descriptor 3; nothing is shared with the
// supervisor afterwards. The kernel's SIGCHLD is translated into a
// coalescing channel message that the reaper consumes at the top of its
// drain loop. Real signal timing is OS-dependent; the channel is a safe
// over-approximation because each drain collects every terminated child,
// not just one.
package supervisor
