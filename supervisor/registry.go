// File: supervisor/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry of live worker processes.

package supervisor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Worker describes one spawned worker process.
type Worker struct {
	Pid     int
	Peer    string
	Started time.Time
}

// Registry maps pids of spawned, not yet reaped workers. Spawning and
// reaping are serialized by a gate so a worker that exits immediately
// cannot be collected before it is registered.
type Registry struct {
	gate    sync.Mutex
	workers *xsync.MapOf[int, *Worker]
	live    atomic.Int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: xsync.NewMapOf[int, *Worker]()}
}

// Spawn runs start under the gate and registers the worker it returns.
func (r *Registry) Spawn(start func() (*Worker, error)) (*Worker, error) {
	r.gate.Lock()
	defer r.gate.Unlock()
	w, err := start()
	if err != nil {
		return nil, err
	}
	if _, loaded := r.workers.LoadOrStore(w.Pid, w); !loaded {
		r.live.Add(1)
	}
	return w, nil
}

// collect runs one non-blocking wait under the gate and removes the
// worker it reports. known is false for pids this registry never spawned
// or already removed.
func (r *Registry) collect(wait WaitFunc) (pid int, status ExitStatus, w *Worker, known bool, err error) {
	r.gate.Lock()
	defer r.gate.Unlock()
	pid, status, err = wait()
	if err != nil || pid <= 0 {
		return pid, status, nil, false, err
	}
	w, known = r.workers.LoadAndDelete(pid)
	if known {
		r.live.Add(-1)
	}
	return pid, status, w, known, nil
}

// Live returns the number of registered workers.
func (r *Registry) Live() int {
	return int(r.live.Load())
}

// Lookup returns the worker registered under pid.
func (r *Registry) Lookup(pid int) (*Worker, bool) {
	return r.workers.Load(pid)
}

// Snapshot returns the registered workers in no particular order.
func (r *Registry) Snapshot() []*Worker {
	out := make([]*Worker, 0, r.workers.Size())
	r.workers.Range(func(_ int, w *Worker) bool {
		out = append(out, w)
		return true
	})
	return out
}
