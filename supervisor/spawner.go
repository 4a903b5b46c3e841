// File: supervisor/spawner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker process creation.

package supervisor

import (
	"fmt"
	"os"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
)

// Environment understood by a re-executed worker.
const (
	WorkerEnv       = "HIOLOAD_HTTPD_WORKER"
	WorkerConfigEnv = "HIOLOAD_HTTPD_WORKER_CONFIG"
	WorkerPeerEnv   = "HIOLOAD_HTTPD_WORKER_PEER"

	// workerConnFd is where the worker finds its connection.
	workerConnFd = 3
)

// Spawner starts a worker owning a copy of conn. The caller keeps and
// closes its own copy.
type Spawner interface {
	Spawn(conn *os.File, peer string) (pid int, err error)
}

// ProcessSpawner re-executes a binary as a worker process.
type ProcessSpawner struct {
	Path string
	Args []string
	Env  []string
}

// NewProcessSpawner returns a spawner re-executing the running binary with
// cfg handed over through the environment.
func NewProcessSpawner(cfg *control.Config) (*ProcessSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	enc, err := cfg.Encode()
	if err != nil {
		return nil, err
	}
	env := append(os.Environ(),
		WorkerEnv+"=1",
		WorkerConfigEnv+"="+enc,
	)
	return &ProcessSpawner{
		Path: exe,
		Args: []string{exe, "worker"},
		Env:  env,
	}, nil
}

// Spawn starts the worker with stdio inherited and conn as descriptor 3.
func (p *ProcessSpawner) Spawn(conn *os.File, peer string) (int, error) {
	env := append(p.Env[:len(p.Env):len(p.Env)], WorkerPeerEnv+"="+peer)
	proc, err := os.StartProcess(p.Path, p.Args, &os.ProcAttr{
		Env:   env,
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr, conn},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", api.ErrSpawnFailed, err)
	}
	pid := proc.Pid
	// Termination is collected by the reaper through wait4, not proc.Wait.
	proc.Release()
	return pid, nil
}
