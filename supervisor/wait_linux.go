//go:build linux
// +build linux

// File: supervisor/wait_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux child status collection and termination notification.

package supervisor

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// waitAny is wait4(-1, WNOHANG). ECHILD means there are no children left.
func waitAny() (int, ExitStatus, error) {
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			return 0, ExitStatus{}, nil
		case err != nil:
			return 0, ExitStatus{}, err
		case pid <= 0:
			return 0, ExitStatus{}, nil
		}
		st := ExitStatus{Exited: ws.Exited(), Signaled: ws.Signaled()}
		if st.Exited {
			st.Code = ws.ExitStatus()
		}
		if st.Signaled {
			st.Signal = ws.Signal().String()
		}
		return pid, st, nil
	}
}

// notifyTermination subscribes ch to child termination signals.
func notifyTermination(ch chan<- os.Signal) {
	signal.Notify(ch, unix.SIGCHLD)
}

// stopNotify undoes notifyTermination.
func stopNotify(ch chan<- os.Signal) {
	signal.Stop(ch)
}
