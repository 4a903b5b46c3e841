// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness reactor interface.

package reactor

import "github.com/momentics/hioload-httpd/api"

// DefaultMaxEvents is the number of events collected per Wait.
const DefaultMaxEvents = 128

// EventReactor defines basic readiness operations across OS platforms.
type EventReactor interface {
	// Add registers fd with the given interest.
	Add(fd int, interest api.Interest) error

	// Modify replaces the interest of a registered fd.
	Modify(fd int, interest api.Interest) error

	// Remove unregisters fd. The descriptor itself is not closed.
	Remove(fd int) error

	// Wait blocks until at least one descriptor is ready, Wake is called or
	// timeoutMs elapses (negative blocks indefinitely). An interrupted wait
	// returns no events and no error.
	Wait(timeoutMs int) ([]Event, error)

	// Wake interrupts a concurrent or the next Wait.
	Wake() error

	// Close releases the reactor resources.
	Close() error
}

// Event contains readiness information returned by Wait.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	// Hangup reports an error or hangup condition. The owner should still
	// attempt its pending read or write to observe the actual error.
	Hangup bool
}
