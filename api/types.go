// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// ConnState enumerates the lifecycle of an event-loop connection.
type ConnState int

const (
	StateAwaitingRequest ConnState = iota
	StateResponsePending
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting_request"
	case StateResponsePending:
		return "response_pending"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Interest is the set of readiness events a descriptor is registered for.
type Interest uint8

const (
	InterestNone  Interest = 0
	InterestRead  Interest = 1 << 0
	InterestWrite Interest = 1 << 1
)

// Interest returns the readiness interest a connection in state s must hold.
// Closing connections hold none and are about to be unregistered.
func (s ConnState) Interest() Interest {
	switch s {
	case StateAwaitingRequest:
		return InterestRead
	case StateResponsePending:
		return InterestWrite
	default:
		return InterestNone
	}
}

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestRead | InterestWrite:
		return "read|write"
	default:
		return "none"
	}
}
