//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-httpd/api"
	"golang.org/x/sys/unix"
)

// linuxReactor is a level-triggered epoll reactor with an eventfd for wakeups.
type linuxReactor struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent
	out    []Event
}

// NewReactor constructs a new platform-specific EventReactor for Linux.
func NewReactor(maxEvents int) (EventReactor, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}
	return &linuxReactor{
		epfd:   epfd,
		wakefd: wakefd,
		raw:    make([]unix.EpollEvent, maxEvents),
		out:    make([]Event, 0, maxEvents),
	}, nil
}

func epollMask(interest api.Interest) uint32 {
	var mask uint32
	if interest&api.InterestRead != 0 {
		mask |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&api.InterestWrite != 0 {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Add adds file descriptor to epoll.
func (r *linuxReactor) Add(fd int, interest api.Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Modify changes the interest set of fd.
func (r *linuxReactor) Modify(fd int, interest api.Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Remove removes fd from the epoll watch list.
func (r *linuxReactor) Remove(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait waits for epoll events. The returned slice is reused by the next call.
func (r *linuxReactor) Wait(timeoutMs int) ([]Event, error) {
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(r.epfd, r.raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil // interrupted by signal, normal
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}
	r.out = r.out[:0]
	for i := 0; i < n; i++ {
		raw := r.raw[i]
		fd := int(raw.Fd)
		if fd == r.wakefd {
			r.drainWake()
			continue
		}
		r.out = append(r.out, Event{
			Fd:       fd,
			Readable: raw.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
			Hangup:   raw.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return r.out, nil
}

func (r *linuxReactor) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakefd, buf[:]); err != unix.EINTR {
			return
		}
	}
}

// Wake signals the eventfd so a blocked Wait returns.
func (r *linuxReactor) Wake() error {
	one := [8]byte{1}
	for {
		_, err := unix.Write(r.wakefd, one[:])
		switch err {
		case nil, unix.EAGAIN:
			// EAGAIN means the counter is saturated; a wakeup is already pending.
			return nil
		case unix.EINTR:
			continue
		default:
			return fmt.Errorf("eventfd write: %w", err)
		}
	}
}

// Close closes the epoll instance and the wakeup descriptor.
func (r *linuxReactor) Close() error {
	werr := unix.Close(r.wakefd)
	if err := unix.Close(r.epfd); err != nil {
		return err
	}
	return werr
}
