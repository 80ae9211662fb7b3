/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

// Package reactor is the ReadinessLoop: a thin wrapper over Linux epoll
// that registers/unregisters descriptors and dispatches one callback per
// ready event. Wait is woken by a dedicated eventfd rather than relying on
// EINTR, because the Go runtime installs SA_RESTART for signals handled
// through signal.Notify, so a blocking epoll_wait would otherwise never
// observe the interrupt the way the original C core's bare sigaction does.
package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Interest is a set of readiness conditions to watch a descriptor for.
type Interest uint32

const (
	Read Interest = 1 << iota
	Write
	Hangup
	EdgeTriggered
)

func (i Interest) toEpoll() uint32 {
	var e uint32
	if i&Read != 0 {
		e |= unix.EPOLLIN
	}
	if i&Write != 0 {
		e |= unix.EPOLLOUT
	}
	if i&Hangup != 0 {
		e |= unix.EPOLLRDHUP
	}
	if i&EdgeTriggered != 0 {
		e |= unix.EPOLLET
	}
	return e
}

// Event is one readiness notification delivered to the dispatch callback.
type Event struct {
	FD       int
	Readable bool
	Writable bool
	Hangup   bool
	Error    bool
}

// Loop is a single epoll instance plus its wake-up eventfd.
type Loop struct {
	epfd   int
	wakeFD int
	events []unix.EpollEvent
}

// New creates an epoll instance sized for maxEvents per Wait call, and
// registers its internal wake-up descriptor for READ so Shutdown's Wake
// call always interrupts a blocked Wait.
func New(maxEvents int) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	l := &Loop{
		epfd:   epfd,
		wakeFD: wakeFD,
		events: make([]unix.EpollEvent, maxEvents),
	}

	if err = l.rawAdd(wakeFD, Read); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFD)
		return nil, err
	}

	return l, nil
}

func (l *Loop) rawAdd(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: interest.toEpoll(), Fd: int32(fd)}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Add registers fd for the given interest set.
func (l *Loop) Add(fd int, interest Interest) error {
	return l.rawAdd(fd, interest)
}

// Remove unregisters fd. It is safe to call on an fd already removed or
// never added; the underlying ENOENT is swallowed.
func (l *Loop) Remove(fd int) error {
	err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

// Wake interrupts a blocked WaitAndDispatch call without losing any events
// already queued by the kernel.
func (l *Loop) Wake() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(l.wakeFD, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// WaitAndDispatch blocks until at least one event is ready, then invokes cb
// once per event. The internal wake event is drained here and never passed
// to cb.
func (l *Loop) WaitAndDispatch(cb func(Event)) error {
	n, err := unix.EpollWait(l.epfd, l.events, -1)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		e := l.events[i]
		fd := int(e.Fd)

		if fd == l.wakeFD {
			drainWake(l.wakeFD)
			continue
		}

		cb(Event{
			FD:       fd,
			Readable: e.Events&unix.EPOLLIN != 0,
			Writable: e.Events&unix.EPOLLOUT != 0,
			Hangup:   e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			Error:    e.Events&unix.EPOLLERR != 0,
		})
	}

	return nil
}

func drainWake(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}

// Close releases the epoll instance and its wake-up descriptor.
func (l *Loop) Close() error {
	_ = unix.Close(l.wakeFD)
	return unix.Close(l.epfd)
}
