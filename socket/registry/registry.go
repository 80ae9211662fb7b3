/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

// Package registry is the ClientRegistry: the mapping from socket
// descriptor to per-connection MetaData, plus the free-SID queue and the
// monotonic SID counter. Per spec section 5, every operation here runs on
// the event-loop goroutine only, so no locking is used — confinement to a
// single goroutine is the synchronization strategy, not a mutex.
package registry

import (
	"github.com/sabouaram/tcpcore/netproto"
	"github.com/sabouaram/tcpcore/socket"
	"github.com/sabouaram/tcpcore/socket/tlsengine"
)

// MetaData pairs a live ClientInfo with its optional TLS session.
type MetaData struct {
	Client *socket.ClientInfo
	TLS    tlsengine.Session
}

// Registry is the fd -> MetaData map with FIFO session-ID recycling.
type Registry struct {
	entries map[int]*MetaData
	freeSID []uint64
	nextSID uint64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[int]*MetaData)}
}

// Insert creates a MetaData for fd, assigns it a session ID (reusing the
// oldest recycled ID if the free queue is non-empty, otherwise incrementing
// the counter), and returns it.
func (r *Registry) Insert(fd int, ip string, port int, proto netproto.Protocol) *MetaData {
	client := socket.NewClientInfo(ip, port, proto)

	if len(r.freeSID) > 0 {
		client.SID = r.freeSID[0]
		r.freeSID = r.freeSID[1:]
	} else {
		r.nextSID++
		client.SID = r.nextSID
	}

	md := &MetaData{Client: client}
	r.entries[fd] = md
	return md
}

// Get returns the MetaData for fd, or nil if fd is not registered.
func (r *Registry) Get(fd int) *MetaData {
	return r.entries[fd]
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Erase recycles fd's session ID and removes its entry. Erasing an fd that
// is not registered is a no-op (idempotent per spec's open question #1),
// returning nil.
func (r *Registry) Erase(fd int) *MetaData {
	md, ok := r.entries[fd]
	if !ok {
		return nil
	}

	delete(r.entries, fd)
	r.freeSID = append(r.freeSID, md.Client.SID)
	return md
}

// ForEachExcept enumerates every live entry except originFD, calling fn for
// each. fn may itself trigger removal of the currently-visited entry (e.g.
// via a caller-driven Erase during broadcast); iteration tolerates this
// because Go's map iteration already allows deleting the current key
// mid-range.
func (r *Registry) ForEachExcept(originFD int, fn func(fd int, md *MetaData)) {
	for fd, md := range r.entries {
		if fd == originFD {
			continue
		}
		fn(fd, md)
	}
}
