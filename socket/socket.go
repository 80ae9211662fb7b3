/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

// Package socket defines the data model and handler contract shared by the
// accept loop, the connection I/O path and the client registry: ClientInfo,
// the per-connection lifecycle state, and the Handler/FilterHandler
// function types the caller supplies to Server.Run.
package socket

import (
	"strings"
	"time"

	"github.com/sabouaram/tcpcore/netproto"
)

// DefaultBufferSize is used when a Config leaves BufferSize unset.
const DefaultBufferSize = 32 * 1024

// EOL is the line terminator byte line-oriented handlers may split on.
const EOL = byte('\n')

// ConnState is the per-connection lifecycle state from spec section 4.7:
// New -> Active <-> Handling -> Closed.
type ConnState uint8

const (
	StateNew ConnState = iota
	StateActive
	StateHandling
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateHandling:
		return "handling"
	case StateClosed:
		return "closed"
	default:
		return "unknown connection state"
	}
}

// ClientInfo is the user-visible descriptor of a connected peer, mutated by
// ConnectionIO on each event and handed to the Handler by reference for the
// duration of a single call; callers must not retain it past the call.
type ClientInfo struct {
	IP          string
	Port        int
	ConnectedAt time.Time
	SID         uint64
	UID         []int64
	GID         []int64
	USize       int
	Count       uint64

	proto netproto.Protocol
	state ConnState
}

// NewClientInfo builds a fresh ClientInfo for an accepted connection, with
// the uid/gid identity slots seeded to [0] per spec's data model.
func NewClientInfo(ip string, port int, proto netproto.Protocol) *ClientInfo {
	return &ClientInfo{
		IP:          ip,
		Port:        port,
		ConnectedAt: time.Now(),
		UID:         []int64{0},
		GID:         []int64{0},
		proto:       proto,
		state:       StateNew,
	}
}

// Network reports the protocol the connection was accepted on.
func (c *ClientInfo) Network() netproto.Protocol {
	return c.proto
}

// State reports the lifecycle state recorded on this ClientInfo. It is set
// to StateNew by NewClientInfo; the server core does not update it as the
// connection moves through its lifecycle.
func (c *ClientInfo) State() ConnState {
	return c.state
}

// Handler is the application-supplied callback invoked with each read
// buffer. It may flip keepalive to true to keep the connection open, set
// broadcast to fan its reply out to peers, mutate client (uid/gid are the
// only fields it should touch), and replace filter to restrict broadcast
// recipients. It returns the bytes to send back to the originating client;
// an empty reply is legal and still triggers a write.
type Handler func(input []byte, keepalive *bool, broadcast *bool, client *ClientInfo, filter *FilterHandler) []byte

// FilterHandler predicates over a ClientInfo to restrict broadcast
// recipients. The default, installed before every Handler call, accepts
// every peer.
type FilterHandler func(c *ClientInfo) bool

// AcceptAll is the default FilterHandler: every live peer is eligible.
func AcceptAll(*ClientInfo) bool { return true }

// ErrorFilter swallows the exact "use of closed network connection" error
// net.Conn produces when a socket this core itself closed races a pending
// read/write; any other error, including one that merely mentions that
// phrase as part of a longer message, passes through unchanged.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.Error()) == "use of closed network connection" {
		return nil
	}
	return err
}
