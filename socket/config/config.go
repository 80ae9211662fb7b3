/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 */

// Package config holds the tunables accepted by the Server constructor:
// the bind address, listener timeouts, per-read buffer size, epoll event
// capacity, optional worker pool size and optional TLS material.
package config

import (
	"time"

	"github.com/sabouaram/tcpcore/netproto"
	"github.com/sabouaram/tcpcore/socket"
	"github.com/sabouaram/tcpcore/tlsconfig"
)

// Server is the configuration accepted by socket/server.New.
type Server struct {
	// Network tags the configuration's protocol; the listener always binds
	// an IPv4 TCP socket regardless of its value.
	Network netproto.Protocol
	// Host is the IPv4 dotted-quad address to bind.
	Host string
	// Port is the TCP port to bind.
	Port uint16
	// Timeout is applied as SO_SNDTIMEO/SO_RCVTIMEO on the listening socket.
	Timeout time.Duration
	// BufferSize is the per-read buffer size; defaults to socket.DefaultBufferSize.
	BufferSize int
	// MaxEventSize is the epoll_wait event batch capacity; defaults to 128.
	MaxEventSize int
	// ThreadSize, if > 0, enables the bounded worker pool for handler dispatch.
	ThreadSize int
	// TLS is optional TLS material; a zero value means plaintext only.
	TLS TLS
}

// TLS holds the optional server-side certificate material.
type TLS struct {
	CertFile string
	KeyFile  string
	Version  string // parsed by tlsconfig.ParseVersion, e.g. "1.2"
	Ciphers  string // colon separated cipher names
	Flags    tlsconfig.Flags
}

// Enabled reports whether TLS material was configured at all.
func (t TLS) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// BufferSizeOrDefault returns BufferSize, falling back to the package
// default when unset or non-positive.
func (s Server) BufferSizeOrDefault() int {
	if s.BufferSize > 0 {
		return s.BufferSize
	}
	return socket.DefaultBufferSize
}

// MaxEventSizeOrDefault returns MaxEventSize, falling back to 128.
func (s Server) MaxEventSizeOrDefault() int {
	if s.MaxEventSize > 0 {
		return s.MaxEventSize
	}
	return 128
}
