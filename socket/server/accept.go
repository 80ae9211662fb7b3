/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package server

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/tcpcore/logging"
	"github.com/sabouaram/tcpcore/netproto"
	"github.com/sabouaram/tcpcore/socket/reactor"
)

// acceptLoop accepts connections on the listening socket until accept
// returns EAGAIN or shutdown is requested, per spec section 4.5.
func (s *Server) acceptLoop() {
	for s.running.Load() {
		fd, sa, err := unix.Accept4(s.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				s.log.Entry(logging.WarnLevel, "accept failed").Err(err).Log()
			}
			return
		}

		ip, port := peerAddr(sa)

		if addErr := s.loop.Add(fd, reactor.Read|reactor.Hangup|reactor.EdgeTriggered); addErr != nil {
			s.log.Entry(logging.WarnLevel, "registering accepted socket failed").Err(addErr).Log()
			_ = unix.Close(fd)
			continue
		}

		md := s.reg.Insert(fd, ip, port, netproto.TCP)

		if s.tls != nil && s.tls.IsOK() {
			sess, attachErr := s.tls.Attach(fd)
			if attachErr != nil {
				s.reg.Erase(fd)
				_ = s.loop.Remove(fd)
				_ = unix.Shutdown(fd, unix.SHUT_RDWR)
				_ = unix.Close(fd)
				continue
			}
			md.TLS = sess
		}
	}
}

func peerAddr(sa unix.Sockaddr) (string, int) {
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		return fmt.Sprintf("%d.%d.%d.%d", v4.Addr[0], v4.Addr[1], v4.Addr[2], v4.Addr[3]), v4.Port
	}
	return "", 0
}

// disconnect performs del_client from spec section 4.3/4.7: erase the
// registry entry, shutdown+close the descriptor (for a TLS client, close
// the session, which closes the descriptor without a shutdown), recycle
// the SID. It is idempotent: disconnecting an fd already removed is a no-op.
func (s *Server) disconnect(fd int) {
	md := s.reg.Erase(fd)
	if md == nil {
		return
	}

	_ = s.loop.Remove(fd)

	if md.TLS != nil {
		_ = md.TLS.Close()
	} else {
		_ = unix.Shutdown(fd, unix.SHUT_RDWR)
		_ = unix.Close(fd)
	}

	delete(s.inflight, fd)
	delete(s.pending, fd)
}

// handleHangup processes a HANGUP/error event carrying no readable data. A
// worker-pool job may still be reading or writing fd's own socket, so the
// descriptor must not be erased/closed out from under it: fd is instead
// marked pending and disconnected once drainPoolResults observes that job's
// result, keeping every registry mutation on the loop goroutine.
func (s *Server) handleHangup(fd int) {
	if s.pool != nil && s.inflight[fd] {
		s.pending[fd] = true
		return
	}
	s.disconnect(fd)
}
