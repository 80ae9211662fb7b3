/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package server

import (
	"golang.org/x/sys/unix"

	"github.com/sabouaram/tcpcore/socket"
	"github.com/sabouaram/tcpcore/socket/registry"
	"github.com/sabouaram/tcpcore/socket/tlsengine"
)

// broadcastReq carries a fan-out request from processConn back to whichever
// goroutine owns the registry: the loop goroutine directly when run inline,
// or drainPoolResults when the job ran on the worker pool. Broadcasting
// enumerates the registry, so it never runs inside a worker goroutine.
type broadcastReq struct {
	data   []byte
	filter socket.FilterHandler
}

// handleReadable is ConnectionIO from spec section 4.4: read, invoke the
// handler, write the reply, and optionally broadcast. When a worker pool is
// configured, the read/handler/write sequence is submitted as a job and
// at most one job per fd is kept in flight; the broadcast fan-out, which
// touches the registry, always completes back on the loop goroutine.
func (s *Server) handleReadable(fd int, handler socket.Handler) {
	md := s.reg.Get(fd)
	if md == nil {
		return
	}
	usize := s.reg.Len()

	if s.pool != nil {
		if s.inflight[fd] {
			return
		}
		s.inflight[fd] = true
		s.pool.Submit(fd, func() (bool, any) {
			return s.processConn(fd, md, handler, usize)
		})
		return
	}

	disconnect, payload := s.processConn(fd, md, handler, usize)
	if bc, ok := payload.(*broadcastReq); ok {
		s.broadcast(fd, bc)
	}
	if disconnect {
		s.disconnect(fd)
	}
}

// processConn performs a single read/handle/write cycle for fd. It is safe
// to run off the loop goroutine: it only touches md's own ClientInfo fields
// and the fd's own socket, never the registry's entry map, relying on the
// in-flight guard to keep it the sole user of this fd for its duration.
// usize is the registry size, read by the caller on the loop goroutine.
func (s *Server) processConn(fd int, md *registry.MetaData, handler socket.Handler, usize int) (disconnect bool, payload any) {
	buf := make([]byte, s.cfg.BufferSizeOrDefault())

	n, ok := s.readInto(fd, md, buf)
	if !ok {
		return true, nil
	}
	if n == 0 {
		return false, nil
	}

	md.Client.USize = usize
	md.Client.Count++

	keepalive := false
	doBroadcast := false
	filter := socket.FilterHandler(socket.AcceptAll)

	out := handler(buf[:n], &keepalive, &doBroadcast, md.Client, &filter)

	if !s.writeTo(fd, md, out) {
		return true, nil
	}

	if doBroadcast {
		payload = &broadcastReq{data: out, filter: filter}
	}

	return !keepalive, payload
}

// broadcast fans data out to every live peer except originFD, skipping any
// peer the filter rejects and disconnecting any peer a failed write leaves
// in an unknown state (through handleHangup, so a peer with a worker-pool
// job in flight is only marked pending). It must run on the loop goroutine:
// it enumerates and may mutate the registry.
func (s *Server) broadcast(originFD int, req *broadcastReq) {
	s.reg.ForEachExcept(originFD, func(fd int, md *registry.MetaData) {
		if req.filter != nil && !req.filter(md.Client) {
			return
		}
		if !s.writeTo(fd, md, req.data) {
			s.handleHangup(fd)
		}
	})
}

// readInto reads one chunk from fd into buf. ok is false when the
// connection must be disconnected (EOF, a second interrupt or a fatal
// error); when ok is true and n is 0, the call was benign (EAGAIN/WantRead)
// and the loop should simply wait for the next readiness notification.
func (s *Server) readInto(fd int, md *registry.MetaData, buf []byte) (n int, ok bool) {
	if md.TLS != nil {
		return s.readTLS(md, buf)
	}
	return s.readPlain(fd, buf)
}

func (s *Server) readPlain(fd int, buf []byte) (int, bool) {
	retried := false
	for {
		n, err := unix.Read(fd, buf)
		if err == nil {
			if n == 0 {
				return 0, false
			}
			return n, true
		}
		if err == unix.EINTR {
			if retried {
				return 0, false
			}
			retried = true
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, true
		}
		return 0, false
	}
}

func (s *Server) readTLS(md *registry.MetaData, buf []byte) (int, bool) {
	retried := false
	for {
		n, status, _ := s.tls.Read(md.TLS, buf)
		switch status {
		case tlsengine.StatusOK:
			if n == 0 {
				return 0, false
			}
			return n, true
		case tlsengine.StatusInterrupted:
			if retried {
				return 0, false
			}
			retried = true
			continue
		case tlsengine.StatusWantRead, tlsengine.StatusWantWrite, tlsengine.StatusWouldBlock:
			return 0, true
		default:
			return 0, false
		}
	}
}

// writeTo sends the single reply out on fd, returning false when the peer
// must be disconnected as a result.
func (s *Server) writeTo(fd int, md *registry.MetaData, out []byte) bool {
	if md.TLS != nil {
		return s.writeTLS(md, out)
	}
	return s.writePlain(fd, out)
}

// writePlain sends out unconditionally, including an empty reply, which
// still triggers a write; a send reporting <= 0 bytes transferred always
// disconnects the client, regardless of keepalive.
func (s *Server) writePlain(fd int, out []byte) bool {
	n, err := unix.Send(fd, out, unix.MSG_NOSIGNAL)
	if err != nil {
		return false
	}
	return n > 0
}

func (s *Server) writeTLS(md *registry.MetaData, out []byte) bool {
	n, status, _ := s.tls.Write(md.TLS, out)
	if status != tlsengine.StatusOK {
		return false
	}
	return n > 0
}
