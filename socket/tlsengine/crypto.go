/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package tlsengine

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// cryptoEngine implements Engine over the standard library's crypto/tls,
// driving the handshake and record layer through a net.Conn adapter that
// talks directly to the non-blocking raw file descriptor.
type cryptoEngine struct {
	cfg *tls.Config
	ok  bool
}

// NewCryptoEngine wraps an already-built *tls.Config. A nil cfg yields an
// Engine whose IsOK() is false.
func NewCryptoEngine(cfg *tls.Config) Engine {
	return &cryptoEngine{cfg: cfg, ok: cfg != nil}
}

func (e *cryptoEngine) IsOK() bool {
	return e.ok
}

func (e *cryptoEngine) Attach(fd int) (Session, error) {
	conn := &fdConn{fd: fd}
	return &cryptoSession{conn: conn, tls: tls.Server(conn, e.cfg)}, nil
}

func (e *cryptoEngine) Read(sess Session, buf []byte) (int, Status, error) {
	s := sess.(*cryptoSession)
	n, err := s.tls.Read(buf)
	return n, classify(err), err
}

func (e *cryptoEngine) Write(sess Session, data []byte) (int, Status, error) {
	s := sess.(*cryptoSession)
	n, err := s.tls.Write(data)
	return n, classify(err), err
}

// classify maps an error returned by *tls.Conn into the Status discriminant
// the core's connection I/O path dispatches on.
func classify(err error) Status {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, syscall.EINTR) {
		return StatusInterrupted
	}
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		return StatusWouldBlock
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusWouldBlock
	}
	return StatusFatal
}

type cryptoSession struct {
	conn *fdConn
	tls  *tls.Conn
}

func (s *cryptoSession) Close() error {
	_ = s.tls.Close()
	return s.conn.Close()
}

// fdConn is a minimal net.Conn over a non-blocking raw file descriptor,
// letting crypto/tls drive the handshake and record layer directly against
// the epoll-managed socket instead of a goroutine-per-connection net.Conn.
type fdConn struct {
	fd int
}

func (c *fdConn) Read(b []byte) (int, error) {
	n, err := unix.Read(c.fd, b)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *fdConn) Write(b []byte) (int, error) {
	return unix.Write(c.fd, b)
}

func (c *fdConn) Close() error {
	return unix.Close(c.fd)
}

func (c *fdConn) LocalAddr() net.Addr  { return fdAddr{} }
func (c *fdConn) RemoteAddr() net.Addr { return fdAddr{} }

func (c *fdConn) SetDeadline(t time.Time) error     { return nil }
func (c *fdConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fdConn) SetWriteDeadline(t time.Time) error { return nil }

type fdAddr struct{}

func (fdAddr) Network() string { return "tcp" }
func (fdAddr) String() string  { return "" }
