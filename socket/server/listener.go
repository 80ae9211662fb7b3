/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package server

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/tcpcore/errs"
)

const listenBacklog = 511

// newListener builds the IPv4 TCP listening socket per spec section 4.6:
// SO_REUSEPORT enabled, send/receive timeouts set, bound, non-blocking,
// listening with a 511 backlog.
func newListener(host string, port uint16, timeoutSec int64) (int, errs.Error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errs.New(errs.CodeListenCreate, "creating listening socket", err)
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errs.New(errs.CodeListenOpt, "setting SO_REUSEPORT", err)
	}

	tv := unix.NsecToTimeval(timeoutSec * 1e9)
	if err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return -1, errs.New(errs.CodeListenOpt, "setting SO_SNDTIMEO", err)
	}
	if err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return -1, errs.New(errs.CodeListenOpt, "setting SO_RCVTIMEO", err)
	}

	addr, err := ipv4Addr(host, port)
	if err != nil {
		_ = unix.Close(fd)
		return -1, errs.New(errs.CodeListenBind, "parsing bind address", err)
	}

	if err = unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, errs.New(errs.CodeListenBind, "binding listener", err)
	}

	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, errs.New(errs.CodeListenOpt, "setting listener non-blocking", err)
	}

	if err = unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, errs.New(errs.CodeListenBind, "listening", err)
	}

	return fd, nil
}

func ipv4Addr(host string, port uint16) (*unix.SockaddrInet4, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv4zero
	}
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}

	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], v4)
	return sa, nil
}
