/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

// Package server is the top-level Server object from spec section 4.6: it
// owns the listening socket, the ClientRegistry, the optional TlsEngine and
// worker pool, installs signal handlers, and drives the ReadinessLoop.
package server

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/tcpcore/errs"
	"github.com/sabouaram/tcpcore/logging"
	"github.com/sabouaram/tcpcore/socket"
	"github.com/sabouaram/tcpcore/socket/config"
	"github.com/sabouaram/tcpcore/socket/reactor"
	"github.com/sabouaram/tcpcore/socket/registry"
	"github.com/sabouaram/tcpcore/socket/tlsengine"
	"github.com/sabouaram/tcpcore/socket/workerpool"
	"github.com/sabouaram/tcpcore/tlsconfig"
)

// Server is the event-driven TCP server core.
type Server struct {
	cfg config.Server
	log logging.Logger

	listenFD int
	loop     *reactor.Loop
	reg      *registry.Registry
	tls      tlsengine.Engine
	pool     *workerpool.Pool
	inflight map[int]bool
	pending  map[int]bool

	running atomic.Bool
	started atomic.Bool
}

// New builds the listening socket per cfg but does not start the loop.
func New(cfg config.Server, log logging.Logger) (*Server, errs.Error) {
	if log == nil {
		log = logging.New(logging.InfoLevel, os.Stderr)
	}

	timeout := int64(cfg.Timeout.Seconds())
	fd, err := newListener(cfg.Host, cfg.Port, timeout)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		listenFD: fd,
		reg:      registry.New(),
		inflight: make(map[int]bool),
		pending:  make(map[int]bool),
	}, nil
}

// SetTLS constructs the TLS engine from the given material. It must be
// called before Run. It returns false (and leaves the server plaintext)
// when the certificate/key could not be loaded.
func (s *Server) SetTLS(cert, key, version, ciphers string, flags tlsconfig.Flags) bool {
	eng, err := tlsconfig.Build(cert, key, tlsconfig.ParseVersion(version), ciphers, flags)
	if err != nil {
		s.log.Entry(logging.WarnLevel, "tls configuration failed").Err(err).Log()
		return false
	}
	if !eng.IsOK() {
		return false
	}

	s.tls = tlsengine.NewCryptoEngine(eng.Config())
	return true
}

// IsTLS reports whether a working TLS engine is attached.
func (s *Server) IsTLS() bool {
	return s.tls != nil && s.tls.IsOK()
}

// ClientCount reports the number of live connections.
func (s *Server) ClientCount() int {
	return s.reg.Len()
}

// Run installs signal handlers for SIGTERM/SIGINT/SIGQUIT, registers the
// listening socket with the readiness loop, and dispatches events until a
// signal clears the running flag. It returns once shutdown is complete and
// every client descriptor has been closed.
func (s *Server) Run(handler socket.Handler) errs.Error {
	if !s.started.CompareAndSwap(false, true) {
		return errs.New(errs.CodeAlreadyRunning, "server already running")
	}

	loop, err := reactor.New(s.cfg.MaxEventSizeOrDefault())
	if err != nil {
		return errs.New(errs.CodeEpollCreate, "creating readiness loop", err)
	}
	s.loop = loop
	defer loop.Close()

	if err = loop.Add(s.listenFD, reactor.Read|reactor.EdgeTriggered); err != nil {
		return errs.New(errs.CodeEpollCtl, "registering listener", err)
	}

	sigCh := make(chan os.Signal, 3)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	if s.cfg.ThreadSize > 0 {
		s.pool = workerpool.New(s.cfg.ThreadSize)
	}

	s.running.Store(true)

	go func() {
		<-sigCh
		s.running.Store(false)
		_ = s.loop.Wake()
	}()

	dispatch := s.dispatcher(handler)

	for s.running.Load() {
		if werr := s.loop.WaitAndDispatch(dispatch); werr != nil {
			s.log.Entry(logging.ErrorLevel, "readiness wait failed").Err(werr).Log()
			break
		}
		s.drainPoolResults()
	}

	// Close the pool (and drain its trailing results) before forcing any
	// remaining descriptors closed, so a fd with a job still in flight is
	// never closed out from under its worker goroutine.
	if s.pool != nil {
		s.pool.Close()
		s.drainPoolResults()
	}

	s.shutdownAll()

	return nil
}

// Shutdown requests graceful shutdown, equivalent to receiving one of the
// handled signals.
func (s *Server) Shutdown() {
	if s.running.CompareAndSwap(true, false) && s.loop != nil {
		_ = s.loop.Wake()
	}
}

// dispatcher, for a non-listener fd, always gives a readable event the
// chance to drain buffered data before acting on hangup/error: under
// edge-triggered epoll a peer's final bytes and its RDHUP commonly arrive
// on the same event, so a hangup is only acted on once nothing is left to
// read.
func (s *Server) dispatcher(handler socket.Handler) func(reactor.Event) {
	return func(ev reactor.Event) {
		if ev.FD == s.listenFD {
			s.acceptLoop()
			return
		}

		if ev.Readable {
			s.handleReadable(ev.FD, handler)
			return
		}

		if ev.Hangup || ev.Error {
			s.handleHangup(ev.FD)
		}
	}
}

func (s *Server) drainPoolResults() {
	if s.pool == nil {
		return
	}
	for {
		select {
		case res, ok := <-s.pool.Results():
			if !ok {
				return
			}
			delete(s.inflight, res.FD)
			if bc, okPayload := res.Payload.(*broadcastReq); okPayload {
				s.broadcast(res.FD, bc)
			}
			disconnect := res.Disconnect
			if s.pending[res.FD] {
				delete(s.pending, res.FD)
				disconnect = true
			}
			if disconnect {
				s.disconnect(res.FD)
			}
		default:
			return
		}
	}
}

func (s *Server) shutdownAll() {
	s.reg.ForEachExcept(-1, func(fd int, _ *registry.MetaData) {
		s.disconnect(fd)
	})
	_ = unix.Close(s.listenFD)
}
