/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package errs

// CodeError classifies errors raised by the server core, mirroring the
// corpus's habit of giving every failure a stable numeric identity instead
// of matching on message strings.
type CodeError uint32

const (
	CodeUnknown CodeError = iota
	// CodeListenCreate: socket() failed while building the listener.
	CodeListenCreate
	// CodeListenBind: bind() failed on the configured host:port.
	CodeListenBind
	// CodeListenOpt: a listener sockopt (reuseport/timeouts) could not be set.
	CodeListenOpt
	// CodeEpollCreate: the epoll instance could not be created.
	CodeEpollCreate
	// CodeEpollCtl: adding/removing a descriptor from epoll failed.
	CodeEpollCtl
	// CodeSignalInstall: signal handler installation failed.
	CodeSignalInstall
	// CodeTLSCertLoad: the certificate file could not be read/parsed.
	CodeTLSCertLoad
	// CodeTLSKeyLoad: the private key file could not be read/parsed.
	CodeTLSKeyLoad
	// CodeTLSContext: the TLS config/context could not be constructed.
	CodeTLSContext
	// CodeAccept: accept() returned an error other than would-block.
	CodeAccept
	// CodeAlreadyRunning: Run called twice on the same server.
	CodeAlreadyRunning
)

var names = map[CodeError]string{
	CodeUnknown:        "unknown",
	CodeListenCreate:   "listen-create",
	CodeListenBind:     "listen-bind",
	CodeListenOpt:      "listen-opt",
	CodeEpollCreate:    "epoll-create",
	CodeEpollCtl:       "epoll-ctl",
	CodeSignalInstall:  "signal-install",
	CodeTLSCertLoad:    "tls-cert-load",
	CodeTLSKeyLoad:     "tls-key-load",
	CodeTLSContext:     "tls-context",
	CodeAccept:         "accept",
	CodeAlreadyRunning: "already-running",
}

func (c CodeError) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown"
}
