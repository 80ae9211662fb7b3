/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

// Package tlsconfig builds a *tls.Config for the server core from a
// certificate file, a private key file, a minimum protocol version tag, a
// cipher selection string and an engine-specific flags bitmask, mirroring
// the corpus's certificates package collapsed to the server-only subset
// this core needs.
package tlsconfig

import (
	"crypto/tls"
	"strings"

	"github.com/sabouaram/tcpcore/errs"
)

// Version is a TLS minimum-version tag, parsed from strings like "1.2".
type Version int

const (
	VersionTLS10 Version = Version(tls.VersionTLS10)
	VersionTLS11 Version = Version(tls.VersionTLS11)
	VersionTLS12 Version = Version(tls.VersionTLS12)
	VersionTLS13 Version = Version(tls.VersionTLS13)
)

// ParseVersion converts a dotted version string into a Version, defaulting
// to TLS 1.2 for an empty or unrecognized string.
func ParseVersion(s string) Version {
	switch strings.TrimSpace(s) {
	case "1.0":
		return VersionTLS10
	case "1.1":
		return VersionTLS11
	case "1.3":
		return VersionTLS13
	default:
		return VersionTLS12
	}
}

// Flags is an engine-specific bitmask applied on top of the parsed cipher
// suites and version, e.g. to require the server's cipher preference.
type Flags uint32

const (
	FlagPreferServerCipherSuites Flags = 1 << iota
	FlagSessionTicketsDisabled
)

// cipherByName maps the subset of named cipher suites this core accepts
// through the ciphers string, matching the corpus's cipher package in
// spirit (name -> crypto/tls constant).
var cipherByName = map[string]uint16{
	"ECDHE-RSA-AES128-GCM-SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-RSA-AES256-GCM-SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-RSA-CHACHA20-POLY1305":   tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	"ECDHE-ECDSA-AES128-GCM-SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-ECDSA-AES256-GCM-SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
}

// ParseCiphers splits a colon-separated cipher name list into crypto/tls
// cipher suite identifiers. Unknown names are skipped.
func ParseCiphers(s string) []uint16 {
	if s == "" {
		return nil
	}

	var out []uint16
	for _, name := range strings.Split(s, ":") {
		if id, ok := cipherByName[strings.TrimSpace(name)]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Engine builds and caches the *tls.Config for a listening socket.
type Engine struct {
	cfg *tls.Config
	ok  bool
}

// Build loads certFile/keyFile and assembles a server-side *tls.Config.
// When the pair cannot be loaded it returns a non-ok Engine (IsOK() ==
// false) together with an errs.Error carrying CodeTLSCertLoad.
func Build(certFile, keyFile string, version Version, ciphers string, flags Flags) (*Engine, errs.Error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return &Engine{ok: false}, errs.New(errs.CodeTLSCertLoad, "loading certificate pair", err)
	}

	cfg := &tls.Config{
		Certificates:             []tls.Certificate{cert},
		MinVersion:               uint16(version),
		PreferServerCipherSuites: flags&FlagPreferServerCipherSuites != 0, //nolint:staticcheck
		SessionTicketsDisabled:   flags&FlagSessionTicketsDisabled != 0,
	}

	if cs := ParseCiphers(ciphers); len(cs) > 0 {
		cfg.CipherSuites = cs
	}

	return &Engine{cfg: cfg, ok: true}, nil
}

// IsOK reports whether both files loaded and a context was produced.
func (e *Engine) IsOK() bool {
	return e != nil && e.ok
}

// Config returns the built *tls.Config, or nil if IsOK() is false.
func (e *Engine) Config() *tls.Config {
	if e == nil {
		return nil
	}
	return e.cfg
}
