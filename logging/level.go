/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

// Package logging provides the structured leveled logger used across the
// server core: connection lifecycle, accept/dispatch errors and shutdown
// are all traced through an Entry-style fluent API backed by logrus.
package logging

import "github.com/sirupsen/logrus"

// Level mirrors logrus's severity scale, kept as its own type so the core
// never imports logrus outside this package.
type Level uint8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	NilLevel
)

func (l Level) toLogrus() logrus.Level {
	switch l {
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	default:
		return logrus.PanicLevel
	}
}

func (l Level) String() string {
	switch l {
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	default:
		return ""
	}
}
