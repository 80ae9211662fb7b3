/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package logging

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is a minimal structured logger: a named source of Entry values at
// a configurable minimum level, with pluggable output hooks.
type Logger interface {
	// SetLevel changes the minimum level entries must meet to be emitted.
	SetLevel(lvl Level)
	// SetOutput redirects where formatted entries are written.
	SetOutput(w io.Writer)
	// Entry starts a new fluent log record at the given level.
	Entry(lvl Level, msg string) Entry
}

type logger struct {
	mu  sync.Mutex
	log *logrus.Logger
}

// New returns a Logger writing JSON-formatted entries to w at lvl, in the
// style of the corpus's hookstdout/hookfile/hookstderr sinks collapsed into
// a single writer for this core.
func New(lvl Level, w io.Writer) Logger {
	l := logrus.New()
	l.SetLevel(lvl.toLogrus())
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(w)

	return &logger{log: l}
}

func (g *logger) SetLevel(lvl Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.SetLevel(lvl.toLogrus())
}

func (g *logger) SetOutput(w io.Writer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.SetOutput(w)
}

func (g *logger) Entry(lvl Level, msg string) Entry {
	return &entry{
		log:    g.log,
		lvl:    lvl,
		msg:    msg,
		fields: logrus.Fields{},
	}
}

// Entry is a single fluent log record: fields and errors are attached
// before Log() emits it, mirroring the corpus's logger/entry builder.
type Entry interface {
	Field(key string, val any) Entry
	Err(err error) Entry
	Log()
}

type entry struct {
	log    *logrus.Logger
	lvl    Level
	msg    string
	fields logrus.Fields
	errs   []error
}

func (e *entry) Field(key string, val any) Entry {
	e.fields[key] = val
	return e
}

func (e *entry) Err(err error) Entry {
	if err != nil {
		e.errs = append(e.errs, err)
	}
	return e
}

func (e *entry) Log() {
	if e.lvl == NilLevel {
		return
	}

	fields := e.fields
	if len(e.errs) > 0 {
		msgs := make([]string, 0, len(e.errs))
		for _, err := range e.errs {
			msgs = append(msgs, err.Error())
		}
		fields["errors"] = msgs
	}

	e.log.WithFields(fields).Log(e.lvl.toLogrus(), e.msg)
}
