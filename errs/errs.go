/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package errs provides the error type used across the server core: a
// numeric code, a message, an optional chain of parent errors and
// compatibility with the standard errors.Is/errors.As functions.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Error extends the standard error with a code and a parent chain.
type Error interface {
	error

	// Code returns the numeric classification of this error.
	Code() CodeError
	// IsCode reports whether this error's own code matches.
	IsCode(code CodeError) bool
	// HasCode reports whether this error or any parent carries the code.
	HasCode(code CodeError) bool

	// Add appends non-nil parent errors to the chain.
	Add(parent ...error)
	// Parents returns the direct parent errors, in the order they were added.
	Parents() []error

	// Unwrap gives errors.Is/errors.As access to the parent chain.
	Unwrap() []error
}

type ers struct {
	code CodeError
	msg  string
	par  []error
}

func (e *ers) Error() string {
	if len(e.par) == 0 {
		return e.msg
	}

	var b strings.Builder
	b.WriteString(e.msg)
	for _, p := range e.par {
		b.WriteString(": ")
		b.WriteString(p.Error())
	}
	return b.String()
}

func (e *ers) Code() CodeError {
	return e.code
}

func (e *ers) IsCode(code CodeError) bool {
	return e.code == code
}

func (e *ers) HasCode(code CodeError) bool {
	if e.code == code {
		return true
	}
	for _, p := range e.par {
		if Has(p, code) {
			return true
		}
	}
	return false
}

func (e *ers) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.par = append(e.par, p)
		}
	}
}

func (e *ers) Parents() []error {
	return e.par
}

func (e *ers) Unwrap() []error {
	return e.par
}

// New builds a new Error with the given code, message and optional parents.
func New(code CodeError, message string, parent ...error) Error {
	e := &ers{code: code, msg: message}
	e.Add(parent...)
	return e
}

// Newf is New with fmt.Sprintf-style formatting of the message.
func Newf(code CodeError, pattern string, args ...any) Error {
	return New(code, fmt.Sprintf(pattern, args...))
}

// Make wraps a plain error into an Error, reusing it unchanged if it
// already implements Error.
func Make(e error) Error {
	if e == nil {
		return nil
	}

	var ex Error
	if errors.As(e, &ex) {
		return ex
	}

	return &ers{code: CodeUnknown, msg: e.Error()}
}

// Is reports whether e is (or wraps) an *Error.
func Is(e error) bool {
	var ex Error
	return errors.As(e, &ex)
}

// Get returns e as an Error, or nil if it isn't one.
func Get(e error) Error {
	var ex Error
	if errors.As(e, &ex) {
		return ex
	}
	return nil
}

// Has reports whether e or any of its parents carries the given code.
func Has(e error, code CodeError) bool {
	if ex := Get(e); ex != nil {
		return ex.HasCode(code)
	}
	return false
}
