// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
)

const defaultStackDepth = 32

var (
	_ error         = &Error{}
	_ fmt.Formatter = &Error{}
)

// Error attaches the call stack to an error.
type Error struct {
	err   error
	trace stacktrace
}

// WithStack records the stack of the caller. %+v and %v print the frames, %s does not.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	e := &Error{err: err, trace: make(stacktrace, defaultStackDepth)}
	n := runtime.Callers(2, e.trace)
	e.trace = e.trace[:n]
	return e
}

func (e *Error) Format(st fmt.State, verb rune) {
	switch verb {
	case 'v':
		if st.Flag('+') {
			fmt.Fprintf(st, "%+v", e.err)
		} else {
			fmt.Fprintf(st, "%v", e.err)
		}
		e.trace.Format(st, verb)
	case 's':
		fmt.Fprintf(st, "%s", e.err)
		if st.Flag('+') {
			e.trace.Format(st, verb)
		}
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s", e)
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.err, target)
}

func (e *Error) As(target any) bool {
	return errors.As(e.err, target)
}

// Unwrap skips the wrapped error itself, like the stack trace was never there.
func (e *Error) Unwrap() error {
	return errors.Unwrap(e.err)
}

// stacktrace stores program counters only; frames are resolved when printed.
type stacktrace []uintptr

func (st stacktrace) Format(s fmt.State, verb rune) {
	frames := runtime.CallersFrames(st)
	for {
		fr, more := frames.Next()
		fn := fr.Function
		if fn == "" {
			fn = "unknown"
		}
		io.WriteString(s, "\n")
		io.WriteString(s, fn)
		io.WriteString(s, "\n\t")
		io.WriteString(s, fr.File)
		if s.Flag('+') {
			io.WriteString(s, ":")
			io.WriteString(s, strconv.Itoa(fr.Line))
		}
		if !more {
			break
		}
	}
}
