// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors mirrors the standard errors package and adds the wrappers used
// across the module: a cause/underlying pair (Wrap), stack traces (WithStack) and
// error collections (Collect).
package errors

import (
	"errors"
	"fmt"
)

func New(text string) error {
	return errors.New(text)
}

func Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

var _ error = &WError{}

// WError pairs a classifying cause with the underlying error.
// Is matches the cause, Unwrap returns the underlying error.
type WError struct {
	cause      error
	underlying error
}

func (e *WError) Format(st fmt.State, verb rune) {
	switch verb {
	case 'v':
		if st.Flag('+') {
			fmt.Fprintf(st, "%+v: %+v", e.cause, e.underlying)
		} else {
			fmt.Fprintf(st, "%v: %v", e.cause, e.underlying)
		}
	case 's':
		fmt.Fprintf(st, "%s: %s", e.cause, e.underlying)
	}
}

func (e *WError) Error() string {
	return fmt.Sprintf("%s", e)
}

func (e *WError) Is(target error) bool {
	return errors.Is(e.cause, target)
}

func (e *WError) Unwrap() error {
	return e.underlying
}

// Wrap classifies uerr by cerr, so that Is(err, cerr) holds and Unwrap returns uerr.
// A nil cause returns uerr unchanged and a nil uerr returns nil.
func Wrap(cerr error, uerr error) error {
	if uerr == nil {
		return nil
	}
	if cerr == nil {
		return uerr
	}
	return &WError{cause: cerr, underlying: uerr}
}

// Wrapf is like Wrap with the underlying error built by fmt.Errorf.
func Wrapf(cerr error, msg string, args ...any) error {
	if cerr == nil {
		return nil
	}
	return &WError{cause: cerr, underlying: fmt.Errorf(msg, args...)}
}
