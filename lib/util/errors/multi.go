// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"strings"
)

var _ error = &MError{}

// MError is a cause plus every non-nil error collected under it.
type MError struct {
	cause  error
	errors []error
}

func (e *MError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.cause.Error())
	sb.WriteString(":")
	for _, ue := range e.errors {
		sb.WriteString("\n\t")
		sb.WriteString(ue.Error())
	}
	return sb.String()
}

func (e *MError) Format(st fmt.State, verb rune) {
	if verb == 'v' && st.Flag('+') {
		fmt.Fprintf(st, "%+v:", e.cause)
		for _, ue := range e.errors {
			fmt.Fprintf(st, "\n\t%+v", ue)
		}
		return
	}
	fmt.Fprint(st, e.Error())
}

func (e *MError) Is(target error) bool {
	if errors.Is(e.cause, target) {
		return true
	}
	for _, ue := range e.errors {
		if errors.Is(ue, target) {
			return true
		}
	}
	return false
}

// Cause returns the collected errors.
func (e *MError) Cause() []error {
	return e.errors
}

// Collect groups the non-nil errors under cerr. It returns nil when none is left.
// Unwrap stops at the collection, use Cause to reach the members.
func Collect(cerr error, uerr ...error) error {
	errs := make([]error, 0, len(uerr))
	for _, e := range uerr {
		if e != nil {
			errs = append(errs, e)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &MError{cause: cerr, errors: errs}
}
