// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package monotime

import (
	"time"
	_ "unsafe"
)

//go:noescape
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// Time is a reading of the runtime monotonic clock. It only makes sense compared
// with other readings of the same process and is cheaper than time.Now.
type Time int64

// Clock returns the current monotonic time. Components take a Clock so tests can drive time.
type Clock func() Time

func Now() Time {
	return Time(nanotime())
}

func Since(t Time) time.Duration {
	return time.Duration(Now() - t)
}

func (t Time) Add(d time.Duration) Time {
	return t + Time(d)
}

// Elapsed returns t - u.
func (t Time) Elapsed(u Time) time.Duration {
	return time.Duration(t - u)
}

func (t Time) Before(u Time) bool {
	return t < u
}

func (t Time) After(u Time) bool {
	return t > u
}
