// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package waitgroup

import (
	"sync"

	"go.uber.org/zap"
)

// WaitGroup is a sync.WaitGroup that starts the goroutines itself.
type WaitGroup struct {
	sync.WaitGroup
}

// Run runs exec in a goroutine tracked by the group. exec must not panic.
func (w *WaitGroup) Run(exec func()) {
	w.Add(1)
	go func() {
		defer w.Done()
		exec()
	}()
}

// RunWithRecover is like Run but recovers a panic in exec, logs it with the stack
// and then calls recoverFn (nil means noop). Done is called before recoverFn because
// recoverFn usually closes the owner, which waits on this group.
func (w *WaitGroup) RunWithRecover(exec func(), recoverFn func(r any), lg *zap.Logger) {
	w.Add(1)
	go func() {
		defer w.recoverFromErr(recoverFn, lg)
		exec()
	}()
}

func (w *WaitGroup) recoverFromErr(recoverFn func(r any), lg *zap.Logger) {
	r := recover()
	defer func() {
		// A second panic inside recoverFn only needs to end the goroutine.
		_ = recover()
	}()
	if r != nil && lg != nil {
		lg.Error("panic in the recoverable goroutine", zap.Reflect("r", r), zap.Stack("stack trace"))
	}
	w.Done()
	if r != nil && recoverFn != nil {
		recoverFn(r)
	}
}
