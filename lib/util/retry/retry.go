// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewBackOff returns a constant backoff that gives up after retryCnt retries.
// retryCnt == 0 means a single attempt.
func NewBackOff(ctx context.Context, retryInterval time.Duration, retryCnt uint64) backoff.BackOff {
	var bo backoff.BackOff = backoff.NewConstantBackOff(retryInterval)
	if ctx != nil {
		bo = backoff.WithContext(bo, ctx)
	}
	return backoff.WithMaxRetries(bo, retryCnt)
}

// RetryNotify runs o until it succeeds or the backoff gives up, calling notify after every failure.
// Wrap an error with backoff.Permanent to stop early.
func RetryNotify(ctx context.Context, o backoff.Operation, retryInterval time.Duration, retryCnt uint64,
	notify backoff.Notify) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return backoff.RetryNotify(o, NewBackOff(ctx, retryInterval, retryCnt), notify)
}
