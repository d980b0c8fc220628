// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"sync"
	"time"

	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"github.com/pingcap/sqlexec/pkg/util/monotime"
	"golang.org/x/sync/singleflight"
)

type memoKey struct {
	query  string
	params string
}

func (k memoKey) String() string {
	return k.query + "\x00" + k.params
}

type memoEntry struct {
	rs     *ResultSet
	expiry monotime.Time
}

// memoCache keeps results for a caller-chosen duration.
type memoCache struct {
	sync.Mutex
	entries map[memoKey]memoEntry
	group   singleflight.Group
	clock   monotime.Clock
}

func newMemoCache(clock monotime.Clock) *memoCache {
	if clock == nil {
		clock = monotime.Now
	}
	return &memoCache{
		entries: make(map[memoKey]memoEntry),
		clock:   clock,
	}
}

// get returns the live entry of key. An expired entry is deleted.
func (mc *memoCache) get(key memoKey) (*ResultSet, bool) {
	mc.Lock()
	defer mc.Unlock()
	entry, ok := mc.entries[key]
	if !ok {
		return nil, false
	}
	if !mc.clock().Before(entry.expiry) {
		delete(mc.entries, key)
		return nil, false
	}
	return entry.rs, true
}

func (mc *memoCache) put(key memoKey, rs *ResultSet, ttl time.Duration) {
	mc.Lock()
	mc.entries[key] = memoEntry{rs: rs, expiry: mc.clock().Add(ttl)}
	mc.Unlock()
}

func (mc *memoCache) len() int {
	mc.Lock()
	defer mc.Unlock()
	return len(mc.entries)
}

func (mc *memoCache) purge() {
	mc.Lock()
	clear(mc.entries)
	mc.Unlock()
}

// ExecuteCached is Execute with the result kept for ttl. Within ttl, the same query with
// equal parameters returns the kept result without touching the database, whether it
// succeeded or failed. A non-positive ttl keeps nothing.
// The returned result is shared and must not be modified.
func (db *DB) ExecuteCached(ctx context.Context, query string, params Params, ttl time.Duration) *ResultSet {
	return db.executeCached(ctx, noToken, query, params, ttl)
}

func (db *DB) executeCached(ctx context.Context, tok execToken, query string, params Params, ttl time.Duration) *ResultSet {
	key := memoKey{query: query, params: params.key()}
	if rs, ok := db.memo.get(key); ok {
		metrics.MemoCounter.WithLabelValues(metrics.ResultHit).Inc()
		return rs
	}
	metrics.MemoCounter.WithLabelValues(metrics.ResultMiss).Inc()
	load := func(ctx context.Context) *ResultSet {
		rs := db.execute(ctx, tok, query, params)
		if ttl > 0 {
			db.memo.put(key, rs, ttl)
		}
		return rs
	}
	// A transaction must not wait for a caller that is itself waiting for the transaction.
	if tok.kind != tokenNone {
		return load(ctx)
	}
	// The load is shared by every caller of the key, so it must outlive the one that
	// started it. Each caller gives up on its own context only.
	ch := db.memo.group.DoChan(key.String(), func() (any, error) {
		if rs, ok := db.memo.get(key); ok {
			return rs, nil
		}
		return load(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.(*ResultSet)
	case <-ctx.Done():
		err := errors.Wrap(ErrExecute, ctx.Err())
		db.lastError.Store(err.Error())
		return errorResult(err.Error())
	}
}

// PurgeMemo drops all kept results.
func (db *DB) PurgeMemo() {
	db.memo.purge()
}
