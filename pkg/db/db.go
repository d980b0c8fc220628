// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package db executes SQL statements on a single MySQL connection. Statements are
// prepared once and cached by text, can be queued to a worker that runs them in order,
// and can be grouped into transactions that exclude all other statements.
package db

import (
	"context"
	"time"

	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/lib/util/waitgroup"
	"github.com/pingcap/sqlexec/pkg/util/monotime"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type Options struct {
	// MaxColumnBytes caps the bytes kept for one column value. 0 means
	// config.DefaultMaxColumnBytes and a negative value means no cap.
	MaxColumnBytes int
	// TxnWaitInterval is how often Execute checks whether a transaction finished.
	TxnWaitInterval   time.Duration
	ReconnectRetries  uint64
	ReconnectInterval time.Duration
	// ConnectorFactory defaults to MySQLConnector.
	ConnectorFactory ConnectorFactory
	// Clock drives the expiry of memoized results. It defaults to monotime.Now.
	Clock monotime.Clock
}

func OptionsFromConfig(cfg *config.Engine) Options {
	return Options{
		MaxColumnBytes:    cfg.MaxColumnBytes,
		TxnWaitInterval:   cfg.TxnWaitInterval,
		ReconnectRetries:  cfg.ReconnectRetries,
		ReconnectInterval: cfg.ReconnectInterval,
	}
}

type DB struct {
	lg    *zap.Logger
	opts  Options
	cm    *connManager
	memo  *memoCache
	queue *requestQueue
	wg    waitgroup.WaitGroup
	// cancel stops the worker. It's set by Start under the queue lock.
	cancel context.CancelFunc

	txnInProgress atomic.Bool
	closed        atomic.Bool

	// Written with the connection lock held, read without it.
	queryCount   atomic.Uint64
	affectedRows atomic.Uint64
	lastError    atomic.String
}

func NewDB(lg *zap.Logger, opts Options) *DB {
	if opts.MaxColumnBytes == 0 {
		opts.MaxColumnBytes = config.DefaultMaxColumnBytes
	}
	if opts.TxnWaitInterval <= 0 {
		opts.TxnWaitInterval = time.Millisecond
	}
	return &DB{
		lg:    lg,
		opts:  opts,
		cm:    newConnManager(lg.Named("conn"), opts.ConnectorFactory, opts.ReconnectRetries, opts.ReconnectInterval),
		memo:  newMemoCache(opts.Clock),
		queue: newRequestQueue(),
	}
}

// Connect establishes the connection. The parameters are kept to reconnect later.
// An error wraps ErrConnect.
func (db *DB) Connect(ctx context.Context, params ConnParams) error {
	if err := db.cm.connect(ctx, params); err != nil {
		db.lg.Error("connect to database failed", zap.String("addr", params.addr()), zap.Error(err))
		return err
	}
	return nil
}

// Close waits for the worker to run the queued requests, then closes the cached
// statements and the connection. It's safe to call Close more than once.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	db.queue.close()
	db.queue.mu.Lock()
	cancel := db.cancel
	db.queue.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	db.wg.Wait()

	// Without a worker, nothing serves what's left.
	for r := db.queue.pop(); r != nil; r = db.queue.pop() {
		if len(r.query) > 0 {
			r.finish(errorResult(ErrClosed.Error()), db.lg)
		}
	}
	db.abortTxn(ErrClosed)
	db.memo.purge()
	if err := db.cm.close(); err != nil {
		return errors.WithStack(err)
	}
	db.lg.Info("db closed")
	return nil
}

// CacheSize returns the number of cached prepared statements.
func (db *DB) CacheSize() int {
	return db.cm.stmts.len()
}

// QueryCount returns the number of Execute calls, including failed ones.
func (db *DB) QueryCount() uint64 {
	return db.queryCount.Load()
}

// AffectedRows returns the affected rows of the last successful mutation.
func (db *DB) AffectedRows() uint64 {
	return db.affectedRows.Load()
}

// LastError returns the error of the last statement, or "" if it succeeded.
func (db *DB) LastError() string {
	return db.lastError.Load()
}

// QueueLen returns the number of requests waiting for the worker.
func (db *DB) QueueLen() int {
	return db.queue.len()
}

func (db *DB) ServerVersion() string {
	return db.cm.version.Load()
}

func (db *DB) MemoSize() int {
	return db.memo.len()
}
