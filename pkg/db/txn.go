// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// TxnFunc is the body of a transaction. Returning true commits it. Returning false,
// a non-nil error or panicking rolls it back.
// It must issue statements through tx only and must not call Enqueue.
type TxnFunc func(ctx context.Context, tx *Tx) (bool, error)

// TxnOutcome is the result of RunTransaction. Err wraps ErrTxnRolledBack when the
// transaction was rolled back.
type TxnOutcome struct {
	Committed bool
	Err       error
}

// Tx issues statements inside the running transaction. It's only valid inside the
// transaction function; afterwards its statements fail with ErrTxnRolledBack.
type Tx struct {
	db     *DB
	id     string
	gen    uint64
	active atomic.Bool
}

func (tx *Tx) ID() string {
	return tx.id
}

func (tx *Tx) token() execToken {
	return execToken{kind: tokenTxn, gen: tx.gen}
}

func (tx *Tx) Execute(ctx context.Context, query string, params Params) *ResultSet {
	if rs := tx.checkActive(); rs != nil {
		return rs
	}
	return tx.db.execute(ctx, tx.token(), query, params)
}

func (tx *Tx) ExecuteCached(ctx context.Context, query string, params Params, ttl time.Duration) *ResultSet {
	if rs := tx.checkActive(); rs != nil {
		return rs
	}
	return tx.db.executeCached(ctx, tx.token(), query, params, ttl)
}

func (tx *Tx) checkActive() *ResultSet {
	if tx.active.Load() {
		return nil
	}
	err := errors.Wrapf(ErrTxnRolledBack, "transaction %s has finished", tx.id)
	tx.db.lastError.Store(err.Error())
	return errorResult(err.Error())
}

type pendingTxn struct {
	id     string
	fn     TxnFunc
	future *Future[TxnOutcome]
	once   sync.Once
}

func (pt *pendingTxn) finish(outcome TxnOutcome) {
	pt.once.Do(func() {
		pt.future.resolve(outcome)
	})
}

// RunTransaction schedules fn to run atomically on the worker. It fails with
// ErrTxnInProgress if another transaction hasn't finished. Statements issued by
// Execute from other goroutines wait until the transaction finishes.
func (db *DB) RunTransaction(fn TxnFunc) (*Future[TxnOutcome], error) {
	if !db.txnInProgress.CompareAndSwap(false, true) {
		metrics.TxnCounter.WithLabelValues(metrics.ResultReject).Inc()
		return nil, ErrTxnInProgress
	}
	pt := &pendingTxn{
		id:     uuid.NewString(),
		fn:     fn,
		future: newFuture[TxnOutcome](),
	}
	if !db.queue.pushTxn(pt) {
		db.txnInProgress.Store(false)
		return nil, ErrClosed
	}
	return pt.future, nil
}

func (db *DB) runTxn(pt *pendingTxn) {
	lg := db.lg.Named("txn").With(zap.String("txn_id", pt.id))
	outcome := db.doTxn(context.Background(), pt, lg)
	// The token dies with the Tx. Clear the closure before the flag.
	db.queue.clearTxn()
	db.txnInProgress.Store(false)
	if outcome.Committed {
		metrics.TxnCounter.WithLabelValues(metrics.ResultCommit).Inc()
	} else {
		metrics.TxnCounter.WithLabelValues(metrics.ResultAbort).Inc()
		lg.Info("transaction rolled back", zap.Error(outcome.Err))
	}
	pt.finish(outcome)
}

func (db *DB) doTxn(ctx context.Context, pt *pendingTxn, lg *zap.Logger) TxnOutcome {
	gen, err := db.execTxnControl(ctx, execToken{kind: tokenTxn}, "START TRANSACTION")
	if err != nil {
		return TxnOutcome{Err: errors.Wrap(ErrTxnRolledBack, err)}
	}
	tx := &Tx{db: db, id: pt.id, gen: gen}
	tx.active.Store(true)
	lg.Debug("transaction started")
	commit, err := callTxnFunc(ctx, pt.fn, tx, lg)
	// The token must not be used by a Tx that escaped the function.
	tx.active.Store(false)
	if err == nil && commit {
		if _, err = db.execTxnControl(ctx, tx.token(), "COMMIT"); err == nil {
			return TxnOutcome{Committed: true}
		}
		// The server rolls back a transaction whose commit fails.
		return TxnOutcome{Err: errors.Wrap(ErrTxnRolledBack, err)}
	}
	if err == nil {
		err = errors.New("transaction function returned false")
	}
	if _, rerr := db.execTxnControl(ctx, tx.token(), "ROLLBACK"); errors.Is(rerr, ErrTxnConnLost) {
		err = rerr
	} else if rerr != nil {
		lg.Error("rollback failed", zap.Error(rerr))
	}
	return TxnOutcome{Err: errors.Wrap(ErrTxnRolledBack, err)}
}

func callTxnFunc(ctx context.Context, fn TxnFunc, tx *Tx, lg *zap.Logger) (commit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			lg.Error("transaction function panicked", zap.Any("panic", r), zap.Stack("stack"))
			commit, err = false, fmt.Errorf("transaction function panicked: %v", r)
		}
	}()
	return fn(ctx, tx)
}

// execTxnControl runs a transaction control statement and returns the connection
// generation it ran on. If tok carries a generation and the connection has been
// re-established since, it fails with ErrTxnConnLost.
func (db *DB) execTxnControl(ctx context.Context, tok execToken, sql string) (uint64, error) {
	if err := db.lockConn(ctx, tok); err != nil {
		return 0, err
	}
	defer db.cm.mu.Unlock()
	if err := db.cm.ensureAliveLocked(ctx); err != nil {
		return 0, err
	}
	if tok.gen != 0 && tok.gen != db.cm.generation {
		return 0, ErrTxnConnLost
	}
	if err := execRaw(ctx, db.cm.conn, sql); err != nil {
		db.failLocked(ctx, errors.Wrap(ErrExecute, err), err, sql)
		return 0, err
	}
	return db.cm.generation, nil
}

// abortTxn fails the pending transaction, if any, and releases waiting callers.
func (db *DB) abortTxn(err error) {
	if pt := db.queue.pendingTxn(); pt != nil {
		db.queue.clearTxn()
		db.txnInProgress.Store(false)
		pt.finish(TxnOutcome{Err: errors.Wrap(ErrTxnRolledBack, err)})
	}
}

// InTransaction reports whether a transaction is requested or running.
func (db *DB) InTransaction() bool {
	return db.txnInProgress.Load()
}
