// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"sync"

	glist "github.com/bahlo/generic-list-go"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"go.uber.org/zap"
)

// Callback is called by the worker with the result of an enqueued statement.
type Callback func(rs *ResultSet)

// request is one queued statement. An empty query only wakes up the worker.
type request struct {
	query  string
	params Params
	cb     Callback
	future *Future[*ResultSet]
}

func (r *request) finish(rs *ResultSet, lg *zap.Logger) {
	if r.future != nil {
		r.future.resolve(rs)
	}
	if r.cb == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			lg.Error("callback panicked", zap.String("query", redact(r.query)), zap.Any("panic", p), zap.Stack("stack"))
		}
	}()
	r.cb(rs)
}

// requestQueue is a FIFO of requests serviced by a single worker. It also holds
// the pending transaction so that the worker sees it together with its wake-up request.
type requestQueue struct {
	mu     sync.Mutex
	list   *glist.List[*request]
	txn    *pendingTxn
	closed bool
	// notifyCh is buffered so that a push never blocks and a wake-up is never lost.
	notifyCh chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		list:     glist.New[*request](),
		notifyCh: make(chan struct{}, 1),
	}
}

func (q *requestQueue) notify() {
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

// push returns false if the queue is closed.
func (q *requestQueue) push(r *request) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.list.PushBack(r)
	metrics.QueueLengthGauge.Set(float64(q.list.Len()))
	q.mu.Unlock()
	q.notify()
	return true
}

// pushTxn records the transaction and pushes a wake-up request.
func (q *requestQueue) pushTxn(txn *pendingTxn) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.txn = txn
	q.list.PushBack(&request{})
	metrics.QueueLengthGauge.Set(float64(q.list.Len()))
	q.mu.Unlock()
	q.notify()
	return true
}

func (q *requestQueue) pop() *request {
	q.mu.Lock()
	defer q.mu.Unlock()
	elem := q.list.Front()
	if elem == nil {
		return nil
	}
	q.list.Remove(elem)
	metrics.QueueLengthGauge.Set(float64(q.list.Len()))
	return elem.Value
}

func (q *requestQueue) pendingTxn() *pendingTxn {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.txn
}

func (q *requestQueue) clearTxn() {
	q.mu.Lock()
	q.txn = nil
	q.mu.Unlock()
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

func (q *requestQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Enqueue submits a statement to the worker and returns immediately. Statements run
// in submission order. cb, if not nil, is called by the worker after the future resolves.
// Enqueue must not be called from a transaction body.
func (db *DB) Enqueue(query string, params Params, cb Callback) *Future[*ResultSet] {
	r := &request{query: query, params: params, cb: cb, future: newFuture[*ResultSet]()}
	if query == "" {
		r.finish(errorResult("empty query"), db.lg)
		return r.future
	}
	if !db.queue.push(r) {
		r.finish(errorResult(ErrClosed.Error()), db.lg)
	}
	return r.future
}

// Start starts the worker. The worker exits when ctx is done or the DB is closed,
// after running the requests already queued.
func (db *DB) Start(ctx context.Context) {
	db.queue.mu.Lock()
	defer db.queue.mu.Unlock()
	if db.queue.closed || db.cancel != nil {
		return
	}
	ctx, db.cancel = context.WithCancel(ctx)
	db.startWorkerLocked(ctx)
}

// startWorkerLocked must be called with the queue lock held, so that it never races
// with Close waiting for the worker.
func (db *DB) startWorkerLocked(ctx context.Context) {
	lg := db.lg.Named("worker")
	db.wg.RunWithRecover(func() {
		db.runWorker(ctx, lg)
	}, func(r any) {
		// Keep serving the queue. The transaction that was running is abandoned.
		db.abortTxn(ErrExecute)
		db.queue.mu.Lock()
		defer db.queue.mu.Unlock()
		if !db.queue.closed && ctx.Err() == nil {
			db.startWorkerLocked(ctx)
		}
	}, lg)
}

func (db *DB) runWorker(ctx context.Context, lg *zap.Logger) {
	lg.Info("worker started")
	defer lg.Info("worker exited")
	for {
		db.drainQueue(lg)
		select {
		case <-ctx.Done():
			db.drainQueue(lg)
			return
		case <-db.queue.notifyCh:
		}
	}
}

// drainQueue runs the queued requests until the queue is empty. After every request,
// it runs the pending transaction if there is one.
func (db *DB) drainQueue(lg *zap.Logger) {
	for {
		r := db.queue.pop()
		if r == nil {
			return
		}
		if len(r.query) > 0 {
			rs := db.execute(context.Background(), workerToken, r.query, r.params)
			r.finish(rs, lg)
		}
		if db.txnInProgress.Load() {
			if txn := db.queue.pendingTxn(); txn != nil {
				db.runTxn(txn)
			}
		}
	}
}
