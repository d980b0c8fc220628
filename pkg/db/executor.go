// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"time"

	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"github.com/pingcap/sqlexec/pkg/util/lex"
	"github.com/pingcap/sqlexec/pkg/util/monotime"
	"go.uber.org/zap"
)

type tokenKind uint8

const (
	tokenNone tokenKind = iota
	// tokenWorker is held by requests executed by the queue worker. They are ordered
	// with transactions by the worker itself.
	tokenWorker
	// tokenTxn is held by statements issued from a transaction body.
	tokenTxn
)

// execToken tells execute whether the caller may bypass the transaction wait.
type execToken struct {
	kind tokenKind
	// gen is the connection generation a transaction started on.
	gen uint64
}

var (
	noToken     = execToken{}
	workerToken = execToken{kind: tokenWorker}
)

// Execute runs one statement with positional parameters and returns its result.
// It blocks while a transaction is in progress, unless ctx is done first.
func (db *DB) Execute(ctx context.Context, query string, params Params) *ResultSet {
	return db.execute(ctx, noToken, query, params)
}

func (db *DB) execute(ctx context.Context, tok execToken, query string, params Params) *ResultSet {
	db.queryCount.Inc()
	if err := db.lockConn(ctx, tok); err != nil {
		db.lastError.Store(err.Error())
		metrics.QueryTotalCounter.WithLabelValues(metrics.ResultFail).Inc()
		return errorResult(err.Error())
	}
	defer db.cm.mu.Unlock()

	db.lastError.Store("")
	startTime := monotime.Now()
	rs, typ := db.executeLocked(ctx, tok, query, params)
	if rs.OK() {
		metrics.QueryTotalCounter.WithLabelValues(metrics.ResultSucceed).Inc()
	} else {
		metrics.QueryTotalCounter.WithLabelValues(metrics.ResultFail).Inc()
	}
	if typ != "" {
		metrics.QueryDurationHistogram.WithLabelValues(typ).Observe(monotime.Since(startTime).Seconds())
	}
	return rs
}

// lockConn acquires the connection lock. Callers without a token wait until no
// transaction is in progress and check again after locking, since a transaction
// may start in between.
func (db *DB) lockConn(ctx context.Context, tok execToken) error {
	if tok.kind != tokenNone {
		db.cm.mu.Lock()
		return nil
	}
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()
	for {
		for db.txnInProgress.Load() {
			if ticker == nil {
				ticker = time.NewTicker(db.opts.TxnWaitInterval)
			}
			select {
			case <-ctx.Done():
				return errors.Wrap(ErrExecute, ctx.Err())
			case <-ticker.C:
			}
		}
		db.cm.mu.Lock()
		if !db.txnInProgress.Load() {
			return nil
		}
		db.cm.mu.Unlock()
	}
}

// executeLocked returns the result and the statement type for metrics, which is
// empty if the statement isn't executed.
func (db *DB) executeLocked(ctx context.Context, tok execToken, query string, params Params) (*ResultSet, string) {
	if err := db.cm.ensureAliveLocked(ctx); err != nil {
		return db.failLocked(ctx, err, err, ""), ""
	}
	if tok.kind == tokenTxn && tok.gen != db.cm.generation {
		return db.failLocked(ctx, ErrTxnConnLost, ErrTxnConnLost, query), ""
	}
	cs := db.cm.stmts.get(query)
	if cs == nil {
		stmt, err := db.cm.prepareLocked(ctx, query)
		if err != nil {
			return db.failLocked(ctx, errors.Wrap(ErrPrepare, err), err, query), ""
		}
		cs = newCachedStmt(stmt, query)
		db.cm.stmts.put(query, cs)
		db.lg.Debug("new cached prepared statement", zap.String("query", redact(query)),
			zap.Int("params", cs.paramCount), zap.Bool("returns_rows", cs.returnsRows))
	}
	if len(params) != cs.paramCount {
		err := errors.Wrapf(ErrParamCount, "got %d, expected %d", len(params), cs.paramCount)
		return db.failLocked(ctx, err, err, query), ""
	}
	args := cs.bind(params)
	if !cs.returnsRows {
		return db.execMutationLocked(ctx, cs, args, query), metrics.TypeMutation
	}
	return db.queryRowsLocked(ctx, cs, args, query), metrics.TypeQuery
}

func (db *DB) execMutationLocked(ctx context.Context, cs *cachedStmt, args []driver.NamedValue, query string) *ResultSet {
	execer, ok := cs.stmt.(driver.StmtExecContext)
	if !ok {
		err := errors.Wrapf(ErrExecute, "driver doesn't support ExecContext")
		return db.failLocked(ctx, err, err, query)
	}
	res, err := execer.ExecContext(ctx, args)
	if err != nil {
		return db.failLocked(ctx, errors.Wrap(ErrExecute, err), err, query)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return db.failLocked(ctx, errors.Wrap(ErrExecute, err), err, query)
	}
	db.affectedRows.Store(uint64(affected))
	return &ResultSet{AffectedRows: uint64(affected)}
}

func (db *DB) queryRowsLocked(ctx context.Context, cs *cachedStmt, args []driver.NamedValue, query string) *ResultSet {
	queryer, ok := cs.stmt.(driver.StmtQueryContext)
	if !ok {
		err := errors.Wrapf(ErrExecute, "driver doesn't support QueryContext")
		return db.failLocked(ctx, err, err, query)
	}
	rows, err := queryer.QueryContext(ctx, args)
	if err != nil {
		return db.failLocked(ctx, errors.Wrap(ErrExecute, err), err, query)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			db.lg.Warn("close rows failed", zap.Error(err))
		}
	}()
	columns := rows.Columns()
	dest := make([]driver.Value, len(columns))
	rs := &ResultSet{}
	for {
		err := rows.Next(dest)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Rows fetched before the error are dropped.
			return db.failLocked(ctx, errors.Wrap(ErrExecute, err), err, query)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = textValue(dest[i], db.opts.MaxColumnBytes)
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}

// failLocked records and logs a failure and returns the error result. The result
// carries the message of cause, followed by the query if there is one.
// A lost connection is re-established before returning.
func (db *DB) failLocked(ctx context.Context, err, cause error, query string) *ResultSet {
	msg := cause.Error()
	if query != "" {
		msg = fmt.Sprintf("%s (query: %s)", msg, query)
	}
	db.lastError.Store(msg)
	db.lg.Error("execute statement failed", zap.String("query", redact(query)), zap.Error(err))
	if IsDisconnectError(cause) && ctx.Err() == nil {
		db.lg.Error("lost connection to database, reinitializing")
		// The failure is logged as critical inside.
		_ = db.cm.reconnectLocked(ctx)
	}
	return errorResult(msg)
}

// redact hides statements that may carry credentials.
func redact(query string) string {
	if lex.IsSensitiveSQL(query) {
		return lex.FirstKeyword(query) + " ..."
	}
	return query
}
