// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql/driver"

	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"github.com/pingcap/sqlexec/pkg/util/lex"
	"go.uber.org/atomic"
)

type cachedStmt struct {
	stmt        driver.Stmt
	paramCount  int
	returnsRows bool
	// args is reused by every execution of the statement.
	args []driver.NamedValue
}

func newCachedStmt(stmt driver.Stmt, query string) *cachedStmt {
	cs := &cachedStmt{
		stmt:        stmt,
		paramCount:  stmt.NumInput(),
		returnsRows: lex.ReturnsRows(query),
	}
	if cs.paramCount > 0 {
		cs.args = make([]driver.NamedValue, cs.paramCount)
	}
	return cs
}

// bind fills the argument buffer with the text form of params.
func (cs *cachedStmt) bind(params Params) []driver.NamedValue {
	for i, p := range params {
		cs.args[i] = driver.NamedValue{Ordinal: i + 1, Value: p.String()}
	}
	return cs.args[:len(params)]
}

// stmtCache maps query text to prepared statements of the current connection.
// It's only accessed with the connection lock held.
type stmtCache struct {
	stmts map[string]*cachedStmt
	// size can be read without the lock.
	size atomic.Int64
}

func newStmtCache() *stmtCache {
	return &stmtCache{
		stmts: make(map[string]*cachedStmt),
	}
}

func (sc *stmtCache) get(query string) *cachedStmt {
	return sc.stmts[query]
}

func (sc *stmtCache) put(query string, cs *cachedStmt) {
	sc.stmts[query] = cs
	sc.size.Store(int64(len(sc.stmts)))
	metrics.StmtCacheGauge.Set(float64(len(sc.stmts)))
}

func (sc *stmtCache) len() int {
	return int(sc.size.Load())
}

// clear closes all statements. The handles belong to a connection that is going away,
// so the close errors are only reported.
func (sc *stmtCache) clear() error {
	errs := make([]error, 0, len(sc.stmts))
	for query, cs := range sc.stmts {
		if err := cs.stmt.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(sc.stmts, query)
	}
	sc.size.Store(0)
	metrics.StmtCacheGauge.Set(0)
	return errors.Collect(errors.New("close cached statements"), errs...)
}
