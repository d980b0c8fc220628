// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"bytes"
	"context"
	"database/sql/driver"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/lib/util/logger"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"github.com/stretchr/testify/require"
)

func TestUpdateAndSelect(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	rs := db.Execute(ctx, "UPDATE foo SET bar = ? WHERE id = ?", MustParams("baz", 3))
	require.True(t, rs.OK(), rs.Error)
	require.EqualValues(t, 1, rs.AffectedRows)
	require.True(t, rs.Empty())
	require.EqualValues(t, 1, db.AffectedRows())

	rs = db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(3))
	require.True(t, rs.OK(), rs.Error)
	require.Equal(t, 1, rs.Len())
	require.Equal(t, "carol", rs.At(0)["name"])

	rs = db.Execute(ctx, "SELECT bar FROM foo WHERE id = ?", MustParams(3))
	require.Equal(t, "baz", rs.At(0)["bar"])

	rs = db.Execute(ctx, "SELECT id, name FROM foo ORDER BY id", nil)
	require.Equal(t, []Row{
		{"id": "1", "name": "alice"},
		{"id": "2", "name": "bob"},
		{"id": "3", "name": "carol"},
	}, rs.Rows)
	require.EqualValues(t, 4, db.QueryCount())
	require.Empty(t, db.LastError())
}

func TestParamCountMismatch(t *testing.T) {
	db, srv := newTestDB(t)
	ctx := context.Background()

	rs := db.Execute(ctx, "UPDATE foo SET bar = ? WHERE id = ?", MustParams("x", 1))
	require.True(t, rs.OK(), rs.Error)
	_, _, executions := srv.stats()

	for _, params := range []Params{nil, MustParams(1), MustParams("a", 1, 2)} {
		rs = db.Execute(ctx, "UPDATE foo SET bar = ? WHERE id = ?", params)
		require.False(t, rs.OK())
		require.True(t, rs.Empty())
		require.Contains(t, rs.Error, "expected 2")
		require.Contains(t, rs.Error, "(query: UPDATE foo SET bar = ? WHERE id = ?)")
		require.ErrorIs(t, rs.Err(), ErrExecute)
		require.Equal(t, rs.Error, db.LastError())
	}
	_, _, newExecutions := srv.stats()
	require.Equal(t, executions, newExecutions)
	// The affected rows of the last successful mutation are kept.
	require.EqualValues(t, 1, db.AffectedRows())
	require.EqualValues(t, 4, db.QueryCount())
}

func TestStmtCacheReuse(t *testing.T) {
	db, srv := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rs := db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(i))
		require.True(t, rs.OK(), rs.Error)
	}
	_, prepares, executions := srv.stats()
	require.Equal(t, 1, prepares)
	require.Equal(t, 5, executions)
	require.Equal(t, 1, db.CacheSize())

	rs := db.Execute(ctx, "SELECT bar FROM foo WHERE id = ?", MustParams(1))
	require.True(t, rs.OK(), rs.Error)
	require.Equal(t, 2, db.CacheSize())
	val, err := metrics.ReadGauge(metrics.StmtCacheGauge)
	require.NoError(t, err)
	require.Equal(t, 2, val)
}

func TestPrepareFailure(t *testing.T) {
	db, _ := newTestDB(t)
	rs := db.Execute(context.Background(), "SELEC name FROM foo", nil)
	require.False(t, rs.OK())
	require.True(t, rs.Empty())
	require.Contains(t, rs.Error, "You have an error in your SQL syntax")
	require.True(t, strings.HasSuffix(rs.Error, "(query: SELEC name FROM foo)"))
	require.Equal(t, 0, db.CacheSize())
	require.Equal(t, rs.Error, db.LastError())

	// The last error is cleared by the next statement.
	rs = db.Execute(context.Background(), "SELECT name FROM foo WHERE id = ?", MustParams(1))
	require.True(t, rs.OK())
	require.Empty(t, db.LastError())
}

func TestExecuteFailure(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	rs := db.Execute(ctx, "INSERT INTO foo (id, name) VALUES (?, ?)", MustParams(1, "dup"))
	require.False(t, rs.OK())
	require.Contains(t, rs.Error, "Duplicate entry '1'")
	require.Zero(t, rs.AffectedRows)
	// A failed execution keeps the statement cached.
	require.Equal(t, 1, db.CacheSize())
}

func TestMidFetchError(t *testing.T) {
	db, srv := newTestDB(t)
	srv.handle("SELECT id FROM big", func(c *fakeConn, args []string) (*fakeResult, error) {
		return &fakeResult{
			columns: []string{"id"},
			rows:    [][]driver.Value{{int64(1)}, {int64(2)}, {int64(3)}},
			failAt:  2,
		}, nil
	})
	rs := db.Execute(context.Background(), "SELECT id FROM big", nil)
	require.False(t, rs.OK())
	require.Empty(t, rs.Rows)
	require.Contains(t, rs.Error, "Query execution was interrupted")
}

func TestColumnCapDefault(t *testing.T) {
	tests := []struct {
		maxColumnBytes int
		expected       int
	}{
		{0, config.DefaultMaxColumnBytes},
		{1024, 1024},
		{-1, 200000},
	}
	for i, test := range tests {
		db, srv := newTestDB(t, func(o *Options) {
			o.MaxColumnBytes = test.maxColumnBytes
		})
		srv.handle("SELECT doc FROM blobs", func(c *fakeConn, args []string) (*fakeResult, error) {
			return &fakeResult{
				columns: []string{"doc"},
				rows:    [][]driver.Value{{bytes.Repeat([]byte("x"), 200000)}},
				failAt:  -1,
			}, nil
		})
		rs := db.Execute(context.Background(), "SELECT doc FROM blobs", nil)
		require.True(t, rs.OK(), "case %d: %s", i, rs.Error)
		require.Len(t, rs.At(0)["doc"], test.expected, "case %d", i)
	}
}

func TestValueConversion(t *testing.T) {
	db, srv := newTestDB(t, func(o *Options) {
		o.MaxColumnBytes = 4
	})
	srv.handle("SELECT * FROM typed", func(c *fakeConn, args []string) (*fakeResult, error) {
		return &fakeResult{
			columns: []string{"i", "f", "s", "n", "long"},
			rows:    [][]driver.Value{{int64(-42), 0.5, []byte("ab"), nil, []byte("abcdefgh")}},
			failAt:  -1,
		}, nil
	})
	rs := db.Execute(context.Background(), "SELECT * FROM typed", nil)
	require.True(t, rs.OK(), rs.Error)
	require.Equal(t, Row{"i": "-42", "f": "0.5", "s": "ab", "n": "", "long": "abcd"}, rs.At(0))
}

func TestNullReadsAsEmpty(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	rs := db.Execute(ctx, "SELECT bar FROM foo WHERE id = ?", MustParams(1))
	require.True(t, rs.OK(), rs.Error)
	require.Equal(t, 1, rs.Len())
	require.Equal(t, "", rs.At(0)["bar"])
	_, ok := rs.At(0)["bar"]
	require.True(t, ok)
}

func TestBindAsText(t *testing.T) {
	db, srv := newTestDB(t)
	var got []string
	srv.handle("INSERT INTO typed VALUES (?, ?, ?, ?, ?, ?, ?, ?)", func(c *fakeConn, args []string) (*fakeResult, error) {
		got = args
		return &fakeResult{affected: 1}, nil
	})
	params := Params{Int32(-1), Int64(1 << 40), Uint32(7), Uint64(1 << 63), Float32(1.5), Float64(0.1), Bool(true), Text("x")}
	rs := db.Execute(context.Background(), "INSERT INTO typed VALUES (?, ?, ?, ?, ?, ?, ?, ?)", params)
	require.True(t, rs.OK(), rs.Error)
	require.Equal(t, []string{"-1", "1099511627776", "7", "9223372036854775808", "1.5", "0.1", "1", "x"}, got)
}

func TestReconnectClearsCache(t *testing.T) {
	db, srv := newTestDB(t)
	ctx := context.Background()
	rs := db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(1))
	require.True(t, rs.OK(), rs.Error)
	require.Equal(t, 1, db.CacheSize())

	srv.kill()
	rs = db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(2))
	require.True(t, rs.OK(), rs.Error)
	require.Equal(t, "bob", rs.At(0)["name"])
	connects, prepares, _ := srv.stats()
	require.Equal(t, 2, connects)
	// The statement is prepared again on the new connection.
	require.Equal(t, 2, prepares)
	require.Equal(t, 1, db.CacheSize())
	srv.Lock()
	require.Equal(t, 1, srv.closedStmts)
	srv.Unlock()
}

func TestDisconnectDuringQuery(t *testing.T) {
	db, srv := newTestDB(t)
	srv.handle("SELECT crash()", func(c *fakeConn, args []string) (*fakeResult, error) {
		c.dead = true
		return nil, mysql.ErrInvalidConn
	})
	ctx := context.Background()
	require.True(t, db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(1)).OK())

	rs := db.Execute(ctx, "SELECT crash()", nil)
	require.False(t, rs.OK())
	require.Contains(t, rs.Error, mysql.ErrInvalidConn.Error())
	connects, _, _ := srv.stats()
	require.Equal(t, 2, connects)
	// All statements of the old connection are dropped.
	require.Equal(t, 0, db.CacheSize())

	rs = db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(1))
	require.True(t, rs.OK(), rs.Error)
}

func TestReconnectFailure(t *testing.T) {
	srv := newFakeServer()
	lg, text := logger.CreateLoggerForTest(t)
	db := NewDB(lg, Options{ConnectorFactory: srv.factory, ReconnectRetries: 2})
	ctx := context.Background()
	require.NoError(t, db.Connect(ctx, testConnParams()))
	defer func() {
		require.NoError(t, db.Close())
	}()

	srv.kill()
	srv.setConnectErr(errors.New("connection refused"))
	rs := db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(1))
	require.False(t, rs.OK())
	require.Contains(t, rs.Error, "connection refused")
	require.Contains(t, text.String(), "critical")
	connects, _, _ := srv.stats()
	require.Equal(t, 4, connects)

	srv.setConnectErr(nil)
	rs = db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(1))
	require.True(t, rs.OK(), rs.Error)
}

func TestConnectFailure(t *testing.T) {
	srv := newFakeServer()
	srv.setConnectErr(errors.New("access denied"))
	lg, _ := logger.CreateLoggerForTest(t)
	db := NewDB(lg, Options{ConnectorFactory: srv.factory})
	err := db.Connect(context.Background(), testConnParams())
	require.ErrorIs(t, err, ErrConnect)
	require.Contains(t, err.Error(), "access denied")
	require.NoError(t, db.Close())
}

func TestExecuteWithoutConnect(t *testing.T) {
	lg, _ := logger.CreateLoggerForTest(t)
	db := NewDB(lg, Options{ConnectorFactory: newFakeServer().factory})
	rs := db.Execute(context.Background(), "SELECT 1", nil)
	require.False(t, rs.OK())
	require.Contains(t, rs.Error, ErrConnect.Error())
	require.NoError(t, db.Close())
}

func TestClose(t *testing.T) {
	srv := newFakeServer()
	lg, _ := logger.CreateLoggerForTest(t)
	db := NewDB(lg, Options{ConnectorFactory: srv.factory})
	ctx := context.Background()
	require.NoError(t, db.Connect(ctx, testConnParams()))
	db.Start(ctx)
	require.True(t, db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(1)).OK())

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	require.Equal(t, 0, db.CacheSize())
	rs := db.Execute(ctx, "SELECT name FROM foo WHERE id = ?", MustParams(1))
	require.Equal(t, ErrClosed.Error(), rs.Error)
	require.ErrorIs(t, db.Connect(ctx, testConnParams()), ErrClosed)
	srv.Lock()
	require.True(t, srv.conns[0].closed)
	srv.Unlock()
}

func TestRedactSensitiveSQL(t *testing.T) {
	db, _ := newTestDB(t)
	lg, text := logger.CreateLoggerForTest(t)
	db.lg = lg
	rs := db.Execute(context.Background(), "CREATE USER 'u'@'%' IDENTIFIED BY 'secret'", nil)
	require.False(t, rs.OK())
	require.NotContains(t, text.String(), "secret")
}
