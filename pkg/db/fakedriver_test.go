// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/lib/util/logger"
	"github.com/stretchr/testify/require"
)

type fooRow struct {
	name string
	bar  string
}

type fakeResult struct {
	columns  []string
	rows     [][]driver.Value
	affected int64
	// failAt makes Next fail when reading the row at this index. -1 means never.
	failAt int
}

type fakeHandler func(c *fakeConn, args []string) (*fakeResult, error)

// fakeServer is an in-memory database with a single table foo(id, name, bar).
// It's shared by all the connections created from it.
type fakeServer struct {
	sync.Mutex
	version     string
	rows        map[int64]fooRow
	handlers    map[string]fakeHandler
	// gates block the execution of a query until they are closed.
	gates       map[string]chan struct{}
	conns       []*fakeConn
	connectErr  error
	connects    int
	prepares    int
	executions  int
	rawStmts    []string
	closedStmts int
	lastParams  ConnParams
}

func newFakeServer() *fakeServer {
	srv := &fakeServer{
		version: "8.0.36",
		rows: map[int64]fooRow{
			1: {name: "alice"},
			2: {name: "bob"},
			3: {name: "carol"},
		},
		handlers: make(map[string]fakeHandler),
		gates:    make(map[string]chan struct{}),
	}
	srv.handle("UPDATE foo SET bar = ? WHERE id = ?", func(c *fakeConn, args []string) (*fakeResult, error) {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, &mysql.MySQLError{Number: 1292, Message: "Truncated incorrect INTEGER value"}
		}
		rows := c.table()
		row, ok := rows[id]
		if !ok {
			return &fakeResult{}, nil
		}
		row.bar = args[0]
		rows[id] = row
		return &fakeResult{affected: 1}, nil
	})
	srv.handle("INSERT INTO foo (id, name) VALUES (?, ?)", func(c *fakeConn, args []string) (*fakeResult, error) {
		id, _ := strconv.ParseInt(args[0], 10, 64)
		rows := c.table()
		if _, ok := rows[id]; ok {
			return nil, &mysql.MySQLError{Number: 1062, Message: fmt.Sprintf("Duplicate entry '%d' for key 'PRIMARY'", id)}
		}
		rows[id] = fooRow{name: args[1]}
		return &fakeResult{affected: 1}, nil
	})
	srv.handle("DELETE FROM foo", func(c *fakeConn, args []string) (*fakeResult, error) {
		rows := c.table()
		n := len(rows)
		clear(rows)
		return &fakeResult{affected: int64(n)}, nil
	})
	srv.handle("SELECT name FROM foo WHERE id = ?", func(c *fakeConn, args []string) (*fakeResult, error) {
		id, _ := strconv.ParseInt(args[0], 10, 64)
		res := &fakeResult{columns: []string{"name"}, failAt: -1}
		if row, ok := c.table()[id]; ok {
			res.rows = append(res.rows, []driver.Value{[]byte(row.name)})
		}
		return res, nil
	})
	srv.handle("SELECT bar FROM foo WHERE id = ?", func(c *fakeConn, args []string) (*fakeResult, error) {
		id, _ := strconv.ParseInt(args[0], 10, 64)
		res := &fakeResult{columns: []string{"bar"}, failAt: -1}
		if row, ok := c.table()[id]; ok {
			var bar driver.Value
			if row.bar != "" {
				bar = []byte(row.bar)
			}
			res.rows = append(res.rows, []driver.Value{bar})
		}
		return res, nil
	})
	srv.handle("SELECT id, name FROM foo ORDER BY id", func(c *fakeConn, args []string) (*fakeResult, error) {
		rows := c.table()
		res := &fakeResult{columns: []string{"id", "name"}, failAt: -1}
		for _, id := range slices.Sorted(maps.Keys(rows)) {
			res.rows = append(res.rows, []driver.Value{id, []byte(rows[id].name)})
		}
		return res, nil
	})
	return srv
}

func (srv *fakeServer) handle(query string, h fakeHandler) {
	srv.Lock()
	srv.handlers[query] = h
	srv.Unlock()
}

// gate blocks the query until the returned channel is closed.
func (srv *fakeServer) gate(query string) chan struct{} {
	ch := make(chan struct{})
	srv.Lock()
	srv.gates[query] = ch
	srv.Unlock()
	return ch
}

func (srv *fakeServer) factory(params ConnParams) (driver.Connector, error) {
	srv.Lock()
	srv.lastParams = params
	srv.Unlock()
	return &fakeConnector{srv: srv}, nil
}

// kill breaks all the existing connections, like a server restart.
func (srv *fakeServer) kill() {
	srv.Lock()
	defer srv.Unlock()
	for _, c := range srv.conns {
		c.dead = true
	}
}

func (srv *fakeServer) setConnectErr(err error) {
	srv.Lock()
	srv.connectErr = err
	srv.Unlock()
}

func (srv *fakeServer) stats() (connects, prepares, executions int) {
	srv.Lock()
	defer srv.Unlock()
	return srv.connects, srv.prepares, srv.executions
}

func (srv *fakeServer) raw() []string {
	srv.Lock()
	defer srv.Unlock()
	return slices.Clone(srv.rawStmts)
}

func (srv *fakeServer) committedName(id int64) string {
	srv.Lock()
	defer srv.Unlock()
	return srv.rows[id].name
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

type fakeConnector struct {
	srv *fakeServer
}

func (fc *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	srv := fc.srv
	srv.Lock()
	defer srv.Unlock()
	srv.connects++
	if srv.connectErr != nil {
		return nil, srv.connectErr
	}
	c := &fakeConn{srv: srv}
	srv.conns = append(srv.conns, c)
	return c, nil
}

func (fc *fakeConnector) Driver() driver.Driver {
	return fakeDriver{}
}

var (
	_ driver.Conn               = (*fakeConn)(nil)
	_ driver.Pinger             = (*fakeConn)(nil)
	_ driver.ConnPrepareContext = (*fakeConn)(nil)
	_ driver.ExecerContext      = (*fakeConn)(nil)
	_ driver.QueryerContext     = (*fakeConn)(nil)
)

// fakeConn is guarded by the server lock.
type fakeConn struct {
	srv    *fakeServer
	dead   bool
	closed bool
	// txn is the private copy of the table inside a transaction.
	txn map[int64]fooRow
}

// table returns the rows visible to the connection. The server lock must be held.
func (c *fakeConn) table() map[int64]fooRow {
	if c.txn != nil {
		return c.txn
	}
	return c.srv.rows
}

func (c *fakeConn) checkAlive() error {
	if c.dead {
		return mysql.ErrInvalidConn
	}
	if c.closed {
		return driver.ErrBadConn
	}
	return nil
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *fakeConn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	c.srv.Lock()
	defer c.srv.Unlock()
	if err := c.checkAlive(); err != nil {
		return nil, err
	}
	c.srv.prepares++
	h, ok := c.srv.handlers[query]
	if !ok {
		return nil, &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}
	}
	return &fakeStmt{conn: c, query: query, handler: h, numInput: strings.Count(query, "?")}, nil
}

func (c *fakeConn) Close() error {
	c.srv.Lock()
	defer c.srv.Unlock()
	c.closed = true
	c.txn = nil
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("use START TRANSACTION")
}

func (c *fakeConn) Ping(context.Context) error {
	c.srv.Lock()
	defer c.srv.Unlock()
	if c.dead || c.closed {
		return driver.ErrBadConn
	}
	return nil
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.srv.Lock()
	defer c.srv.Unlock()
	if err := c.checkAlive(); err != nil {
		return nil, err
	}
	c.srv.rawStmts = append(c.srv.rawStmts, query)
	switch {
	case query == "START TRANSACTION":
		c.txn = maps.Clone(c.srv.rows)
	case query == "COMMIT":
		if c.txn != nil {
			c.srv.rows = c.txn
			c.txn = nil
		}
	case query == "ROLLBACK":
		c.txn = nil
	case strings.HasPrefix(query, "SET @@SESSION."):
	default:
		return nil, &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}
	}
	return driver.RowsAffected(0), nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.srv.Lock()
	defer c.srv.Unlock()
	if err := c.checkAlive(); err != nil {
		return nil, err
	}
	if query != "SELECT VERSION()" {
		return nil, &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}
	}
	return &fakeRows{res: &fakeResult{
		columns: []string{"VERSION()"},
		rows:    [][]driver.Value{{[]byte(c.srv.version)}},
		failAt:  -1,
	}}, nil
}

var (
	_ driver.StmtExecContext  = (*fakeStmt)(nil)
	_ driver.StmtQueryContext = (*fakeStmt)(nil)
)

type fakeStmt struct {
	conn     *fakeConn
	query    string
	handler  fakeHandler
	numInput int
}

func (s *fakeStmt) Close() error {
	s.conn.srv.Lock()
	s.conn.srv.closedStmts++
	s.conn.srv.Unlock()
	return nil
}

func (s *fakeStmt) NumInput() int {
	return s.numInput
}

func (s *fakeStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("use ExecContext")
}

func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("use QueryContext")
}

func (s *fakeStmt) run(args []driver.NamedValue) (*fakeResult, error) {
	srv := s.conn.srv
	srv.Lock()
	gate := srv.gates[s.query]
	srv.Unlock()
	if gate != nil {
		<-gate
	}
	srv.Lock()
	defer srv.Unlock()
	if err := s.conn.checkAlive(); err != nil {
		return nil, err
	}
	srv.executions++
	texts := make([]string, 0, len(args))
	for _, arg := range args {
		text, ok := arg.Value.(string)
		if !ok {
			return nil, fmt.Errorf("argument %d is bound as %T", arg.Ordinal, arg.Value)
		}
		texts = append(texts, text)
	}
	return s.handler(s.conn, texts)
}

func (s *fakeStmt) ExecContext(_ context.Context, args []driver.NamedValue) (driver.Result, error) {
	res, err := s.run(args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(res.affected), nil
}

func (s *fakeStmt) QueryContext(_ context.Context, args []driver.NamedValue) (driver.Rows, error) {
	res, err := s.run(args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{res: res}, nil
}

type fakeRows struct {
	res    *fakeResult
	pos    int
	closed bool
}

func (r *fakeRows) Columns() []string {
	return r.res.columns
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.res.failAt >= 0 && r.pos == r.res.failAt {
		return &mysql.MySQLError{Number: 1317, Message: "Query execution was interrupted"}
	}
	if r.pos >= len(r.res.rows) {
		return io.EOF
	}
	copy(dest, r.res.rows[r.pos])
	r.pos++
	return nil
}

type testDBOption func(*Options)

func newTestDB(t *testing.T, opts ...testDBOption) (*DB, *fakeServer) {
	lg, _ := logger.CreateLoggerForTest(t)
	srv := newFakeServer()
	o := Options{
		MaxColumnBytes:    131072,
		TxnWaitInterval:   time.Millisecond,
		ReconnectRetries:  1,
		ReconnectInterval: time.Millisecond,
		ConnectorFactory:  srv.factory,
	}
	for _, opt := range opts {
		opt(&o)
	}
	db := NewDB(lg, o)
	require.NoError(t, db.Connect(context.Background(), testConnParams()))
	db.Start(context.Background())
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db, srv
}

func testConnParams() ConnParams {
	return ConnParams{
		Host:             "127.0.0.1",
		Port:             3306,
		User:             "root",
		Schema:           "test",
		MaxExecutionTime: 3 * time.Second,
	}
}
