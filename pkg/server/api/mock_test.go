// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"sync"
	"time"

	"github.com/pingcap/sqlexec/pkg/db"
)

var _ Engine = (*mockEngine)(nil)

type mockEngine struct {
	sync.Mutex
	queries []string
	params  []db.Params
	ttls    []time.Duration
	result  *db.ResultSet
	count   uint64
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		result: &db.ResultSet{Rows: []db.Row{{"name": "carol"}}},
	}
}

func (m *mockEngine) record(query string, params db.Params, ttl time.Duration) *db.ResultSet {
	m.Lock()
	defer m.Unlock()
	m.queries = append(m.queries, query)
	m.params = append(m.params, params)
	m.ttls = append(m.ttls, ttl)
	m.count++
	return m.result
}

func (m *mockEngine) Execute(_ context.Context, query string, params db.Params) *db.ResultSet {
	return m.record(query, params, 0)
}

func (m *mockEngine) ExecuteCached(_ context.Context, query string, params db.Params, ttl time.Duration) *db.ResultSet {
	return m.record(query, params, ttl)
}

func (m *mockEngine) Enqueue(query string, params db.Params, cb db.Callback) *db.Future[*db.ResultSet] {
	rs := m.record(query, params, -1)
	if cb != nil {
		cb(rs)
	}
	return db.Resolved(rs)
}

func (m *mockEngine) CacheSize() int        { return 2 }
func (m *mockEngine) MemoSize() int         { return 1 }
func (m *mockEngine) QueryCount() uint64    { m.Lock(); defer m.Unlock(); return m.count }
func (m *mockEngine) AffectedRows() uint64  { return 1 }
func (m *mockEngine) LastError() string     { return "" }
func (m *mockEngine) QueueLen() int         { return 0 }
func (m *mockEngine) InTransaction() bool   { return false }
func (m *mockEngine) ServerVersion() string { return "8.0.36" }
