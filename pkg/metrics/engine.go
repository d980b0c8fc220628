// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	LblType   = "type"
	LblResult = "result"

	ResultSucceed = "succeed"
	ResultFail    = "fail"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultCommit  = "commit"
	ResultAbort   = "rollback"
	ResultReject  = "reject"

	TypeQuery    = "query"
	TypeMutation = "mutation"
)

var (
	QueryTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleSQLExec,
			Subsystem: LabelEngine,
			Name:      "queries_total",
			Help:      "Counter of executed statements.",
		}, []string{LblResult})

	QueryDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ModuleSQLExec,
			Subsystem: LabelEngine,
			Name:      "handle_query_duration_seconds",
			Help:      "Bucketed histogram of processing time (s) of handled statements.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 22), // 0.5ms ~ 1048s
		}, []string{LblType})

	StmtCacheGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ModuleSQLExec,
			Subsystem: LabelEngine,
			Name:      "cached_statements",
			Help:      "Number of cached prepared statements.",
		})

	QueueLengthGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ModuleSQLExec,
			Subsystem: LabelQueue,
			Name:      "pending",
			Help:      "Number of queued requests waiting for the worker.",
		})

	ReconnectCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleSQLExec,
			Subsystem: LabelConn,
			Name:      "reconnect_total",
			Help:      "Counter of reconnections to the database.",
		}, []string{LblResult})

	TxnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleSQLExec,
			Subsystem: LabelTxn,
			Name:      "total",
			Help:      "Counter of transactions.",
		}, []string{LblResult})

	MemoCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleSQLExec,
			Subsystem: LabelMemo,
			Name:      "lookup_total",
			Help:      "Counter of memoized result lookups.",
		}, []string{LblResult})
)

var colls = []prometheus.Collector{
	QueryTotalCounter,
	QueryDurationHistogram,
	StmtCacheGauge,
	QueueLengthGauge,
	ReconnectCounter,
	TxnCounter,
	MemoCounter,
}
