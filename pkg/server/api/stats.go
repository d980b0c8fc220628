// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Stats is a snapshot of the engine counters.
type Stats struct {
	CachedStatements int    `json:"cached_statements"`
	MemoizedResults  int    `json:"memoized_results"`
	QueryCount       uint64 `json:"query_count"`
	AffectedRows     uint64 `json:"affected_rows"`
	LastError        string `json:"last_error"`
	QueueLength      int    `json:"queue_length"`
	InTransaction    bool   `json:"in_transaction"`
	ServerVersion    string `json:"server_version"`
}

func (h *Server) HandleGetStats(c *gin.Context) {
	c.JSON(http.StatusOK, Stats{
		CachedStatements: h.engine.CacheSize(),
		MemoizedResults:  h.engine.MemoSize(),
		QueryCount:       h.engine.QueryCount(),
		AffectedRows:     h.engine.AffectedRows(),
		LastError:        h.engine.LastError(),
		QueueLength:      h.engine.QueueLen(),
		InTransaction:    h.engine.InTransaction(),
		ServerVersion:    h.engine.ServerVersion(),
	})
}

func (h *Server) registerStats(group *gin.RouterGroup) {
	group.GET("", h.HandleGetStats)
}
