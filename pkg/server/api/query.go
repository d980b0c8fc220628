// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pingcap/sqlexec/pkg/db"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query string `json:"query"`
	// Params are in the form of kind:value, e.g. "i64:3".
	Params []string `json:"params,omitempty"`
	// CacheTTL memoizes the result, e.g. "10s".
	CacheTTL string `json:"cache_ttl,omitempty"`
	// Async runs the statement on the worker queue.
	Async bool `json:"async,omitempty"`
}

func (h *Server) HandleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CreateJsonResp(http.StatusBadRequest, err.Error()))
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, CreateJsonResp(http.StatusBadRequest, "empty query"))
		return
	}
	params := make(db.Params, 0, len(req.Params))
	for _, s := range req.Params {
		p, err := db.ParseParam(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, CreateJsonResp(http.StatusBadRequest, err.Error()))
			return
		}
		params = append(params, p)
	}

	var rs *db.ResultSet
	switch {
	case req.Async:
		var err error
		rs, err = h.engine.Enqueue(req.Query, params, nil).Wait(c.Request.Context())
		if err != nil {
			c.Errors = append(c.Errors, &gin.Error{Err: err, Type: gin.ErrorTypePrivate})
			c.JSON(http.StatusGatewayTimeout, CreateJsonResp(http.StatusGatewayTimeout, err.Error()))
			return
		}
	case req.CacheTTL != "":
		ttl, err := time.ParseDuration(req.CacheTTL)
		if err != nil {
			c.JSON(http.StatusBadRequest, CreateJsonResp(http.StatusBadRequest, err.Error()))
			return
		}
		rs = h.engine.ExecuteCached(c.Request.Context(), req.Query, params, ttl)
	default:
		rs = h.engine.Execute(c.Request.Context(), req.Query, params)
	}
	if !rs.OK() {
		c.Errors = append(c.Errors, &gin.Error{Err: rs.Err(), Type: gin.ErrorTypePrivate})
		c.JSON(http.StatusUnprocessableEntity, rs)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (h *Server) registerQuery(group *gin.RouterGroup) {
	group.POST("", h.HandleQuery)
}
