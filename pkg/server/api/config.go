// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const redactedPassword = "******"

func (h *Server) HandleGetConfig(c *gin.Context) {
	cfg := h.cfg.Clone()
	if cfg.Database.Password != "" {
		cfg.Database.Password = redactedPassword
	}
	switch strings.ToLower(c.Query("format")) {
	case "json":
		c.JSON(http.StatusOK, cfg)
	default:
		c.TOML(http.StatusOK, cfg)
	}
}

func (h *Server) registerConfig(group *gin.RouterGroup) {
	group.GET("", h.HandleGetConfig)
}
