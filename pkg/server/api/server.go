// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/lib/util/waitgroup"
	"github.com/pingcap/sqlexec/pkg/db"
	"go.uber.org/atomic"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefAPILimit is the global API limit per second.
	DefAPILimit = 100
	// DefConnTimeout is used as timeout duration in the HTTP server.
	DefConnTimeout = 30 * time.Second
)

// Engine is the part of the database engine exposed over HTTP.
type Engine interface {
	Execute(ctx context.Context, query string, params db.Params) *db.ResultSet
	ExecuteCached(ctx context.Context, query string, params db.Params, ttl time.Duration) *db.ResultSet
	Enqueue(query string, params db.Params, cb db.Callback) *db.Future[*db.ResultSet]
	CacheSize() int
	MemoSize() int
	QueryCount() uint64
	AffectedRows() uint64
	LastError() string
	QueueLen() int
	InTransaction() bool
	ServerVersion() string
}

type Server struct {
	listener  net.Listener
	wg        waitgroup.WaitGroup
	limit     ratelimit.Limiter
	ready     *atomic.Bool
	lg        *zap.Logger
	isClosing atomic.Bool
	engine    Engine
	cfg       *config.Config
}

// NewServer starts serving the API on cfg.API.Addr. The API answers 500 until ready is set.
func NewServer(cfg *config.Config, lg *zap.Logger, engine Engine, ready *atomic.Bool) (*Server, error) {
	h := &Server{
		limit:  ratelimit.New(DefAPILimit),
		ready:  ready,
		lg:     lg,
		engine: engine,
		cfg:    cfg,
	}

	var err error
	h.listener, err = net.Listen("tcp", cfg.API.Addr)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engineHandler := gin.New()
	engineHandler.Use(
		gin.Recovery(),
		h.rateLimit,
		h.readyState,
		h.attachLogger,
	)

	h.registerAPI(engineHandler.Group("/api"))
	// The path is consistent with other components.
	h.registerMetrics(engineHandler.Group("metrics"))

	hsrv := http.Server{
		Handler:           engineHandler.Handler(),
		ReadHeaderTimeout: DefConnTimeout,
		IdleTimeout:       DefConnTimeout,
	}

	h.wg.RunWithRecover(func() {
		lg.Info("HTTP closed", zap.Error(hsrv.Serve(h.listener)))
	}, nil, h.lg)

	return h, nil
}

func (h *Server) Addr() string {
	return h.listener.Addr().String()
}

func (h *Server) rateLimit(c *gin.Context) {
	_ = h.limit.Take()
}

func (h *Server) attachLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	latency := time.Since(start)

	fields := make([]zapcore.Field, 0, 7)
	fields = append(fields,
		zap.Int("status", c.Writer.Status()),
		zap.String("method", c.Request.Method),
		zap.String("query", c.Request.URL.RawQuery),
		zap.String("ip", c.ClientIP()),
		zap.String("user-agent", c.Request.UserAgent()),
		zap.Duration("latency", latency),
	)

	path := c.Request.URL.Path
	switch {
	case len(c.Errors) > 0:
		errs := make([]error, 0, len(c.Errors))
		for _, e := range c.Errors {
			errs = append(errs, e)
		}
		fields = append(fields, zap.Errors("errs", errs))
		h.lg.Warn(path, fields...)
	default:
		h.lg.Debug(path, fields...)
	}
}

func (h *Server) readyState(c *gin.Context) {
	if !h.ready.Load() {
		c.Abort()
		c.JSON(http.StatusInternalServerError, "service not ready")
	}
}

func (h *Server) registerAPI(g *gin.RouterGroup) {
	{
		adminGroup := g.Group("admin")
		h.registerConfig(adminGroup.Group("config"))
	}

	h.registerStats(g.Group("stats"))
	h.registerQuery(g.Group("query"))
	h.registerMetrics(g.Group("metrics"))
	h.registerDebug(g.Group("debug"))
}

// PreClose makes the health check fail so that the clients stop sending requests.
func (h *Server) PreClose() {
	h.isClosing.Store(true)
}

func (h *Server) Close() error {
	err := h.listener.Close()
	h.wg.Wait()
	return err
}
