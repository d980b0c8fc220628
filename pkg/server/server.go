// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"runtime"

	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/lib/util/logger"
	"github.com/pingcap/sqlexec/pkg/db"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"github.com/pingcap/sqlexec/pkg/sctx"
	"github.com/pingcap/sqlexec/pkg/server/api"
	"github.com/pingcap/sqlexec/pkg/util/versioninfo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type Server struct {
	Config *config.Config
	Logger *zap.Logger
	// managers
	MetricsManager *metrics.MetricsManager
	logSyncer      *logger.AtomicWriteSyncer
	// executor
	DB *db.DB
	// HTTP server
	APIServer *api.Server
}

func NewServer(ctx context.Context, sctx *sctx.Context) (srv *Server, err error) {
	srv = &Server{
		MetricsManager: metrics.NewMetricsManager(),
	}
	ready := atomic.NewBool(false)
	defer func() {
		if err != nil {
			if cerr := srv.Close(); cerr != nil && srv.Logger != nil {
				srv.Logger.Warn("release resources after failing to start", zap.Error(cerr))
			}
		}
	}()

	// setup config
	if srv.Config, err = config.ReadConfigFile(sctx.ConfigFile); err != nil {
		return
	}
	if err = srv.Config.Merge(&sctx.Overlay); err != nil {
		return
	}
	cfg := srv.Config

	// set up logger
	var lg *zap.Logger
	if lg, srv.logSyncer, err = logger.BuildLogger(&cfg.Log); err != nil {
		err = errors.WithStack(err)
		return
	}
	srv.Logger = lg
	printInfo(lg)

	// setup metrics
	srv.MetricsManager.Init(lg.Named("metrics"))

	// setup the executor
	{
		opts := db.OptionsFromConfig(&cfg.Engine)
		opts.ConnectorFactory = sctx.ConnectorFactory
		srv.DB = db.NewDB(lg.Named("db"), opts)
		if err = srv.DB.Connect(ctx, db.ConnParamsFromConfig(&cfg.Database)); err != nil {
			return
		}
		srv.DB.Start(ctx)
	}

	// setup http
	if srv.APIServer, err = api.NewServer(cfg, lg.Named("api"), srv.DB, ready); err != nil {
		err = errors.WithStack(err)
		return
	}

	ready.Toggle()
	return
}

func printInfo(lg *zap.Logger) {
	fields := []zap.Field{
		zap.String("Release Version", versioninfo.Version),
		zap.String("Git Commit Hash", versioninfo.GitHash),
		zap.String("Git Branch", versioninfo.GitBranch),
		zap.String("UTC Build Time", versioninfo.BuildTS),
		zap.String("GoVersion", runtime.Version()),
		zap.String("OS", runtime.GOOS),
		zap.String("Arch", runtime.GOARCH),
	}
	lg.Info("Welcome to sqlexec.", fields...)
}

// PreClose fails the health check so that clients stop sending requests.
func (s *Server) PreClose() {
	if s.APIServer != nil {
		s.APIServer.PreClose()
	}
}

func (s *Server) Close() error {
	errs := make([]error, 0, 4)
	if s.APIServer != nil {
		errs = append(errs, s.APIServer.Close())
	}
	// The queued statements still run before the connection closes.
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	if s.logSyncer != nil {
		if s.Logger != nil {
			_ = s.Logger.Sync()
		}
		errs = append(errs, s.logSyncer.Close())
	}
	return errors.Collect(ErrCloseServer, errs...)
}
