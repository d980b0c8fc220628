// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql/driver"
	"sync"
	"time"

	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/lib/util/logger"
	"github.com/pingcap/sqlexec/lib/util/retry"
	"github.com/pingcap/sqlexec/pkg/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// connManager owns the single database connection and its statement cache.
// mu is held for the whole duration of every driver call.
type connManager struct {
	mu      sync.Mutex
	lg      *zap.Logger
	factory ConnectorFactory
	conn    driver.Conn
	stmts   *stmtCache
	// params are remembered for reconnection once Connect is called, even if it fails.
	params    ConnParams
	hasParams bool
	closed    bool
	// generation increases on every established connection. A transaction compares it
	// to detect that the server discarded it.
	generation    uint64
	version       atomic.String
	retries       uint64
	retryInterval time.Duration
}

func newConnManager(lg *zap.Logger, factory ConnectorFactory, retries uint64, retryInterval time.Duration) *connManager {
	if factory == nil {
		factory = MySQLConnector
	}
	return &connManager{
		lg:            lg,
		factory:       factory,
		stmts:         newStmtCache(),
		retries:       retries,
		retryInterval: retryInterval,
	}
}

func (cm *connManager) connect(ctx context.Context, params ConnParams) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return ErrClosed
	}
	return cm.connectLocked(ctx, params)
}

// connectLocked replaces the current connection. The caller must hold mu.
func (cm *connManager) connectLocked(ctx context.Context, params ConnParams) error {
	if err := cm.closeConnLocked(); err != nil {
		cm.lg.Warn("close previous connection failed", zap.Error(err))
	}
	cm.params, cm.hasParams = params, true
	connector, err := cm.factory(params)
	if err != nil {
		return errors.Wrap(ErrConnect, err)
	}
	conn, err := connector.Connect(ctx)
	if err != nil {
		return errors.Wrap(ErrConnect, err)
	}
	version, err := setupSession(ctx, conn, params, cm.lg)
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			cm.lg.Warn("close connection failed", zap.Error(cerr))
		}
		return errors.Wrap(ErrConnect, err)
	}
	cm.conn = conn
	cm.generation++
	cm.version.Store(version)
	cm.lg.Info("connected to database",
		zap.String("addr", params.addr()),
		zap.String("user", params.User),
		zap.String("schema", params.Schema),
		zap.String("server_version", version),
		zap.Duration("max_execution_time", params.MaxExecutionTime))
	return nil
}

// closeConnLocked drops every cached statement and the connection.
func (cm *connManager) closeConnLocked() error {
	var errs []error
	if err := cm.stmts.clear(); err != nil {
		errs = append(errs, err)
	}
	if cm.conn != nil {
		if err := cm.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		cm.conn = nil
	}
	return errors.Collect(errors.New("close connection"), errs...)
}

func (cm *connManager) close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.closed = true
	return cm.closeConnLocked()
}

// ensureAliveLocked pings the connection and reconnects it if the ping fails.
func (cm *connManager) ensureAliveLocked(ctx context.Context) error {
	if cm.closed {
		return ErrClosed
	}
	if cm.conn != nil {
		pinger, ok := cm.conn.(driver.Pinger)
		if !ok {
			return nil
		}
		err := pinger.Ping(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cm.lg.Error("ping database failed, reconnecting", zap.Error(err))
	} else if !cm.hasParams {
		return errors.Wrapf(ErrConnect, "not connected")
	}
	return cm.reconnectLocked(ctx)
}

// reconnectLocked re-establishes the connection with the remembered parameters.
// The cached statements are cleared before dialing because their handles die with the old connection.
func (cm *connManager) reconnectLocked(ctx context.Context) error {
	if err := cm.closeConnLocked(); err != nil {
		cm.lg.Warn("close lost connection failed", zap.Error(err))
	}
	err := retry.RetryNotify(ctx, func() error {
		return cm.connectLocked(ctx, cm.params)
	}, cm.retryInterval, cm.retries, func(err error, d time.Duration) {
		cm.lg.Warn("reconnect to database failed, retrying", zap.Error(err), zap.Duration("interval", d))
	})
	if err != nil {
		metrics.ReconnectCounter.WithLabelValues(metrics.ResultFail).Inc()
		cm.lg.Error("reconnect to database failed", zap.String("addr", cm.params.addr()), zap.Error(err), logger.SeverityCritical)
		return err
	}
	metrics.ReconnectCounter.WithLabelValues(metrics.ResultSucceed).Inc()
	return nil
}

func (cm *connManager) prepareLocked(ctx context.Context, query string) (driver.Stmt, error) {
	if preparer, ok := cm.conn.(driver.ConnPrepareContext); ok {
		return preparer.PrepareContext(ctx, query)
	}
	return cm.conn.Prepare(query)
}
