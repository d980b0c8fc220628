// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"time"

	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/lib/util/errors"
	"github.com/pingcap/sqlexec/pkg/util/versioninfo"
	"go.uber.org/zap"
)

// max_execution_time was introduced in MySQL 5.7.8.
const minMaxExecTimeVersion = "5.7.8"

// execRaw runs a statement through the text protocol. It's used for statements that
// can't or needn't be prepared, such as transaction control.
func execRaw(ctx context.Context, conn driver.Conn, sql string) error {
	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		return errors.Wrapf(ErrExecute, "driver doesn't support raw statements")
	}
	_, err := execer.ExecContext(ctx, sql, nil)
	return err
}

func queryVersion(ctx context.Context, conn driver.Conn) (string, error) {
	queryer, ok := conn.(driver.QueryerContext)
	if !ok {
		return "", errors.Wrapf(ErrExecute, "driver doesn't support raw queries")
	}
	rows, err := queryer.QueryContext(ctx, "SELECT VERSION()", nil)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	dest := make([]driver.Value, len(rows.Columns()))
	if len(dest) == 0 {
		return "", errors.Wrapf(ErrExecute, "VERSION() returns no columns")
	}
	if err := rows.Next(dest); err != nil {
		if err == io.EOF {
			return "", errors.Wrapf(ErrExecute, "VERSION() returns no rows")
		}
		return "", err
	}
	return textValue(dest[0], 0), nil
}

// setupSession applies the execution time cap of params to a new session and returns
// the server version.
func setupSession(ctx context.Context, conn driver.Conn, params ConnParams, lg *zap.Logger) (string, error) {
	version, err := queryVersion(ctx, conn)
	if err != nil {
		return "", err
	}
	if params.MaxExecutionTime <= 0 {
		return version, nil
	}
	stmt := capStatement(version, params.Flavor, params.MaxExecutionTime)
	if stmt == "" {
		lg.Info("server doesn't support max_execution_time, statements are not capped", zap.String("version", version))
		return version, nil
	}
	if err := execRaw(ctx, conn, stmt); err != nil {
		return "", err
	}
	return version, nil
}

// capStatement returns the statement that caps the execution time of the session,
// or "" if the server doesn't support it.
func capStatement(version, flavor string, limit time.Duration) string {
	if flavor == config.FlavorMariaDB || (flavor != config.FlavorMySQL && versioninfo.IsMariaDB(version)) {
		// MariaDB takes seconds and supports fractions.
		return fmt.Sprintf("SET @@SESSION.max_statement_time=%s", textValue(limit.Seconds(), 0))
	}
	if !versioninfo.GtEqToVersion(version, minMaxExecTimeVersion) {
		return ""
	}
	ms := limit.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return fmt.Sprintf("SET @@SESSION.max_execution_time=%d", ms)
}
