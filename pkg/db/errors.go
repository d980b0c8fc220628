// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql/driver"

	"github.com/go-mysql-org/go-mysql/mysql"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/pingcap/sqlexec/lib/util/errors"
)

var (
	ErrConnect       = errors.New("connect to database failed")
	ErrPrepare       = errors.New("prepare statement failed")
	ErrParamCount    = errors.New("incorrect number of parameters")
	ErrBind          = errors.New("bind parameters failed")
	ErrExecute       = errors.New("execute statement failed")
	ErrTxnInProgress = errors.New("a transaction is already in progress")
	ErrTxnRolledBack = errors.New("transaction rolled back")
	ErrTxnConnLost   = errors.New("connection lost during transaction")
	ErrClosed        = errors.New("db is closed")
)

const (
	// client-side error codes reported by libmysqlclient-compatible drivers.
	crServerGoneError = 2006
	crServerLost      = 2013
)

// IsDisconnectError returns true if the error means the connection to the server is unusable.
func IsDisconnectError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) {
		return true
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysql.ER_SERVER_SHUTDOWN, crServerGoneError, crServerLost:
			return true
		}
	}
	return false
}
