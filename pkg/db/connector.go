// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql/driver"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/lib/util/errors"
)

// ConnParams are the resolved parameters of the single database connection.
type ConnParams struct {
	Host     string
	User     string
	Password string
	Schema   string
	Port     int
	// Socket is a unix socket path. A non-empty Socket overrides Host and Port.
	Socket string
	// MaxExecutionTime caps every statement on the server side. 0 disables the cap.
	MaxExecutionTime time.Duration
	Flavor           string
	DialTimeout      time.Duration
}

func ConnParamsFromConfig(cfg *config.Database) ConnParams {
	return ConnParams{
		Host:             cfg.Host,
		User:             cfg.User,
		Password:         cfg.Password,
		Schema:           cfg.Schema,
		Port:             cfg.Port,
		Socket:           cfg.Socket,
		MaxExecutionTime: cfg.MaxExecutionTime,
		Flavor:           cfg.Flavor,
		DialTimeout:      cfg.DialTimeout,
	}
}

// ConnectorFactory builds a connector for the parameters. Tests replace it with a fake driver.
type ConnectorFactory func(params ConnParams) (driver.Connector, error)

// MySQLConnector builds a go-sql-driver/mysql connector.
func MySQLConnector(params ConnParams) (driver.Connector, error) {
	cfg := mysql.NewConfig()
	if params.Socket != "" {
		cfg.Net = "unix"
		cfg.Addr = params.Socket
	} else {
		host, port := params.Host, params.Port
		if host == "" {
			host = "localhost"
		}
		if port == 0 {
			port = config.DefaultPort
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.DBName = params.Schema
	cfg.Timeout = params.DialTimeout
	cfg.MultiStatements = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(ErrConnect, err)
	}
	return connector, nil
}

func (p ConnParams) addr() string {
	if p.Socket != "" {
		return p.Socket
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}
