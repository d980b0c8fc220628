// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package sctx

import (
	"github.com/pingcap/sqlexec/lib/config"
	"github.com/pingcap/sqlexec/pkg/db"
)

type Context struct {
	// Overlay is merged on top of the config file. Zero fields are ignored.
	Overlay    config.Config
	ConfigFile string
	// ConnectorFactory replaces the MySQL driver, mostly in tests.
	ConnectorFactory db.ConnectorFactory
}
