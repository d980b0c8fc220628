// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package versioninfo

import (
	"fmt"
	"strings"

	semver "github.com/Masterminds/semver"
)

// These variables will be overwritten by Makefile.
var (
	Version   = "None"
	GitBranch = "None"
	GitHash   = "None"
	BuildTS   = "None"
)

// GtEqToVersion returns whether v1 >= v2. Build suffixes of server versions such as
// "5.7.44-log" or "8.0.36-0ubuntu0.22.04.1" are ignored.
// If any version can't be parsed, it returns true.
func GtEqToVersion(v1, v2 string) bool {
	constraint, err := semver.NewConstraint(fmt.Sprintf(">=%s", v2))
	if err != nil {
		return true
	}
	if idx := strings.IndexByte(v1, '-'); idx > 0 {
		v1 = v1[:idx]
	}
	ver, err := semver.NewVersion(v1)
	if err != nil {
		return true
	}
	return constraint.Check(ver)
}

// IsMariaDB tells MariaDB servers apart from MySQL by the VERSION() string.
func IsMariaDB(serverVersion string) bool {
	return strings.Contains(strings.ToLower(serverVersion), "mariadb")
}
