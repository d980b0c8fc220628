// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pingcap/sqlexec/lib/util/errors"
)

// Row maps column names to text values. NULL and the empty string both read as "".
type Row map[string]string

// ResultSet is the outcome of one statement. Rows is empty whenever Error is set.
type ResultSet struct {
	Rows []Row `json:"rows"`
	// Error is empty on success.
	Error string `json:"error,omitempty"`
	// AffectedRows is only meaningful for statements that don't return rows.
	AffectedRows uint64 `json:"affected_rows"`
}

func errorResult(msg string) *ResultSet {
	return &ResultSet{Error: msg}
}

func (rs *ResultSet) OK() bool {
	return rs.Error == ""
}

func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

func (rs *ResultSet) Empty() bool {
	return len(rs.Rows) == 0
}

// At returns the i-th row, or nil if i is out of range.
func (rs *ResultSet) At(i int) Row {
	if i < 0 || i >= len(rs.Rows) {
		return nil
	}
	return rs.Rows[i]
}

// Err returns the error text as an error, or nil on success.
func (rs *ResultSet) Err() error {
	if rs.OK() {
		return nil
	}
	return errors.Wrap(ErrExecute, errors.New(rs.Error))
}

// textValue converts a fetched column value to text and caps it at limit bytes.
func textValue(v any, limit int) string {
	var s string
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		if limit > 0 && len(v) > limit {
			v = v[:limit]
		}
		return string(v)
	case string:
		s = v
	case int64:
		s = strconv.FormatInt(v, 10)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		if v {
			s = "1"
		} else {
			s = "0"
		}
	case time.Time:
		s = v.Format(time.RFC3339)
	default:
		s = fmt.Sprint(v)
	}
	if limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	return s
}
