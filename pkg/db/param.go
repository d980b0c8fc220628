// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pingcap/sqlexec/lib/util/errors"
)

// ParamKind is the kind of a bindable scalar.
type ParamKind uint8

const (
	KindInt32 ParamKind = iota
	KindInt64
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindBool
	KindText
)

var kindNames = [...]string{
	KindInt32:   "i32",
	KindInt64:   "i64",
	KindUint32:  "u32",
	KindUint64:  "u64",
	KindFloat32: "f32",
	KindFloat64: "f64",
	KindBool:    "bool",
	KindText:    "text",
}

func (k ParamKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Param is one positional statement parameter. The zero value is the integer 0.
// Integers are kept in i or u, floats in f and text in s.
type Param struct {
	kind ParamKind
	i    int64
	u    uint64
	f    float64
	s    string
}

func Int32(v int32) Param     { return Param{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Param     { return Param{kind: KindInt64, i: v} }
func Uint32(v uint32) Param   { return Param{kind: KindUint32, u: uint64(v)} }
func Uint64(v uint64) Param   { return Param{kind: KindUint64, u: v} }
func Float32(v float32) Param { return Param{kind: KindFloat32, f: float64(v)} }
func Float64(v float64) Param { return Param{kind: KindFloat64, f: v} }
func Text(v string) Param     { return Param{kind: KindText, s: v} }

func Bool(v bool) Param {
	p := Param{kind: KindBool}
	if v {
		p.u = 1
	}
	return p
}

func (p Param) Kind() ParamKind {
	return p.kind
}

// String returns the text form the parameter is bound with.
func (p Param) String() string {
	switch p.kind {
	case KindInt32, KindInt64:
		return strconv.FormatInt(p.i, 10)
	case KindUint32, KindUint64:
		return strconv.FormatUint(p.u, 10)
	case KindFloat32:
		return strconv.FormatFloat(p.f, 'f', -1, 32)
	case KindFloat64:
		return strconv.FormatFloat(p.f, 'f', -1, 64)
	case KindBool:
		if p.u != 0 {
			return "1"
		}
		return "0"
	default:
		return p.s
	}
}

// Params is an ordered list of parameters bound to `?` placeholders.
type Params []Param

// key encodes the parameters with their kinds so that Int32(1) and Text("1") differ.
func (ps Params) key() string {
	if len(ps) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range ps {
		v := p.String()
		sb.WriteString(p.kind.String())
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(len(v)))
		sb.WriteByte(':')
		sb.WriteString(v)
	}
	return sb.String()
}

// MustParams converts Go scalars into Params. It panics on unsupported types.
func MustParams(vals ...any) Params {
	ps := make(Params, 0, len(vals))
	for _, v := range vals {
		p, err := toParam(v)
		if err != nil {
			panic(err)
		}
		ps = append(ps, p)
	}
	return ps
}

func toParam(v any) (Param, error) {
	switch v := v.(type) {
	case Param:
		return v, nil
	case int:
		return Int64(int64(v)), nil
	case int8:
		return Int32(int32(v)), nil
	case int16:
		return Int32(int32(v)), nil
	case int32:
		return Int32(v), nil
	case int64:
		return Int64(v), nil
	case uint:
		return Uint64(uint64(v)), nil
	case uint8:
		return Uint32(uint32(v)), nil
	case uint16:
		return Uint32(uint32(v)), nil
	case uint32:
		return Uint32(v), nil
	case uint64:
		return Uint64(v), nil
	case float32:
		return Float32(v), nil
	case float64:
		return Float64(v), nil
	case bool:
		return Bool(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return Text(string(v)), nil
	default:
		return Param{}, errors.Wrapf(ErrBind, "unsupported parameter type %T", v)
	}
}

// ParseParam parses the `kind:value` form, e.g. "i64:3" or "text:hello".
// A value without a known kind prefix is treated as text.
func ParseParam(s string) (Param, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return Text(s), nil
	}
	var (
		err error
		p   Param
	)
	switch kind {
	case "i32":
		var v int64
		v, err = strconv.ParseInt(value, 10, 32)
		p = Int32(int32(v))
	case "i64":
		var v int64
		v, err = strconv.ParseInt(value, 10, 64)
		p = Int64(v)
	case "u32":
		var v uint64
		v, err = strconv.ParseUint(value, 10, 32)
		p = Uint32(uint32(v))
	case "u64":
		var v uint64
		v, err = strconv.ParseUint(value, 10, 64)
		p = Uint64(v)
	case "f32":
		var v float64
		v, err = strconv.ParseFloat(value, 32)
		p = Float32(float32(v))
	case "f64":
		var v float64
		v, err = strconv.ParseFloat(value, 64)
		p = Float64(v)
	case "bool":
		var v bool
		v, err = strconv.ParseBool(value)
		p = Bool(v)
	case "text":
		p = Text(value)
	default:
		return Text(s), nil
	}
	if err != nil {
		return Param{}, errors.Wrap(ErrBind, fmt.Errorf("parse %q: %w", s, err))
	}
	return p, nil
}
