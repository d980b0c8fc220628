// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package lex

func startsWithKeyword(sql string, keywords [][]string) bool {
	lexer := NewLexer(sql)
	tokens := make([]string, 0, 2)
	for _, kw := range keywords {
		match := true
		for i, t := range kw {
			if len(tokens) <= i {
				tokens = append(tokens, lexer.NextToken())
			}
			if tokens[i] != t {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Statements that may carry passwords or credentials in their text.
var sensitiveKeywords = [][]string{
	{"create", "user"},
	{"alter", "user"},
	{"set", "password"},
	{"grant"},
	{"change", "master"},
	{"change", "replication"},
}

// IsSensitiveSQL reports whether sql should not be written to logs verbatim.
func IsSensitiveSQL(sql string) bool {
	return startsWithKeyword(sql, sensitiveKeywords)
}

// Statements whose prepared form produces a result set.
var rowKeywords = [][]string{
	{"select"},
	{"show"},
	{"describe"},
	{"explain"},
}

// ReturnsRows classifies a statement by its first keyword: SELECT, SHOW, DESCRIBE
// and EXPLAIN fetch rows, anything else is executed as a mutation.
func ReturnsRows(sql string) bool {
	return startsWithKeyword(sql, rowKeywords)
}
