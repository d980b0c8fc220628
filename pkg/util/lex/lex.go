// Copyright 2026 PingCAP, Inc.
// SPDX-License-Identifier: Apache-2.0

package lex

// Lexer walks identifiers and keywords of a statement, skipping comments, quoted
// strings, numbers and punctuation. It is meant for looking at leading keywords,
// not for parsing.
type Lexer struct {
	sql      string
	curToken []byte
	curIdx   int
}

func NewLexer(sql string) *Lexer {
	return &Lexer{
		sql:      sql,
		curToken: make([]byte, 0, 16),
	}
}

// NextToken returns the next identifier or keyword in lower case, or "" at the end.
func (l *Lexer) NextToken() string {
	l.curToken = l.curToken[:0]
	inLineComment, inBlockComment := false, false
	var quote byte
	for ; l.curIdx < len(l.sql); l.curIdx++ {
		char := l.sql[l.curIdx]
		switch {
		case inLineComment:
			if char == '\n' {
				inLineComment = false
			}
		case inBlockComment:
			if char == '*' && l.peek() == '/' {
				inBlockComment = false
				l.curIdx++
			}
		case quote != 0:
			if char == '\\' {
				l.curIdx++
			} else if char == quote {
				quote = 0
			}
		case char == '#':
			inLineComment = true
		case char == '-' && l.peek() == '-':
			l.curIdx++
			inLineComment = true
		case char == '/' && l.peek() == '*':
			l.curIdx++
			inBlockComment = true
		case char == '\'' || char == '"' || char == '`':
			quote = char
		case char >= 'A' && char <= 'Z':
			l.curToken = append(l.curToken, char-'A'+'a')
		case char >= 'a' && char <= 'z' || char == '_':
			l.curToken = append(l.curToken, char)
		default:
			if len(l.curToken) > 0 {
				l.curIdx++
				return string(l.curToken)
			}
		}
	}
	return string(l.curToken)
}

func (l *Lexer) peek() byte {
	if l.curIdx+1 < len(l.sql) {
		return l.sql[l.curIdx+1]
	}
	return 0
}

// FirstKeyword returns the leading keyword of sql in lower case.
func FirstKeyword(sql string) string {
	return NewLexer(sql).NextToken()
}
