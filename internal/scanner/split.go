// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package scanner

import (
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/token"
)

// Call is a parsed name(args...) form.
type Call struct {
	Name string
	Args string // Raw text between the outer parentheses
}

// Split returns the top-level argument tokens.
func (c Call) Split() []string {
	return SplitTopLevel(c.Args)
}

// ParseCall parses s as name(args...). The parenthesis opened after the name
// must be the one closed at the end of s, so "f(a) + g(b)" is not a call.
func ParseCall(s string) (Call, bool) {
	s = TrimSemicolon(s)
	name, rest := ReadIdent(s)
	if name == "" {
		return Call{}, false
	}
	rest = strings.TrimLeft(rest, " \t")
	if _, ok := Enclosed(rest); !ok {
		return Call{}, false
	}
	return Call{Name: name, Args: strings.TrimSpace(rest[1 : len(rest)-1])}, true
}

// SplitTopLevel splits input on commas that are outside quotes and outside
// nested (), [] and {}. Empty trailing input yields no token.
func SplitTopLevel(input string) []string {
	var (
		args    []string
		q       quotes
		depth   int
		current strings.Builder
	)
	for i := 0; i < len(input); i++ {
		c := input[i]
		if q.step(input, i) || q.inside() {
			current.WriteByte(c)
			continue
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(current.String()))
				current.Reset()
				continue
			}
		}
		current.WriteByte(c)
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		args = append(args, rest)
	}
	return args
}

// Enclosed reports whether s is wrapped by a single top-level pair of
// parentheses and returns the text between them.
func Enclosed(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", false
	}
	var q quotes
	depth := 0
	for i := 0; i < len(s); i++ {
		if q.step(s, i) || q.inside() {
			continue
		}
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && i < len(s)-1 {
			return "", false
		}
	}
	if depth != 0 {
		return "", false
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}

// LastOperator finds the right-most top-level occurrence of any operator in
// group. Operators inside quotes or nested brackets are ignored, as are signs
// in unary position. It returns token.ILLEGAL and -1 when nothing matches.
func LastOperator(expr string, group []token.Token) (token.Token, int) {
	var (
		q     quotes
		depth int
		found = token.ILLEGAL
		at    = -1
	)
	for i := 0; i < len(expr); i++ {
		if q.step(expr, i) || q.inside() {
			continue
		}
		switch expr[i] {
		case '(', '[', '{':
			depth++
			continue
		case ')', ']', '}':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range group {
			if !strings.HasPrefix(expr[i:], op.String()) {
				continue
			}
			if op.IsSign() && isUnary(expr, i) {
				continue
			}
			found, at = op, i
			i += op.Len() - 1
			break
		}
	}
	return found, at
}

func isUnary(expr string, i int) bool {
	prefix := strings.TrimRight(expr[:i], " \t")
	if prefix == "" {
		return true
	}
	return token.IsUnaryContext(prefix[len(prefix)-1])
}

// ReadIdent reads a leading identifier and returns it with the remainder.
func ReadIdent(s string) (string, string) {
	i := 0
	for i < len(s) && isIdentByte(s[i], i == 0) {
		i++
	}
	return s[:i], s[i:]
}

// IsIdent reports whether s is a complete identifier.
func IsIdent(s string) bool {
	name, rest := ReadIdent(s)
	return name != "" && rest == ""
}

// CutKeyword reports whether line begins with the keyword kw as a whole word
// and returns the remainder.
func CutKeyword(line, kw string) (string, bool) {
	if !strings.HasPrefix(line, kw) {
		return "", false
	}
	rest := line[len(kw):]
	if rest != "" && isIdentByte(rest[0], false) {
		return "", false
	}
	return rest, true
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
