// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/token"
)

// binding is the parsed form of `let x = e`, `const x = e` or `x = e`.
type binding struct {
	declare bool
	isConst bool
	name    string
	expr    string
}

// parseBinding recognizes declarations and assignments. It reports ok=false
// for lines of any other shape; a line that starts with let or const but is
// otherwise malformed is a syntax error.
func parseBinding(line string) (binding, bool, error) {
	line = scanner.TrimSemicolon(line)

	for _, kw := range []string{token.Let, token.Const} {
		rest, ok := scanner.CutKeyword(line, kw)
		if !ok {
			continue
		}
		b, ok := parseAssignment(strings.TrimLeft(rest, " \t"))
		if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
			return binding{}, false, syntaxError("invalid declaration: %s", line)
		}
		b.declare = true
		b.isConst = kw == token.Const
		return b, true, nil
	}

	b, ok := parseAssignment(line)
	return b, ok, nil
}

func parseAssignment(s string) (binding, bool) {
	name, rest := scanner.ReadIdent(s)
	if name == "" {
		return binding{}, false
	}
	rest = strings.TrimLeft(rest, " \t")
	if len(rest) < 2 || rest[0] != '=' || rest[1] == '=' {
		return binding{}, false
	}
	expr := strings.TrimSpace(rest[1:])
	if expr == "" {
		return binding{}, false
	}
	return binding{name: name, expr: expr}, true
}

// function header: umukoro name(a, b) {
func parseFunctionHeader(line string) (string, []string, error) {
	rest, _ := scanner.CutKeyword(line, token.Function)
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", nil, syntaxError("invalid function declaration: %s", line)
	}
	name, rest := scanner.ReadIdent(strings.TrimLeft(rest, " \t"))
	if name == "" {
		return "", nil, syntaxError("invalid function declaration: %s", line)
	}
	inner, ok := parenHeader(rest)
	if !ok || strings.ContainsAny(inner, "()") {
		return "", nil, syntaxError("invalid function declaration: %s", line)
	}

	var params []string
	if inner != "" {
		for _, p := range strings.Split(inner, ",") {
			p = strings.TrimSpace(p)
			if !scanner.IsIdent(p) {
				return "", nil, syntaxError("invalid function parameter %q in %s", p, name)
			}
			params = append(params, p)
		}
	}
	return name, params, nil
}

// parenHeader takes the text after a block keyword, `(inner) {`, and returns
// inner. The parenthesis group runs from the first '(' to the last ')'.
func parenHeader(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	if !strings.HasSuffix(rest, "{") {
		return "", false
	}
	rest = strings.TrimSpace(rest[:len(rest)-1])
	if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}

// loopHeader is subiramo(count) or subiramo(name, start, end).
type loopHeader struct {
	count    string
	variable string
	start    string
	end      string
}

func parseLoopHeader(line string) (loopHeader, error) {
	rest, _ := scanner.CutKeyword(line, token.Loop)
	inner, ok := parenHeader(rest)
	if !ok {
		return loopHeader{}, syntaxError("invalid loop declaration: %s", line)
	}
	args := scanner.SplitTopLevel(inner)
	switch len(args) {
	case 1:
		return loopHeader{count: args[0]}, nil
	case 3:
		if !scanner.IsIdent(args[0]) {
			return loopHeader{}, syntaxError("invalid loop variable: %s", args[0])
		}
		return loopHeader{variable: args[0], start: args[1], end: args[2]}, nil
	}
	return loopHeader{}, syntaxError("%s expects 1 or 3 arguments: %s", token.Loop, line)
}

func parseConditionHeader(line string) (string, error) {
	rest, _ := scanner.CutKeyword(line, token.If)
	cond, ok := parenHeader(rest)
	if !ok || cond == "" {
		return "", syntaxError("invalid conditional declaration: %s", line)
	}
	return cond, nil
}

func isElseHeader(line string) bool {
	rest, ok := scanner.CutKeyword(line, token.Else)
	return ok && strings.TrimSpace(rest) == "{"
}

// specifier is one `name` or `name as alias` entry of an import or export
// list.
type specifier struct {
	name  string
	alias string
}

func parseSpecifiers(list string) ([]specifier, error) {
	var specs []specifier
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		f := strings.Fields(raw)
		switch {
		case len(f) == 1 && scanner.IsIdent(f[0]):
			specs = append(specs, specifier{name: f[0], alias: f[0]})
		case len(f) == 3 && f[1] == token.As && scanner.IsIdent(f[0]) && scanner.IsIdent(f[2]):
			specs = append(specs, specifier{name: f[0], alias: f[2]})
		default:
			return nil, syntaxError("invalid specifier: %s", raw)
		}
	}
	if len(specs) == 0 {
		return nil, syntaxError("empty specifier list")
	}
	return specs, nil
}

// quoted returns the contents of a 'single' or "double" quoted module name.
func quoted(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return "", false
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if strings.IndexByte(inner, q) >= 0 {
		return "", false
	}
	return inner, true
}
