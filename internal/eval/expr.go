// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/token"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// eval evaluates one expression token against s.
func (r *run) eval(ctx context.Context, tok string, s *Scope) (any, error) {
	t := strings.TrimSpace(tok)
	if t == "" {
		return value.Undefined, nil
	}

	if v, ok := singleQuoted(t); ok {
		return v, nil
	}
	if isQuotedSpan(t, '"') {
		var str string
		if err := json.Unmarshal([]byte(t), &str); err != nil {
			return nil, syntaxError("bad string literal %s: %v", t, err)
		}
		return str, nil
	}
	if v, ok := jsonLiteral(t); ok {
		return v, nil
	}
	if isDecimal(t) {
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, syntaxError("bad number %s", t)
		}
		return n, nil
	}
	switch t {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "undefined":
		return value.Undefined, nil
	}

	if scanner.IsIdent(t) {
		if v, ok := s.Resolve(t); ok {
			return v, nil
		}
	}
	if root, segs, ok := value.ParsePath(t); ok {
		if base, found := s.Resolve(root); found {
			if v, found := value.Lookup(base, segs); found {
				return v, nil
			}
		}
	}
	if _, ok := scanner.ParseCall(t); ok {
		return r.callExpr(ctx, t, s)
	}
	if inner, ok := scanner.Enclosed(t); ok {
		return r.eval(ctx, inner, s)
	}

	for _, group := range token.Groups {
		op, at := scanner.LastOperator(t, group)
		if at < 0 {
			continue
		}
		return r.binary(ctx, op, t[:at], t[at+op.Len():], s)
	}

	switch t[0] {
	case '!':
		v, err := r.operand(ctx, t[1:], s)
		if err != nil {
			return nil, err
		}
		return !value.Truthy(v), nil
	case '-', '+':
		v, err := r.operand(ctx, t[1:], s)
		if err != nil {
			return nil, err
		}
		n, ok := value.Number(v)
		if !ok {
			return nil, fmt.Errorf("%w: expected numeric value for expression token: %s", ErrType, t[1:])
		}
		if t[0] == '-' {
			return -n, nil
		}
		return n, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownValue, t)
}

// operand evaluates one side of an operator. Unlike a whole expression it may
// not be empty.
func (r *run) operand(ctx context.Context, tok string, s *Scope) (any, error) {
	if strings.TrimSpace(tok) == "" {
		return nil, syntaxError("missing operand")
	}
	return r.eval(ctx, tok, s)
}

func (r *run) evalAll(ctx context.Context, toks []string, s *Scope) ([]any, error) {
	out := make([]any, 0, len(toks))
	for _, tok := range toks {
		v, err := r.eval(ctx, tok, s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *run) binary(ctx context.Context, op token.Token, lhs, rhs string, s *Scope) (any, error) {
	left, err := r.operand(ctx, lhs, s)
	if err != nil {
		return nil, err
	}
	right, err := r.operand(ctx, rhs, s)
	if err != nil {
		return nil, err
	}
	return apply(op, left, right, strings.TrimSpace(lhs), strings.TrimSpace(rhs))
}

func apply(op token.Token, left, right any, lhs, rhs string) (any, error) {
	switch op {
	case token.OR:
		return value.Truthy(left) || value.Truthy(right), nil
	case token.AND:
		return value.Truthy(left) && value.Truthy(right), nil
	case token.EQ:
		return value.Equal(left, right), nil
	case token.NEQ:
		return !value.Equal(left, right), nil
	case token.GEQ, token.LEQ, token.GT, token.LT:
		ok, err := compare(op, left, right, lhs, rhs)
		if err != nil {
			return nil, err
		}
		return ok, nil
	case token.ADD:
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return value.Format(left) + value.Format(right), nil
		}
	}

	a, err := number(left, lhs)
	if err != nil {
		return nil, err
	}
	b, err := number(right, rhs)
	if err != nil {
		return nil, err
	}
	switch op {
	case token.ADD:
		return a + b, nil
	case token.SUB:
		return a - b, nil
	case token.MUL:
		return a * b, nil
	case token.DIV:
		return a / b, nil
	case token.MOD:
		return math.Mod(a, b), nil
	}
	return nil, fmt.Errorf("%w: unsupported operator %s", ErrSyntax, op)
}

func compare(op token.Token, left, right any, lhs, rhs string) (bool, error) {
	var c int
	a, aNum := value.Number(left)
	b, bNum := value.Number(right)
	as, aStr := left.(string)
	bs, bStr := right.(string)
	switch {
	case aNum && bNum:
		if math.IsNaN(a) || math.IsNaN(b) {
			return false, nil
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	case aStr && bStr:
		c = strings.Compare(as, bs)
	default:
		return false, fmt.Errorf("%w: cannot compare %s %s %s", ErrType, lhs, op, rhs)
	}

	switch op {
	case token.GEQ:
		return c >= 0, nil
	case token.LEQ:
		return c <= 0, nil
	case token.GT:
		return c > 0, nil
	default:
		return c < 0, nil
	}
}

func number(v any, tok string) (float64, error) {
	n, ok := value.Number(v)
	if !ok {
		return 0, fmt.Errorf("%w: expected numeric value for expression token: %s", ErrType, tok)
	}
	return n, nil
}

// singleQuoted decodes a literal that is exactly one '...' span. Only \' is
// an escape.
func singleQuoted(t string) (string, bool) {
	if !isQuotedSpan(t, '\'') {
		return "", false
	}
	return strings.ReplaceAll(t[1:len(t)-1], `\'`, `'`), true
}

// isQuotedSpan reports whether t opens with q and the first unescaped q after
// it is the final byte. A backslash escapes the byte that follows it.
func isQuotedSpan(t string, q byte) bool {
	if len(t) < 2 || t[0] != q || t[len(t)-1] != q {
		return false
	}
	for i := 1; i < len(t); i++ {
		switch t[i] {
		case '\\':
			i++
		case q:
			return i == len(t)-1
		}
	}
	return false
}

func jsonLiteral(t string) (any, bool) {
	if !(t[0] == '{' && t[len(t)-1] == '}') && !(t[0] == '[' && t[len(t)-1] == ']') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return nil, false
	}
	return v, true
}

// isDecimal matches -?\d+(\.\d+)?
func isDecimal(t string) bool {
	i := 0
	if t[0] == '-' {
		i++
	}
	digits := func() int {
		start := i
		for i < len(t) && t[i] >= '0' && t[i] <= '9' {
			i++
		}
		return i - start
	}
	if digits() == 0 {
		return false
	}
	if i == len(t) {
		return true
	}
	if t[i] != '.' {
		return false
	}
	i++
	return digits() > 0 && i == len(t)
}
