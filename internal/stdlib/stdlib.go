// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package stdlib provides the default dependency table offered to scripts
// and the language primer shown by the REPL.
package stdlib

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

//go:embed PRIMER.md
var Primer string

// ErrArgument is returned when a library function receives an argument of
// the wrong kind.
var ErrArgument = errors.New("invalid argument")

// Defaults returns a fresh dependency table with every library.
func Defaults() map[string]any {
	return map[string]any{
		"math":     Math(),
		"strings":  Strings(),
		"json":     JSON(),
		"humanize": Humanize(),
		"uuid":     value.Func(newID),
	}
}

// Math returns numeric helpers and constants.
func Math() value.Object {
	return value.Object{
		"PI":    math.Pi,
		"E":     math.E,
		"sqrt":  unary(math.Sqrt),
		"abs":   unary(math.Abs),
		"floor": unary(math.Floor),
		"ceil":  unary(math.Ceil),
		"round": unary(func(x float64) float64 { return math.Floor(x + 0.5) }),
		"trunc": unary(math.Trunc),
		"pow": value.Func(func(_ context.Context, args ...any) (any, error) {
			x, y, err := two(args)
			if err != nil {
				return nil, err
			}
			return math.Pow(x, y), nil
		}),
		"min": fold(math.Inf(1), math.Min),
		"max": fold(math.Inf(-1), math.Max),
	}
}

// Strings returns text helpers.
func Strings() value.Object {
	return value.Object{
		"upper": text(strings.ToUpper),
		"lower": text(strings.ToLower),
		"trim":  text(strings.TrimSpace),
		"length": value.Func(func(_ context.Context, args ...any) (any, error) {
			s, err := str(args, 0)
			if err != nil {
				return nil, err
			}
			return float64(len([]rune(s))), nil
		}),
		"contains": value.Func(func(_ context.Context, args ...any) (any, error) {
			s, sub, err := strs(args)
			if err != nil {
				return nil, err
			}
			return strings.Contains(s, sub), nil
		}),
		"split": value.Func(func(_ context.Context, args ...any) (any, error) {
			s, sep, err := strs(args)
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, sep)
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		}),
		"join": value.Func(func(_ context.Context, args ...any) (any, error) {
			list, ok := arg(args, 0).([]any)
			if !ok {
				return nil, fmt.Errorf("%w: join expects a list", ErrArgument)
			}
			sep := ","
			if s, ok := arg(args, 1).(string); ok {
				sep = s
			}
			parts := make([]string, len(list))
			for i, el := range list {
				parts[i] = value.Format(el)
			}
			return strings.Join(parts, sep), nil
		}),
		"replace": value.Func(func(_ context.Context, args ...any) (any, error) {
			s, err := str(args, 0)
			if err != nil {
				return nil, err
			}
			from, to, err := strs(args[1:])
			if err != nil {
				return nil, err
			}
			return strings.ReplaceAll(s, from, to), nil
		}),
		"repeat": value.Func(func(_ context.Context, args ...any) (any, error) {
			s, err := str(args, 0)
			if err != nil {
				return nil, err
			}
			n, ok := value.Number(arg(args, 1))
			if !ok || n < 0 || n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: repeat count must be a non-negative integer", ErrArgument)
			}
			return strings.Repeat(s, int(n)), nil
		}),
	}
}

// JSON returns parse and stringify.
func JSON() value.Object {
	return value.Object{
		"parse": value.Func(func(_ context.Context, args ...any) (any, error) {
			s, err := str(args, 0)
			if err != nil {
				return nil, err
			}
			var v any
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil, err
			}
			return v, nil
		}),
		"stringify": value.Func(func(_ context.Context, args ...any) (any, error) {
			data, err := json.Marshal(value.Plain(arg(args, 0)))
			if err != nil {
				return nil, err
			}
			return string(data), nil
		}),
	}
}

// Humanize returns number formatting helpers.
func Humanize() value.Object {
	return value.Object{
		"comma": value.Func(func(_ context.Context, args ...any) (any, error) {
			n, err := num(args, 0)
			if err != nil {
				return nil, err
			}
			return humanize.Commaf(n), nil
		}),
		"bytes": value.Func(func(_ context.Context, args ...any) (any, error) {
			n, err := num(args, 0)
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, fmt.Errorf("%w: bytes expects a non-negative size", ErrArgument)
			}
			return humanize.Bytes(uint64(n)), nil
		}),
		"ordinal": value.Func(func(_ context.Context, args ...any) (any, error) {
			n, err := num(args, 0)
			if err != nil {
				return nil, err
			}
			return humanize.Ordinal(int(n)), nil
		}),
	}
}

func newID(context.Context, ...any) (any, error) {
	return uuid.NewString(), nil
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return value.Undefined
}

func num(args []any, i int) (float64, error) {
	n, ok := value.Number(arg(args, i))
	if !ok {
		return 0, fmt.Errorf("%w: expected a number, got %s", ErrArgument, value.Format(arg(args, i)))
	}
	return n, nil
}

func two(args []any) (float64, float64, error) {
	x, err := num(args, 0)
	if err != nil {
		return 0, 0, err
	}
	y, err := num(args, 1)
	return x, y, err
}

func str(args []any, i int) (string, error) {
	s, ok := arg(args, i).(string)
	if !ok {
		return "", fmt.Errorf("%w: expected a string, got %s", ErrArgument, value.Format(arg(args, i)))
	}
	return s, nil
}

func strs(args []any) (string, string, error) {
	a, err := str(args, 0)
	if err != nil {
		return "", "", err
	}
	b, err := str(args, 1)
	return a, b, err
}

func unary(f func(float64) float64) value.Func {
	return func(_ context.Context, args ...any) (any, error) {
		x, err := num(args, 0)
		if err != nil {
			return nil, err
		}
		return f(x), nil
	}
}

func text(f func(string) string) value.Func {
	return func(_ context.Context, args ...any) (any, error) {
		s, err := str(args, 0)
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func fold(start float64, f func(a, b float64) float64) value.Func {
	return func(_ context.Context, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: expected at least one number", ErrArgument)
		}
		acc := start
		for i := range args {
			n, err := num(args, i)
			if err != nil {
				return nil, err
			}
			acc = f(acc, n)
		}
		return acc, nil
	}
}
