// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/token"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// exec runs a sequence of logical lines in s. It stops at the first fault or
// return signal.
func (r *run) exec(ctx context.Context, lines []string, s *Scope) (flow, error) {
	for i := 0; i < len(lines); i++ {
		if err := ctx.Err(); err != nil {
			return flow{}, err
		}

		line := strings.TrimSpace(lines[i])
		if line == "" || line == "{" || line == "}" {
			continue
		}

		if _, ok := scanner.CutKeyword(line, token.Function); ok {
			end, err := r.declareFunction(lines, i, s)
			if err != nil {
				return flow{}, err
			}
			i = end
			continue
		}

		if _, ok := scanner.CutKeyword(line, token.Loop); ok {
			f, end, err := r.loop(ctx, lines, i, s)
			if err != nil || f.returned {
				return f, err
			}
			i = end
			continue
		}

		if _, ok := scanner.CutKeyword(line, token.If); ok {
			f, end, err := r.conditional(ctx, lines, i, s)
			if err != nil || f.returned {
				return f, err
			}
			i = end
			continue
		}

		if _, ok := scanner.CutKeyword(line, token.Else); ok {
			return flow{}, syntaxError("%s without %s: %s", token.Else, token.If, line)
		}

		if rest, ok := scanner.CutKeyword(line, token.Return); ok {
			v, err := r.eval(ctx, scanner.TrimSemicolon(rest), s)
			if err != nil {
				return flow{}, err
			}
			return flow{returned: true, value: v}, nil
		}

		if rest, ok := scanner.CutKeyword(line, token.Import); ok {
			if err := r.importStatement(line, rest, s); err != nil {
				return flow{}, err
			}
			continue
		}

		if rest, ok := scanner.CutKeyword(line, token.Export); ok {
			if err := r.exportStatement(ctx, line, rest, s); err != nil {
				return flow{}, err
			}
			continue
		}

		b, ok, err := parseBinding(line)
		if err != nil {
			return flow{}, err
		}
		if ok {
			if err := r.bind(ctx, b, s); err != nil {
				return flow{}, err
			}
			continue
		}

		v, err := r.command(ctx, line, s)
		if err != nil {
			return flow{}, err
		}
		r.emit(v)
	}
	return flow{}, nil
}

func (r *run) bind(ctx context.Context, b binding, s *Scope) error {
	v, err := r.eval(ctx, b.expr, s)
	if err != nil {
		return err
	}
	if b.declare {
		return s.Declare(b.name, v, b.isConst)
	}
	return s.Assign(b.name, v)
}

func (r *run) declareFunction(lines []string, i int, s *Scope) (int, error) {
	name, params, err := parseFunctionHeader(lines[i])
	if err != nil {
		return 0, err
	}
	block, err := scanner.CollectBlock(lines, i)
	if err != nil {
		return 0, err
	}
	r.define(&Function{Name: name, Params: params, Body: block.Body, Scope: s})
	r.log.Debug("define", "function", name, "params", len(params))
	return block.End, nil
}

func (r *run) loop(ctx context.Context, lines []string, i int, s *Scope) (flow, int, error) {
	h, err := parseLoopHeader(lines[i])
	if err != nil {
		return flow{}, 0, err
	}
	block, err := scanner.CollectBlock(lines, i)
	if err != nil {
		return flow{}, 0, err
	}

	if h.variable == "" {
		v, err := r.eval(ctx, h.count, s)
		if err != nil {
			return flow{}, 0, err
		}
		n, ok := value.Number(v)
		if !ok || n < 0 || n != math.Trunc(n) || math.IsInf(n, 0) {
			return flow{}, 0, fmt.Errorf("%w: loop count must be a non-negative integer: %s", ErrType, h.count)
		}
		r.log.Debug("loop", "count", n)
		for k := 0.0; k < n; k++ {
			f, err := r.exec(ctx, block.Body, s.Child())
			if err != nil || f.returned {
				return f, 0, err
			}
		}
		return flow{}, block.End, nil
	}

	start, err := r.bound(ctx, h.start, s)
	if err != nil {
		return flow{}, 0, err
	}
	end, err := r.bound(ctx, h.end, s)
	if err != nil {
		return flow{}, 0, err
	}
	step := 1.0
	if start > end {
		step = -1
	}
	r.log.Debug("loop", "variable", h.variable, "start", start, "end", end)
	for k := start; (step > 0 && k <= end) || (step < 0 && k >= end); k += step {
		iter := s.Child()
		if err := iter.Declare(h.variable, k, false); err != nil {
			return flow{}, 0, err
		}
		f, err := r.exec(ctx, block.Body, iter)
		if err != nil || f.returned {
			return f, 0, err
		}
	}
	return flow{}, block.End, nil
}

func (r *run) bound(ctx context.Context, tok string, s *Scope) (float64, error) {
	v, err := r.eval(ctx, tok, s)
	if err != nil {
		return 0, err
	}
	n, ok := value.Number(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: range loop bounds must be finite numbers: %s", ErrType, tok)
	}
	return n, nil
}

func (r *run) conditional(ctx context.Context, lines []string, i int, s *Scope) (flow, int, error) {
	cond, err := parseConditionHeader(lines[i])
	if err != nil {
		return flow{}, 0, err
	}
	then, err := scanner.CollectBlock(lines, i)
	if err != nil {
		return flow{}, 0, err
	}

	end := then.End
	var otherwise []string
	if next := then.End + 1; next < len(lines) && isElseHeader(lines[next]) {
		block, err := scanner.CollectBlock(lines, next)
		if err != nil {
			return flow{}, 0, err
		}
		otherwise, end = block.Body, block.End
	}

	v, err := r.eval(ctx, cond, s)
	if err != nil {
		return flow{}, 0, err
	}
	body := otherwise
	if value.Truthy(v) {
		body = then.Body
	}
	f, err := r.exec(ctx, body, s.Child())
	if err != nil || f.returned {
		return f, 0, err
	}
	return flow{}, end, nil
}

// callFunction invokes the user function name with evaluated args.
func (r *run) callFunction(ctx context.Context, name string, args []any) (any, error) {
	fn, ok := r.function(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if len(args) != len(fn.Params) {
		return nil, fmt.Errorf("%w: function %s expected %d argument(s), received %d",
			ErrArity, name, len(fn.Params), len(args))
	}

	frame := fn.Scope.Child()
	for i, p := range fn.Params {
		if err := frame.Declare(p, args[i], false); err != nil {
			return nil, err
		}
	}
	r.log.Debug("call", "function", name, "args", len(args))

	f, err := r.exec(ctx, fn.Body, frame)
	if err != nil {
		return nil, err
	}
	if f.returned {
		return f.value, nil
	}
	return value.Undefined, nil
}
