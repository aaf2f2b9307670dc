// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/token"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// Command is a custom command handler registered by the host.
type Command func(ctx context.Context, cc *CommandContext) (any, error)

// CommandContext is what a custom command receives.
type CommandContext struct {
	Name         string         // Command name
	Line         string         // Literal statement text
	Args         []any          // Evaluated arguments
	Scope        *Scope         // Scope of the call, readable and writable
	Dependencies map[string]any // Dependency table of the run

	ev *Evaluator
}

// Run executes code in a new, independent run. It starts from a flattened
// copy of the caller's variables and inherits the dependency table, custom
// commands, families, hooks and validation setting; opts override any of
// them.
func (c *CommandContext) Run(ctx context.Context, code string, opts ...Option) (*Result, error) {
	nested := c.ev.With(func(e *Evaluator) {
		e.variables = c.Scope.Snapshot()
	})
	return nested.With(opts...).Run(ctx, code)
}

// builtinFunc is the signature of the privileged built-in commands.
type builtinFunc func(ctx context.Context, r *run, req *Request) (any, error)

func getBuiltin(name string) builtinFunc {
	switch name {
	case token.Inject:
		return builtinInject
	case token.Use, token.Invoke:
		return builtinUse
	}
	return nil
}

// command dispatches one command statement. Families are tried first, then
// built-ins, custom commands and user functions.
func (r *run) command(ctx context.Context, line string, s *Scope) (any, error) {
	return r.call(ctx, line, s, false)
}

// callExpr dispatches a call inside an expression. A user function of the
// same name wins over every other command.
func (r *run) callExpr(ctx context.Context, line string, s *Scope) (any, error) {
	return r.call(ctx, line, s, true)
}

func (r *run) call(ctx context.Context, line string, s *Scope, functionsFirst bool) (any, error) {
	call, ok := scanner.ParseCall(line)
	if !ok {
		return nil, syntaxError("%s", line)
	}
	ev := CommandEvent{Name: call.Name, Line: line}
	if h := r.ev.onCommandStart; h != nil {
		if err := h(ctx, ev); err != nil {
			return nil, err
		}
	}

	req := &Request{Name: call.Name, Line: line, Args: call.Split(), Scope: s, run: r}
	var (
		v   any
		err error
	)
	if _, ok := r.function(call.Name); ok && functionsFirst {
		v, err = r.userFunction(ctx, req)
	} else {
		v, err = r.dispatch(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if h := r.ev.onCommandEnd; h != nil {
		ev.Value = v
		if err := h(ctx, ev); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (r *run) dispatch(ctx context.Context, req *Request) (any, error) {
	if f := r.ev.environment; f != nil {
		if v, ok, err := r.family(ctx, f, req); ok || err != nil {
			return v, err
		}
	}

	if vd := r.ev.validator; vd != nil {
		problem, handled, err := vd.Validate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Name, err)
		}
		if handled {
			r.log.Debug("validate", "command", req.Name, "problem", problem)
			if problem && r.ev.stopOnValidation {
				return nil, &validationStop{line: req.Line}
			}
			return problem, nil
		}
	}

	if f := r.ev.network; f != nil {
		if v, ok, err := r.family(ctx, f, req); ok || err != nil {
			return v, err
		}
	}

	if b := getBuiltin(req.Name); b != nil {
		return b(ctx, r, req)
	}

	if c, ok := r.ev.commands[req.Name]; ok && c != nil {
		return r.custom(ctx, c, req)
	}

	if _, ok := r.function(req.Name); ok {
		return r.userFunction(ctx, req)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Name)
}

func (r *run) userFunction(ctx context.Context, req *Request) (any, error) {
	args, err := req.EvalArgs(ctx)
	if err != nil {
		return nil, err
	}
	return r.callFunction(ctx, req.Name, args)
}

func (r *run) family(ctx context.Context, f Family, req *Request) (any, bool, error) {
	out, err := f.Dispatch(ctx, req)
	if err != nil {
		var stop *validationStop
		if errors.As(err, &stop) {
			return nil, true, err
		}
		return nil, true, fmt.Errorf("%s: %w", req.Name, err)
	}
	v, ok := out.Value()
	if ok {
		r.log.Debug("command", "name", req.Name, "family", fmt.Sprintf("%T", f))
	}
	return v, ok, nil
}

func (r *run) custom(ctx context.Context, c Command, req *Request) (any, error) {
	args, err := req.EvalArgs(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Debug("command", "name", req.Name, "custom", true)
	v, err := c(ctx, &CommandContext{
		Name:         req.Name,
		Line:         req.Line,
		Args:         args,
		Scope:        req.Scope,
		Dependencies: maps.Clone(r.ev.dependencies),
		ev:           r.ev,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return normalize(v), nil
}

// injiza(name) returns the named dependency.
func builtinInject(ctx context.Context, r *run, req *Request) (any, error) {
	if err := req.Expect(1); err != nil {
		return nil, err
	}
	key, err := req.Text(ctx, 0)
	if err != nil {
		return nil, err
	}
	dep, ok := r.ev.dependencies[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDependency, key)
	}
	return normalize(dep), nil
}

// koresha(target, ...) calls a dependency, a method of it, or any callable.
func builtinUse(ctx context.Context, r *run, req *Request) (any, error) {
	if len(req.Args) < 1 {
		return nil, fmt.Errorf("%w: %s expects at least one argument", ErrArity, req.Name)
	}
	args, err := req.EvalArgs(ctx)
	if err != nil {
		return nil, err
	}
	target := args[0]
	if name, ok := target.(string); ok {
		if dep, found := r.ev.dependencies[name]; found {
			target = dep
		}
	}
	kind := value.Classify(target)

	if len(args) == 1 {
		if kind != value.Invocable {
			return normalize(target), nil
		}
		c, _ := value.AsCallable(target)
		return invoke(ctx, req.Name, c)
	}

	second, rest := args[1], args[2:]
	if method, ok := second.(string); ok && kind == value.Keyed {
		if m, found := value.Method(target, method); found {
			return invoke(ctx, req.Name, m, rest...)
		}
	}
	if kind == value.Invocable {
		c, _ := value.AsCallable(target)
		return invoke(ctx, req.Name, c, args[1:]...)
	}
	return nil, fmt.Errorf("%w: %s could not call %s; use %s('dep', 'method', ...) or %s(fn, ...)",
		ErrNotCallable, req.Name, req.Args[0], req.Name, req.Name)
}

func invoke(ctx context.Context, name string, c value.Callable, args ...any) (any, error) {
	v, err := c.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return normalize(v), nil
}

// normalize converts host numbers to float64.
func normalize(v any) any {
	if n, ok := value.Number(v); ok {
		return n
	}
	return v
}
