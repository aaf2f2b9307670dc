// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"fmt"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// Outcome is what a command family reports for a request: either the value
// it produced or that it does not recognize the command.
type Outcome struct {
	value   any
	handled bool
}

// NotHandled is the Outcome of a family that does not own the command.
var NotHandled = Outcome{}

// Handled returns the Outcome of a command that produced v. Commands without
// a result should pass value.Undefined.
func Handled(v any) Outcome {
	return Outcome{value: v, handled: true}
}

// Value returns the produced value and whether the command was handled.
func (o Outcome) Value() (any, bool) {
	return o.value, o.handled
}

// Family is a pluggable set of commands tried before dependency, custom and
// function dispatch.
type Family interface {
	Dispatch(ctx context.Context, req *Request) (Outcome, error)
}

// FamilyFunc adapts a function to Family.
type FamilyFunc func(ctx context.Context, req *Request) (Outcome, error)

// Dispatch calls f.
func (f FamilyFunc) Dispatch(ctx context.Context, req *Request) (Outcome, error) {
	return f(ctx, req)
}

// Validator is the validation family. When it handles a request it reports
// whether a problem was detected.
type Validator interface {
	Validate(ctx context.Context, req *Request) (problem bool, handled bool, err error)
}

// Request is a parsed command line offered to a family.
type Request struct {
	Name  string   // Command name
	Line  string   // Literal statement text
	Args  []string // Raw top-level argument tokens
	Scope *Scope   // Scope the command runs in

	run *run
}

// Arg evaluates the i-th argument. A missing argument is value.Undefined.
func (q *Request) Arg(ctx context.Context, i int) (any, error) {
	if i < 0 || i >= len(q.Args) {
		return value.Undefined, nil
	}
	return q.run.eval(ctx, q.Args[i], q.Scope)
}

// EvalArgs evaluates every argument in order.
func (q *Request) EvalArgs(ctx context.Context) ([]any, error) {
	return q.run.evalAll(ctx, q.Args, q.Scope)
}

// Text evaluates the i-th argument and returns its printed form.
func (q *Request) Text(ctx context.Context, i int) (string, error) {
	v, err := q.Arg(ctx, i)
	if err != nil {
		return "", err
	}
	return value.Format(v), nil
}

// Expect fails unless the request carries exactly n arguments.
func (q *Request) Expect(n int) error {
	if len(q.Args) != n {
		return fmt.Errorf("%w: %s expects %d argument(s), received %d", ErrArity, q.Name, n, len(q.Args))
	}
	return nil
}

// Dispatch invokes the user function handler with event as its only argument,
// in the scope the request was made from. It is meant for callbacks that fire
// after the statement that registered them; whatever the function emits or
// returns is discarded.
func (q *Request) Dispatch(ctx context.Context, handler string, event any) error {
	oob := q.run.detached()
	_, err := oob.callFunction(ctx, handler, []any{event})
	return err
}
