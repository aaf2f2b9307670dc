// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package surface

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/eval"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// Command names handled by Family.
const (
	Print    = "andika"
	Alert    = "muburire"
	SetText  = "shyiramo"
	SetColor = "hindura_ibuju"
	GetValue = "fata_agaciro"
	SetValue = "shyiraho_agaciro"
	Listen   = "tegeka"
)

// Family is the environment command family over a Surface.
type Family struct {
	surface Surface
	out     io.Writer
	log     *slog.Logger
}

// Option configures a Family.
type Option func(*Family)

// WithOutput sets where andika writes. Default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(f *Family) {
		f.out = w
	}
}

// WithLogger sets the logger used for listener failures.
func WithLogger(l *slog.Logger) Option {
	return func(f *Family) {
		f.log = l
	}
}

// New creates the environment family for s. A nil surface still serves
// andika; element commands then fail with ErrNotFound.
func New(s Surface, opts ...Option) *Family {
	if s == nil {
		s = NewMemory(nil)
	}
	f := &Family{
		surface: s,
		out:     os.Stdout,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Surface returns the surface commands act on.
func (f *Family) Surface() Surface {
	return f.surface
}

type command func(ctx context.Context, f *Family, req *eval.Request) (any, error)

func getCommand(name string) command {
	switch name {
	case Print:
		return cmdPrint
	case Alert:
		return cmdAlert
	case SetText:
		return cmdSetText
	case SetColor:
		return cmdSetColor
	case GetValue:
		return cmdGetValue
	case SetValue:
		return cmdSetValue
	case Listen:
		return cmdListen
	}
	return nil
}

// Dispatch implements eval.Family.
func (f *Family) Dispatch(ctx context.Context, req *eval.Request) (eval.Outcome, error) {
	c := getCommand(req.Name)
	if c == nil {
		return eval.NotHandled, nil
	}
	v, err := c(ctx, f, req)
	if err != nil {
		return eval.NotHandled, err
	}
	return eval.Handled(v), nil
}

func cmdPrint(ctx context.Context, f *Family, req *eval.Request) (any, error) {
	args, err := req.EvalArgs(ctx)
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = value.Format(a)
	}
	if _, err := fmt.Fprintln(f.out, strings.Join(parts, " ")); err != nil {
		return nil, err
	}
	return value.Undefined, nil
}

func cmdAlert(ctx context.Context, f *Family, req *eval.Request) (any, error) {
	msg, err := req.Text(ctx, 0)
	if err != nil {
		return nil, err
	}
	return value.Undefined, f.surface.Alert(msg)
}

func cmdSetText(ctx context.Context, f *Family, req *eval.Request) (any, error) {
	sel, text, err := pair(ctx, req)
	if err != nil {
		return nil, err
	}
	return value.Undefined, f.surface.SetText(sel, text)
}

func cmdSetColor(ctx context.Context, f *Family, req *eval.Request) (any, error) {
	sel, color, err := pair(ctx, req)
	if err != nil {
		return nil, err
	}
	return value.Undefined, f.surface.SetStyle(sel, "color", color)
}

func cmdGetValue(ctx context.Context, f *Family, req *eval.Request) (any, error) {
	sel, err := req.Text(ctx, 0)
	if err != nil {
		return nil, err
	}
	return f.surface.Value(sel)
}

func cmdSetValue(ctx context.Context, f *Family, req *eval.Request) (any, error) {
	sel, v, err := pair(ctx, req)
	if err != nil {
		return nil, err
	}
	return value.Undefined, f.surface.SetValue(sel, v)
}

// tegeka(selector, event, handler) runs the user function handler each time
// event fires on the element. Handler failures are logged.
func cmdListen(ctx context.Context, f *Family, req *eval.Request) (any, error) {
	if err := req.Expect(3); err != nil {
		return nil, err
	}
	sel, err := req.Text(ctx, 0)
	if err != nil {
		return nil, err
	}
	event, err := req.Text(ctx, 1)
	if err != nil {
		return nil, err
	}
	handler, err := handlerName(ctx, req)
	if err != nil {
		return nil, err
	}
	err = f.surface.Listen(sel, event, func(ctx context.Context, payload any) error {
		if err := req.Dispatch(ctx, handler, payload); err != nil {
			f.log.Error("listener", "selector", sel, "event", event, "handler", handler, "err", err)
			return err
		}
		return nil
	})
	return value.Undefined, err
}

// handlerName resolves the third tegeka argument. A bare identifier names
// the function itself unless a variable of that name is in scope.
func handlerName(ctx context.Context, req *eval.Request) (string, error) {
	raw := strings.TrimSpace(req.Args[2])
	if scanner.IsIdent(raw) && !req.Scope.Has(raw) {
		return raw, nil
	}
	return req.Text(ctx, 2)
}

func pair(ctx context.Context, req *eval.Request) (string, string, error) {
	sel, err := req.Text(ctx, 0)
	if err != nil {
		return "", "", err
	}
	v, err := req.Text(ctx, 1)
	if err != nil {
		return "", "", err
	}
	return sel, v, nil
}
