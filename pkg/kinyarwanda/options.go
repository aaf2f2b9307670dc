// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package kinyarwanda

import (
	"io"
	"log/slog"
	"os"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/config"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/eval"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/network"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/store"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/surface"
)

// Option configures a Runner.
type Option func(*Runner)

// Re-exported engine types.
type (
	Result       = eval.Result
	Command      = eval.Command
	CommandEvent = eval.CommandEvent
	Hook         = eval.Hook
	ErrorHook    = eval.ErrorHook
)

// Defaults returns the options every Runner starts from: the standard
// dependency table, an empty in-memory surface and output on stdout.
func Defaults() []Option {
	return []Option{
		WithStdlib(),
		WithSurface(surface.NewMemory(nil)),
		WithOutput(os.Stdout),
	}
}

// WithVariables merges initial variables. Later options win.
func WithVariables(vars map[string]any) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithVariables(vars))
	}
}

// WithDependencies merges dependencies. Later options win.
func WithDependencies(deps map[string]any) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithDependencies(deps))
	}
}

// WithCommand registers a custom command.
func WithCommand(name string, c Command) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithCommand(name, c))
	}
}

// WithCommands registers custom commands.
func WithCommands(cmds map[string]Command) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithCommands(cmds))
	}
}

// WithStopOnValidationFail controls whether a failed validation check ends a
// run, and whether RunScripts stops after such a run. Default true.
func WithStopOnValidationFail(stop bool) Option {
	return func(r *Runner) {
		r.stopOnValidation = stop
	}
}

// WithInjectDependencies exposes every dependency as a variable.
func WithInjectDependencies(inject bool) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithInjectDependencies(inject))
	}
}

// WithOnCommandStart sets the hook run before each command.
func WithOnCommandStart(h Hook) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithOnCommandStart(h))
	}
}

// WithOnCommandEnd sets the hook run after each handled command.
func WithOnCommandEnd(h Hook) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithOnCommandEnd(h))
	}
}

// WithOnError sets the hook observing run faults.
func WithOnError(h ErrorHook) Option {
	return func(r *Runner) {
		r.evalOpts = append(r.evalOpts, eval.WithOnError(h))
	}
}

// WithSurface sets the environment scripts act on.
func WithSurface(s *surface.Memory) Option {
	return func(r *Runner) {
		r.surface = s
	}
}

// WithOutput sets where andika writes.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.output = w
	}
}

// WithTransport sets the transport for the network commands and for
// scripts loaded by URL.
func WithTransport(t network.Transport) Option {
	return func(r *Runner) {
		r.transport = t
	}
}

// WithLogger sets the logger passed to the engine and the families.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithStore records every run in s.
func WithStore(s store.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithMemoryStore configures an in-memory store (for testing).
func WithMemoryStore() Option {
	return func(r *Runner) {
		r.store = store.NewMemory()
	}
}

// WithPrelude sets code that runs ahead of every script in the same run.
func WithPrelude(code string) Option {
	return func(r *Runner) {
		r.prelude = code
	}
}

// WithStdlib offers the standard dependency table (math, strings, json,
// humanize, uuid). Dependencies of the same name given by WithDependencies
// win.
func WithStdlib() Option {
	return func(r *Runner) {
		r.stdlib = true
	}
}

// WithNoStdlib removes the standard dependency table.
func WithNoStdlib() Option {
	return func(r *Runner) {
		r.stdlib = false
	}
}

// WithConfig applies a file configuration: variables, validation and
// injection settings, the configured elements and forms, and the network
// timeout.
func WithConfig(cfg *config.Config) Option {
	return func(r *Runner) {
		WithVariables(cfg.Variables)(r)
		WithStopOnValidationFail(cfg.StopOnValidation())(r)
		WithInjectDependencies(cfg.InjectDependencies)(r)
		WithSurface(cfg.Surface())(r)

		httpOpts := []network.HTTPOption{network.WithTimeout(cfg.Timeout())}
		if cfg.Network.UserAgent != "" {
			httpOpts = append(httpOpts, network.WithUserAgent(cfg.Network.UserAgent))
		}
		WithTransport(network.NewHTTP(httpOpts...))(r)
	}
}
