// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package kinyarwanda provides the public API for the ikin interpreter.
package kinyarwanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/eval"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/network"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/stdlib"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/store"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/surface"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/validate"
)

// Extension is the file extension of scripts.
const Extension = ".ikw"

// Inline is the script name recorded for code that did not come from a file
// or URL.
const Inline = "-"

var (
	// ErrExtension is returned for script files without the .ikw extension.
	ErrExtension = errors.New("expected a " + Extension + " file")
	// ErrFetch is returned when a script URL does not answer with 2xx.
	ErrFetch = errors.New("failed to fetch script")
)

// Runner runs scripts with a fixed set of options.
type Runner struct {
	opts []Option

	evalOpts         []eval.Option
	surface          *surface.Memory
	output           io.Writer
	transport        network.Transport
	logger           *slog.Logger
	store            store.Store
	prelude          string
	stdlib           bool
	stopOnValidation bool

	evaluator *eval.Evaluator
}

// New creates a Runner from Defaults followed by opts.
func New(opts ...Option) *Runner {
	r := &Runner{
		opts:             slices.Clone(opts),
		stopOnValidation: true,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range Defaults() {
		opt(r)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.surface == nil {
		r.surface = surface.NewMemory(nil)
	}
	if r.transport == nil {
		r.transport = network.NewHTTP()
	}

	evalOpts := []eval.Option{}
	if r.stdlib {
		evalOpts = append(evalOpts, eval.WithDependencies(stdlib.Defaults()))
	}
	evalOpts = append(evalOpts,
		eval.WithEnvironment(surface.New(r.surface,
			surface.WithOutput(r.output),
			surface.WithLogger(r.logger),
		)),
		eval.WithValidator(validate.New(r.surface)),
		eval.WithNetwork(network.New(
			network.WithTransport(r.transport),
			network.WithForms(r.surface),
			network.WithLogger(r.logger),
		)),
		eval.WithLogger(r.logger),
		eval.WithStopOnValidationFail(r.stopOnValidation),
	)
	evalOpts = append(evalOpts, r.evalOpts...)

	r.evaluator = eval.New(evalOpts...)
	return r
}

// Execute runs code once with a new Runner.
func Execute(ctx context.Context, code string, opts ...Option) (*Result, error) {
	return New(opts...).Run(ctx, code)
}

// WithOptions returns a Runner with this runner's options followed by opts.
// The surface and the store are shared.
func (r *Runner) WithOptions(opts ...Option) *Runner {
	all := slices.Clone(r.opts)
	all = append(all, WithSurface(r.surface), WithStore(r.store))
	all = append(all, opts...)
	return New(all...)
}

// Surface returns the environment scripts act on.
func (r *Runner) Surface() *surface.Memory {
	return r.surface
}

// Store returns the run store, or nil.
func (r *Runner) Store() store.Store {
	return r.store
}

// Run executes code.
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	return r.run(ctx, Inline, code)
}

// RunFile executes a .ikw file.
func (r *Runner) RunFile(ctx context.Context, path string) (*Result, error) {
	code, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, path, code)
}

// ReadFile reads a script file, checking its extension.
func ReadFile(path string) (string, error) {
	if filepath.Ext(path) != Extension {
		return "", fmt.Errorf("%w, received: %s", ErrExtension, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ScriptResult pairs a script with its result.
type ScriptResult struct {
	Script string
	Result *Result
}

// RunScripts runs scripts in order. Each is inline code, a file path or an
// http(s) URL. It stops after the first run that fails validation unless
// stop-on-validation is disabled, and at the first fault.
func (r *Runner) RunScripts(ctx context.Context, scripts ...string) ([]ScriptResult, error) {
	var results []ScriptResult
	for _, script := range scripts {
		name, code, err := r.load(ctx, script)
		if err != nil {
			return results, err
		}
		res, err := r.run(ctx, name, code)
		if err != nil {
			return results, err
		}
		results = append(results, ScriptResult{Script: name, Result: res})
		if !res.OK && r.stopOnValidation {
			break
		}
	}
	return results, nil
}

func (r *Runner) load(ctx context.Context, script string) (string, string, error) {
	switch {
	case strings.HasPrefix(script, "http://"), strings.HasPrefix(script, "https://"):
		resp, err := r.transport.Do(ctx, &network.Request{Method: "GET", URL: script})
		if err != nil {
			return "", "", err
		}
		if !resp.OK() {
			return "", "", fmt.Errorf("%w: %s (%d)", ErrFetch, script, resp.Status)
		}
		return script, string(resp.Body), nil
	case isPath(script):
		code, err := ReadFile(strings.TrimSpace(script))
		return script, code, err
	}
	return Inline, script, nil
}

// isPath reports whether a single-line script names a file: it carries the
// script extension or exists on disk.
func isPath(script string) bool {
	if strings.ContainsAny(script, "\n(") {
		return false
	}
	path := strings.TrimSpace(script)
	if strings.HasSuffix(path, Extension) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (r *Runner) run(ctx context.Context, name, code string) (*Result, error) {
	if r.prelude != "" {
		code = r.prelude + "\n" + code
	}
	res, err := r.evaluator.Run(ctx, code)
	r.record(name, code, res, err)
	return res, err
}

// record saves the run when a store is configured. Store failures are
// logged, never returned.
func (r *Runner) record(name, code string, res *Result, runErr error) {
	if r.store == nil {
		return
	}
	var (
		data []byte
		err  error
		ok   bool
	)
	if runErr != nil {
		data, err = json.Marshal(map[string]string{"error": runErr.Error()})
	} else {
		ok = res.OK
		data, err = json.Marshal(res)
	}
	if err == nil {
		err = r.store.Save(store.NewRun(name, code, ok, data))
	}
	if err != nil {
		r.logger.Error("record run", "script", name, "err", err)
	}
}

// Close releases the store, which derived runners share.
func (r *Runner) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// LatestVariables returns the variables of the most recent recorded run, or
// nil when there is none.
func LatestVariables(s store.Store) (map[string]any, error) {
	run, err := s.Latest()
	if err != nil || run == nil {
		return nil, err
	}
	var res struct {
		Variables map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(run.Result, &res); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return res.Variables, nil
}
