// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package eval implements the script interpreter: scopes, expressions,
// statements, and command dispatch.
package eval

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"sync"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// CommandEvent describes a command to the lifecycle hooks. Value is only set
// for the end hook.
type CommandEvent struct {
	Name  string
	Line  string
	Value any
}

// Hook observes a command. A returned error aborts the run.
type Hook func(ctx context.Context, ev CommandEvent) error

// ErrorHook observes a run fault before Run returns it.
type ErrorHook func(ctx context.Context, err error)

// Evaluator holds the configuration shared by every run. It is immutable
// after New and safe for concurrent use; each Run gets its own execution
// state.
type Evaluator struct {
	variables          map[string]any
	dependencies       map[string]any
	commands           map[string]Command
	stopOnValidation   bool
	injectDependencies bool
	onCommandStart     Hook
	onCommandEnd       Hook
	onError            ErrorHook
	environment        Family
	validator          Validator
	network            Family
	logger             *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithVariables seeds the root scope. Repeated use merges, later wins.
func WithVariables(vars map[string]any) Option {
	return func(e *Evaluator) { maps.Copy(e.variables, vars) }
}

// WithDependencies adds to the dependency table reachable through import,
// injiza and koresha.
func WithDependencies(deps map[string]any) Option {
	return func(e *Evaluator) { maps.Copy(e.dependencies, deps) }
}

// WithCommands registers custom command handlers.
func WithCommands(cmds map[string]Command) Option {
	return func(e *Evaluator) { maps.Copy(e.commands, cmds) }
}

// WithCommand registers a single custom command handler.
func WithCommand(name string, c Command) Option {
	return func(e *Evaluator) { e.commands[name] = c }
}

// WithStopOnValidationFail controls whether a detected validation problem
// ends the run. Default is true.
func WithStopOnValidationFail(stop bool) Option {
	return func(e *Evaluator) { e.stopOnValidation = stop }
}

// WithInjectDependencies also binds every dependency as a root variable,
// unless a variable of that name was given.
func WithInjectDependencies(inject bool) Option {
	return func(e *Evaluator) { e.injectDependencies = inject }
}

// WithOnCommandStart sets the hook called before each recognized command.
func WithOnCommandStart(h Hook) Option {
	return func(e *Evaluator) { e.onCommandStart = h }
}

// WithOnCommandEnd sets the hook called after each handled command.
func WithOnCommandEnd(h Hook) Option {
	return func(e *Evaluator) { e.onCommandEnd = h }
}

// WithOnError sets the hook that observes run faults.
func WithOnError(h ErrorHook) Option {
	return func(e *Evaluator) { e.onError = h }
}

// WithEnvironment sets the environment-interaction command family.
func WithEnvironment(f Family) Option {
	return func(e *Evaluator) { e.environment = f }
}

// WithValidator sets the validation command family.
func WithValidator(v Validator) Option {
	return func(e *Evaluator) { e.validator = v }
}

// WithNetwork sets the outbound network command family.
func WithNetwork(f Family) Option {
	return func(e *Evaluator) { e.network = f }
}

// WithLogger sets the logger for debug tracing. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		variables:        make(map[string]any),
		dependencies:     make(map[string]any),
		commands:         make(map[string]Command),
		stopOnValidation: true,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of e with opts applied on top. e is unchanged.
func (e *Evaluator) With(opts ...Option) *Evaluator {
	c := *e
	c.variables = maps.Clone(e.variables)
	c.dependencies = maps.Clone(e.dependencies)
	c.commands = maps.Clone(e.commands)
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Dependencies returns a copy of the dependency table.
func (e *Evaluator) Dependencies() map[string]any {
	return maps.Clone(e.dependencies)
}

// Result is the outcome of a run. OK is false only when a validation command
// stopped the run, in which case FailedLine holds the statement text.
type Result struct {
	OK         bool           `json:"ok"`
	FailedLine string         `json:"failedLine,omitempty"`
	Variables  map[string]any `json:"variables"`
	Exports    map[string]any `json:"exports"`
	Results    []any          `json:"results"`
}

// MarshalJSON encodes r with every value reduced to plain JSON data.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := plain(r)
	out.Variables = value.PlainMap(r.Variables)
	out.Exports = value.PlainMap(r.Exports)
	out.Results = make([]any, len(r.Results))
	for i, v := range r.Results {
		out.Results[i] = value.Plain(v)
	}
	return json.Marshal(out)
}

// Function is a user-defined function. Scope is the frame the declaration
// executed in.
type Function struct {
	Name   string
	Params []string
	Body   []string
	Scope  *Scope
}

type exportBinding struct {
	scope *Scope
	name  string
}

// tables holds the per-run tables shared by a run and its detached views.
type tables struct {
	mu        sync.Mutex
	functions map[string]*Function
	exports   map[string]exportBinding
	order     []string
	results   []any
}

// run is the execution state of one Run.
type run struct {
	ev      *Evaluator
	root    *Scope
	log     *slog.Logger
	t       *tables
	discard bool
}

// flow is the control signal of a statement sequence.
type flow struct {
	returned bool
	value    any
}

func (e *Evaluator) newRun() *run {
	root := NewScope(nil)
	for k, v := range e.variables {
		root.vars[k] = v
	}
	if e.injectDependencies {
		for k, v := range e.dependencies {
			if _, ok := root.vars[k]; !ok {
				root.vars[k] = v
			}
		}
	}
	return &run{
		ev:   e,
		root: root,
		log:  e.logger,
		t: &tables{
			functions: make(map[string]*Function),
			exports:   make(map[string]exportBinding),
		},
	}
}

// detached returns a view of r that shares its tables but drops emitted
// results.
func (r *run) detached() *run {
	d := *r
	d.discard = true
	return &d
}

func (r *run) emit(v any) {
	if value.IsUndefined(v) || r.discard {
		return
	}
	r.t.mu.Lock()
	r.t.results = append(r.t.results, v)
	r.t.mu.Unlock()
}

func (r *run) function(name string) (*Function, bool) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	f, ok := r.t.functions[name]
	return f, ok
}

func (r *run) define(f *Function) {
	r.t.mu.Lock()
	r.t.functions[f.Name] = f
	r.t.mu.Unlock()
}

func (r *run) export(name string, s *Scope, variable string) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	if _, ok := r.t.exports[name]; !ok {
		r.t.order = append(r.t.order, name)
	}
	r.t.exports[name] = exportBinding{scope: s, name: variable}
}

func (r *run) result(ok bool, failed string) *Result {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	exports := make(map[string]any, len(r.t.exports))
	for _, name := range r.t.order {
		b := r.t.exports[name]
		v, found := b.scope.Resolve(b.name)
		if !found {
			v = value.Undefined
		}
		exports[name] = v
	}
	results := make([]any, len(r.t.results))
	copy(results, r.t.results)
	return &Result{
		OK:         ok,
		FailedLine: failed,
		Variables:  r.root.Own(),
		Exports:    exports,
		Results:    results,
	}
}

// Run executes code in a fresh execution context.
func (e *Evaluator) Run(ctx context.Context, code string) (*Result, error) {
	r := e.newRun()
	lines := scanner.Preprocess(code)
	e.logger.Debug("run", "lines", len(lines))

	_, err := r.exec(ctx, lines, r.root)
	if err != nil {
		var stop *validationStop
		if errors.As(err, &stop) {
			e.logger.Debug("validation stop", "line", stop.line)
			return r.result(false, stop.line), nil
		}
		if e.onError != nil {
			e.onError(ctx, err)
		}
		return nil, err
	}
	return r.result(true, ""), nil
}
