// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Command ikin runs Kinyarwanda scripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/config"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/server"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/store"
	"github.com/Uwikunda17/kinyarwandalibrary/pkg/kinyarwanda"
)

const version = "ikin 0.3.0"

// DefaultScript is run when no FILE is given.
const DefaultScript = "index" + kinyarwanda.Extension

// Exit codes.
const (
	exitOK = iota
	exitFault
	exitValidation
)

const usage = `ikin runs Kinyarwanda scripts.

Usage:
  ikin run [options] [FILE...]
  ikin serve [options] [PORT]
  ikin repl [options]
  ikin runs [options]
  ikin [options] [FILE...]
  ikin -h | --help
  ikin --version

Arguments:
  FILE  Script to run: a .ikw path, an http(s) URL or inline code.
  PORT  Port to listen on. Overrides server.addr from the config.

Options:
  -c, --config=FILE  YAML configuration file.
  --db=PATH          Record runs in this SQLite database.
  --resume           Start from the variables of the latest recorded run.
  -n, --limit=N      Number of runs listed by 'ikin runs' [default: 20].
  --continue         Keep running after a failed validation.
  -v, --verbose      Log debug output to stderr.
  -h, --help         Show this help.
  --version          Print the version.

With no FILE, a script piped on stdin is run. On a terminal, index.ikw is
run when present, otherwise the REPL starts.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli holds the parsed command line.
type cli struct {
	Run, Serve, Repl, Runs bool

	File     []string
	Port     string
	Config   string
	DB       string
	Resume   bool
	Limit    int
	Continue bool
	Verbose  bool
}

func parseArgs(args []string, stdout, stderr io.Writer) (*cli, int, bool) {
	code, done := exitOK, false
	parser := &docopt.Parser{
		HelpHandler: func(err error, msg string) {
			done = true
			if err != nil {
				fmt.Fprintln(stderr, msg)
				code = exitFault
				return
			}
			fmt.Fprintln(stdout, msg)
		},
	}
	opts, err := parser.ParseArgs(usage, args, version)
	if done {
		return nil, code, true
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, exitFault, true
	}

	var c cli
	c.Run, _ = opts.Bool("run")
	c.Serve, _ = opts.Bool("serve")
	c.Repl, _ = opts.Bool("repl")
	c.Runs, _ = opts.Bool("runs")
	c.File, _ = opts["FILE"].([]string)
	c.Port, _ = opts.String("PORT")
	c.Config, _ = opts.String("--config")
	c.DB, _ = opts.String("--db")
	c.Resume, _ = opts.Bool("--resume")
	c.Continue, _ = opts.Bool("--continue")
	c.Verbose, _ = opts.Bool("--verbose")

	limit, _ := opts.String("--limit")
	if c.Limit, err = strconv.Atoi(limit); err != nil || c.Limit < 0 {
		fmt.Fprintf(stderr, "Error: --limit must be a non-negative number, received: %s\n", limit)
		return nil, exitFault, true
	}
	return &c, exitOK, false
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c, code, done := parseArgs(args, stdout, stderr)
	if done {
		return code
	}

	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFault
		}
		cfg = loaded
	}

	st, err := openStore(c.DB, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFault
	}
	if st != nil {
		defer st.Close()
	}

	if c.Runs {
		return listRuns(st, c.Limit, stdout, stderr)
	}

	opts := []kinyarwanda.Option{
		kinyarwanda.WithConfig(cfg),
		kinyarwanda.WithOutput(stdout),
		kinyarwanda.WithLogger(logger),
	}
	if st != nil {
		opts = append(opts, kinyarwanda.WithStore(st))
	}
	if c.Continue {
		opts = append(opts, kinyarwanda.WithStopOnValidationFail(false))
	}
	if c.Resume {
		if st == nil {
			fmt.Fprintln(stderr, "Error: --resume needs a run database (--db or store.path)")
			return exitFault
		}
		vars, err := kinyarwanda.LatestVariables(st)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFault
		}
		opts = append(opts, kinyarwanda.WithVariables(vars))
	}
	runner := kinyarwanda.New(opts...)

	switch {
	case c.Serve:
		return serve(ctx, runner, cfg, c.Port, logger, stderr)
	case c.Repl:
		return runREPL(ctx, runner, stdin, stdout, stderr)
	}

	scripts := c.File
	if len(scripts) == 0 {
		switch {
		case !isTerminal(stdin):
			data, err := io.ReadAll(stdin)
			if err != nil {
				fmt.Fprintf(stderr, "Error reading stdin: %v\n", err)
				return exitFault
			}
			scripts = []string{string(data)}
		case c.Run || fileExists(DefaultScript):
			scripts = []string{DefaultScript}
		default:
			return runREPL(ctx, runner, stdin, stdout, stderr)
		}
	}
	return runScripts(ctx, runner, scripts, stderr)
}

func runScripts(ctx context.Context, runner *kinyarwanda.Runner, scripts []string, stderr io.Writer) int {
	results, err := runner.RunScripts(ctx, scripts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFault
	}
	code := exitOK
	for _, r := range results {
		if !r.Result.OK {
			fmt.Fprintf(stderr, "Validation failed at line: %s\n", r.Result.FailedLine)
			code = exitValidation
		}
	}
	return code
}

func serve(ctx context.Context, runner *kinyarwanda.Runner, cfg *config.Config, port string, logger *slog.Logger, stderr io.Writer) int {
	addr := cfg.Server.Addr
	if port != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = ""
		}
		addr = net.JoinHostPort(host, port)
	}
	srv := server.New(runner, server.WithLogger(logger))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFault
	}
	return exitOK
}

func listRuns(st store.Store, limit int, stdout, stderr io.Writer) int {
	if st == nil {
		fmt.Fprintln(stderr, "Error: no run database (use --db or store.path)")
		return exitFault
	}
	runs, err := st.List(limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFault
	}
	for _, r := range runs {
		status := "ok"
		if !r.OK {
			status = "fail"
		}
		fmt.Fprintf(stdout, "%s  %-4s  %-24s  %s\n", r.ID[:8], status, r.Script, humanize.Time(r.Ts))
	}
	return exitOK
}

// openStore opens the run database named by the flag or the config. It
// returns nil when neither names one.
func openStore(flag string, cfg *config.Config) (store.Store, error) {
	path := flag
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, nil
	}
	return store.NewSQLite(path)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
