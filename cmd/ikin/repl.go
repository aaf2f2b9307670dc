// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/stdlib"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/token"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
	"github.com/Uwikunda17/kinyarwandalibrary/pkg/kinyarwanda"
)

const (
	promptMain  = "ikin> "
	promptCont  = "...   "
	historyFile = ".ikin_history"
)

var errQuit = errors.New("quit")

// readFunc returns the next input line. It returns io.EOF at end of input
// and liner.ErrPromptAborted when the entry should be discarded.
type readFunc func(prompt string) (string, error)

func runREPL(ctx context.Context, runner *kinyarwanda.Runner, stdin io.Reader, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "ikin REPL (:help for help, Ctrl+D to exit)")
	s := newSession(runner, stdout, stderr)

	f, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		reader := bufio.NewReader(stdin)
		s.loop(ctx, func(prompt string) (string, error) {
			fmt.Fprint(stdout, prompt)
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return "", err
			}
			return strings.TrimRight(line, "\r\n"), nil
		})
		fmt.Fprintln(stdout)
		return exitOK
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if hf, err := os.Open(histPath); err == nil {
		ln.ReadHistory(hf)
		hf.Close()
	}
	defer func() {
		if hf, err := os.Create(histPath); err == nil {
			ln.WriteHistory(hf)
			hf.Close()
		}
	}()

	s.loop(ctx, func(prompt string) (string, error) {
		line, err := ln.Prompt(prompt)
		if err == nil && strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		return line, err
	})
	fmt.Fprintln(stdout)
	return exitOK
}

// session carries function definitions and variables from one entry to the
// next.
type session struct {
	runner *kinyarwanda.Runner
	out    io.Writer
	errOut io.Writer

	funcs map[string]string
	order []string
	vars  map[string]any
}

func newSession(runner *kinyarwanda.Runner, out, errOut io.Writer) *session {
	s := &session{runner: runner, out: out, errOut: errOut}
	s.reset()
	return s
}

func (s *session) reset() {
	s.funcs = map[string]string{}
	s.order = nil
	s.vars = map[string]any{}
}

func (s *session) loop(ctx context.Context, read readFunc) {
	for ctx.Err() == nil {
		entry, err := readEntry(read)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return
		}
		if strings.TrimSpace(entry) == "" {
			continue
		}
		if err := s.handle(ctx, entry); errors.Is(err, errQuit) {
			return
		} else if err != nil {
			fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
	}
}

// readEntry reads lines until the braces opened in the entry are closed.
func readEntry(read readFunc) (string, error) {
	var b strings.Builder
	depth := 0
	prompt := promptMain
	for {
		line, err := read(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		depth += scanner.BraceDelta(scanner.StripComment(line))
		if depth <= 0 {
			return b.String(), nil
		}
		prompt = promptCont
	}
}

func (s *session) handle(ctx context.Context, entry string) error {
	if trimmed := strings.TrimSpace(entry); strings.HasPrefix(trimmed, ":") {
		return s.meta(ctx, trimmed)
	}
	return s.eval(ctx, entry)
}

func (s *session) meta(ctx context.Context, line string) error {
	args, err := shellquote.Split(line)
	if err != nil {
		return err
	}
	switch args[0] {
	case ":quit", ":q", ":exit":
		return errQuit
	case ":help":
		fmt.Fprint(s.out, stdlib.Primer)
	case ":vars":
		for _, name := range slices.Sorted(maps.Keys(s.vars)) {
			fmt.Fprintf(s.out, "%s = %s\n", name, value.Format(s.vars[name]))
		}
	case ":reset":
		s.reset()
	case ":load":
		if len(args) != 2 {
			return errors.New("usage: :load FILE")
		}
		code, err := kinyarwanda.ReadFile(args[1])
		if err != nil {
			return err
		}
		return s.eval(ctx, code)
	default:
		return fmt.Errorf("unknown command %s, type :help", args[0])
	}
	return nil
}

func (s *session) eval(ctx context.Context, code string) error {
	prelude := make([]string, 0, len(s.order))
	for _, name := range s.order {
		prelude = append(prelude, s.funcs[name])
	}
	runner := s.runner.WithOptions(
		kinyarwanda.WithPrelude(strings.Join(prelude, "\n")),
		kinyarwanda.WithVariables(s.vars),
	)
	res, err := runner.Run(ctx, code)
	if err != nil {
		return err
	}
	s.vars = res.Variables
	s.define(code)

	for _, v := range res.Results {
		fmt.Fprintln(s.out, value.Format(v))
	}
	if !res.OK {
		fmt.Fprintf(s.errOut, "Validation failed at line: %s\n", res.FailedLine)
	}
	return nil
}

// define records the top-level function declarations of code.
func (s *session) define(code string) {
	lines := scanner.Preprocess(code)
	for i := 0; i < len(lines); i++ {
		rest, ok := scanner.CutKeyword(lines[i], token.Function)
		if !ok {
			if d := scanner.BraceDelta(lines[i]); d > 0 {
				if block, err := scanner.CollectBlock(lines, i); err == nil {
					i = block.End
				}
			}
			continue
		}
		name, _ := scanner.ReadIdent(strings.TrimSpace(rest))
		block, err := scanner.CollectBlock(lines, i)
		if err != nil || name == "" {
			continue
		}
		if _, seen := s.funcs[name]; !seen {
			s.order = append(s.order, name)
		}
		s.funcs[name] = strings.Join(lines[i:block.End+1], "\n")
		i = block.End
	}
}
