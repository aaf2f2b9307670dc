// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterh/liner"

	"github.com/Uwikunda17/kinyarwandalibrary/pkg/kinyarwanda"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	if args == nil {
		args = []string{}
	}
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return cliResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestVersionAndHelp(t *testing.T) {
	res := runCLI(t, "", "--version")
	if res.code != exitOK || !strings.Contains(res.stdout, version) {
		t.Errorf("--version: %+v", res)
	}
	res = runCLI(t, "", "-h")
	if res.code != exitOK || !strings.Contains(res.stdout, "Usage:") {
		t.Errorf("-h: %+v", res)
	}
}

func TestBadUsage(t *testing.T) {
	for _, args := range [][]string{
		{"--nope"},
		{"runs", "--limit=many"},
	} {
		if res := runCLI(t, "", args...); res.code != exitFault {
			t.Errorf("%v: expected exit %d, got %+v", args, exitFault, res)
		}
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "ok.ikw", "andika('muraho')\n")
	fault := writeFile(t, dir, "fault.ikw", "let a = ntacyo\n")
	check := writeFile(t, dir, "check.ikw", "si_imererwe_neza('#email')\nandika('after')\n")
	wrongExt := writeFile(t, dir, "script.js", "andika(1)\n")
	cfg := writeFile(t, dir, "ikin.yaml", `
elements:
  "#email":
    input: true
    value: not-an-email
`)

	tests := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{"ok", []string{ok}, exitOK, "muraho\n", ""},
		{"run command", []string{"run", ok}, exitOK, "muraho\n", ""},
		{"fault", []string{fault}, exitFault, "", "unknown value or variable"},
		{"extension", []string{wrongExt}, exitFault, "", "expected a .ikw file"},
		{"validation", []string{"--config", cfg, check}, exitValidation, "",
			"Validation failed at line: si_imererwe_neza('#email')"},
		{"continue", []string{"--config", cfg, "--continue", check}, exitOK, "after\n", ""},
		{"stops before next script", []string{"--config", cfg, check, ok}, exitValidation, "", "Validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			if res.code != tt.code {
				t.Fatalf("exit %d, want %d (stderr %q)", res.code, tt.code, res.stderr)
			}
			if res.stdout != tt.stdout {
				t.Errorf("stdout %q, want %q", res.stdout, tt.stdout)
			}
			if !strings.Contains(res.stderr, tt.stderr) {
				t.Errorf("stderr %q, want it to contain %q", res.stderr, tt.stderr)
			}
		})
	}
}

func TestStdin(t *testing.T) {
	res := runCLI(t, "let a = 1 + 2\nandika(a)\n")
	if res.code != exitOK || res.stdout != "3\n" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunsAndResume(t *testing.T) {
	dir := t.TempDir()
	db := "--db=" + filepath.Join(dir, "runs.db")
	script := writeFile(t, dir, "a.ikw", "let n = 4\n")

	if res := runCLI(t, "", db, script); res.code != exitOK {
		t.Fatalf("run failed: %+v", res)
	}
	if res := runCLI(t, "let m = ntacyo", db); res.code != exitFault {
		t.Fatalf("expected fault: %+v", res)
	}

	res := runCLI(t, "", "runs", db)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	if res.code != exitOK || len(lines) != 2 {
		t.Fatalf("runs: %+v", res)
	}
	if !strings.Contains(lines[0], "fail") || !strings.Contains(lines[1], "ok") || !strings.Contains(lines[1], "a.ikw") {
		t.Errorf("unexpected listing %q", res.stdout)
	}

	res = runCLI(t, "", "runs", "--limit=1", db)
	if strings.Count(res.stdout, "\n") != 1 {
		t.Errorf("--limit=1 listed %q", res.stdout)
	}

	// The latest run faulted, so its record carries no variables.
	res = runCLI(t, "andika(n * 2)", "--resume", db)
	if res.code != exitFault {
		t.Errorf("expected resume from the faulted run to miss n: %+v", res)
	}
	if res := runCLI(t, "", db, script); res.code != exitOK {
		t.Fatal(res.stderr)
	}
	res = runCLI(t, "andika(n * 2)", "--resume", db)
	if res.code != exitOK || res.stdout != "8\n" {
		t.Errorf("resume: %+v", res)
	}
}

func TestNeedsDatabase(t *testing.T) {
	for _, args := range [][]string{{"runs"}, {"--resume"}} {
		res := runCLI(t, "let a = 1", args...)
		if res.code != exitFault || !strings.Contains(res.stderr, "database") {
			t.Errorf("%v: %+v", args, res)
		}
	}
}

func TestREPLCommand(t *testing.T) {
	res := runCLI(t, "let a = 2\nandika(a * 3)\n:vars\n", "repl")
	if res.code != exitOK {
		t.Fatalf("repl: %+v", res)
	}
	for _, want := range []string{"ikin REPL", "6\n", "a = 2\n"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout %q missing %q", res.stdout, want)
		}
	}
}

func scripted(lines ...string) readFunc {
	return func(string) (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		if line == "^C" {
			return "", liner.ErrPromptAborted
		}
		return line, nil
	}
}

func TestSession(t *testing.T) {
	var out, errOut bytes.Buffer
	s := newSession(kinyarwanda.New(kinyarwanda.WithOutput(&out)), &out, &errOut)

	s.loop(context.Background(), scripted(
		"umukoro kabiri(n) {",
		"  garura n * 2",
		"}",
		"let x = kabiri(4)",
		"^C",
		"andika(kabiri(x))",
		"let x = 1",
		":vars",
		":bogus",
		":quit",
		"andika('never')",
	))

	if got := out.String(); got != "16\nx = 8\n" {
		t.Errorf("stdout %q", got)
	}
	for _, want := range []string{"already declared", "unknown command :bogus"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("stderr %q missing %q", errOut.String(), want)
		}
	}

	s.meta(context.Background(), ":reset")
	if len(s.vars) != 0 || len(s.funcs) != 0 {
		t.Errorf("reset left %v %v", s.vars, s.funcs)
	}
}

func TestSessionLoad(t *testing.T) {
	var out bytes.Buffer
	s := newSession(kinyarwanda.New(kinyarwanda.WithOutput(&out)), &out, &out)
	path := writeFile(t, t.TempDir(), "lib.ikw", "umukoro ongera(a, b) {\n  garura a + b\n}\nlet base = 10\n")

	ctx := context.Background()
	if err := s.handle(ctx, ":load '"+path+"'"); err != nil {
		t.Fatal(err)
	}
	if err := s.handle(ctx, "andika(ongera(base, 5))"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "15\n" {
		t.Errorf("stdout %q", out.String())
	}
	if err := s.handle(ctx, ":load"); err == nil {
		t.Error("expected usage error")
	}
	if err := s.handle(ctx, ":load missing.txt"); !errors.Is(err, kinyarwanda.ErrExtension) {
		t.Errorf("expected ErrExtension, got %v", err)
	}
}

func TestReadEntry(t *testing.T) {
	read := scripted("niba (true) {", "  andika('}')  // }", "}", "let a = 1")
	entry, err := readEntry(read)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(entry, "\n") != 2 {
		t.Errorf("entry %q", entry)
	}
	entry, _ = readEntry(read)
	if entry != "let a = 1" {
		t.Errorf("entry %q", entry)
	}
	if _, err := readEntry(read); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}
