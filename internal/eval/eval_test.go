// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

func mustRun(t *testing.T, code string, opts ...Option) *Result {
	t.Helper()
	res, err := New(opts...).Run(context.Background(), code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func runErr(t *testing.T, code string, want error, opts ...Option) {
	t.Helper()
	_, err := New(opts...).Run(context.Background(), code)
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestExpressions(t *testing.T) {
	vars := WithVariables(map[string]any{
		"a":    2,
		"b":    3.0,
		"name": "Mugisha",
		"word": "héllo",
		"user": map[string]any{
			"tags": []any{"x", "y"},
			"age":  30.0,
		},
	})

	tests := []struct {
		expr string
		want any
	}{
		{"1 + 2", 3.0},
		{"a + b", 5.0},
		{"'n' + 1", "n1"},
		{"name + ' ' + a", "Mugisha 2"},
		{`"x\ny"`, "x\ny"},
		{`'it\'s'`, "it's"},
		{`"C:\\"`, `C:\`},
		{`'a\\'`, `a\\`},
		{`"C:\\" + 'x'`, `C:\x`},
		{`'\\' + "\"q\""`, `\\"q"`},
		{"word.length", 5.0},
		{"word[1]", "é"},
		{"'a' + 'b'", "ab"},
		{"2 * -3", -6.0},
		{"2 + 3 * 4", 14.0},
		{"(2 + 3) * 4", 20.0},
		{"7 % 4", 3.0},
		{"-a", -2.0},
		{"+b", 3.0},
		{"!0", true},
		{"!name", false},
		{"1 < 2 && 'a' < 'b'", true},
		{"a >= 3 || b <= 3", true},
		{"1 == 1.0", true},
		{"'1' == 1", false},
		{"'1' != 1", true},
		{"null == null", true},
		{"undefined", value.Undefined},
		{"user.age", 30.0},
		{"user.tags[1]", "y"},
		{"user.tags.length", 2.0},
		{"name.length", 7.0},
		{"user.age > 18", true},
		{"[1, 2, 3]", []any{1.0, 2.0, 3.0}},
		{`{"k": "v"}`, map[string]any{"k": "v"}},
		{"1 / 0 > 1000", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res := mustRun(t, "let r = "+tt.expr, vars)
			if got := res.Variables["r"]; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s = %#v, want %#v", tt.expr, got, tt.want)
			}
		})
	}
}

// The operator scan splits on the right-most operator of a tier, so chains
// within a tier evaluate left to right.
func TestOperatorChains(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"10 - 4 - 3", 3},
		{"10 - (4 - 3)", 9},
		{"8 / 2 / 2", 2},
		{"2 - 1 + 1", 2},
		{"2 * 3 % 4", 2},
		{"1 - -1", 2},
	}
	for _, tt := range tests {
		res := mustRun(t, "let r = "+tt.expr)
		if got := res.Variables["r"]; got != tt.want {
			t.Errorf("%s = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestExpressionErrors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{"'a' - 1", ErrType},
		{"1 < 'a'", ErrType},
		{"true + 1", ErrType},
		{"-'x'", ErrType},
		{"nope", ErrUnknownValue},
		{"user.missing", ErrUnknownValue},
		{"1 +", ErrSyntax},
		{"{'bad': 1}", ErrUnknownValue},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			runErr(t, "let r = "+tt.expr, tt.want, WithVariables(map[string]any{"user": map[string]any{}}))
		})
	}
}

func TestScopes(t *testing.T) {
	t.Run("redeclare in same block", func(t *testing.T) {
		runErr(t, "let x = 1\nlet x = 2", ErrRedeclared)
		runErr(t, "const x = 1\nlet x = 2", ErrRedeclared)
	})

	t.Run("shadowing in child block", func(t *testing.T) {
		res := mustRun(t, `
let x = 1
let seen = 0
niba(true) {
  let x = 2
  seen = x
}`)
		if res.Variables["x"] != 1.0 || res.Variables["seen"] != 2.0 {
			t.Errorf("unexpected variables %v", res.Variables)
		}
	})

	t.Run("const anywhere in chain", func(t *testing.T) {
		runErr(t, "const c = 1\nniba(true) {\nc = 2\n}", ErrConst)
	})

	t.Run("assignment mutates owner", func(t *testing.T) {
		res := mustRun(t, "let n = 1\nsubiramo(3) {\n  n = n + 1\n}")
		if res.Variables["n"] != 4.0 {
			t.Errorf("expected 4, got %v", res.Variables["n"])
		}
	})

	t.Run("assignment without owner declares locally", func(t *testing.T) {
		res := mustRun(t, "niba(true) {\n  tmp = 1\n}\nfresh = 2")
		if _, ok := res.Variables["tmp"]; ok {
			t.Error("block-local binding leaked to root")
		}
		if res.Variables["fresh"] != 2.0 {
			t.Errorf("expected fresh = 2, got %v", res.Variables["fresh"])
		}
	})
}

func TestNestedReturn(t *testing.T) {
	var marks int
	mark := WithCommand("mark", func(context.Context, *CommandContext) (any, error) {
		marks++
		return value.Undefined, nil
	})
	res := mustRun(t, `
umukoro find() {
  subiramo(i, 1, 5) {
    niba(i == 3) {
      garura i;
    }
    mark()
  }
  mark()
}
let r = find()`, mark)

	if res.Variables["r"] != 3.0 {
		t.Errorf("expected 3, got %v", res.Variables["r"])
	}
	if marks != 2 {
		t.Errorf("expected 2 marks before the return, got %d", marks)
	}
}

func TestTopLevelReturnStopsRun(t *testing.T) {
	res := mustRun(t, "let a = 1\ngarura\nlet b = 2")
	if _, ok := res.Variables["b"]; ok {
		t.Error("statement after top-level return executed")
	}
}

func TestScenarios(t *testing.T) {
	t.Run("multiply and export", func(t *testing.T) {
		res := mustRun(t, "let x = 2;\nx = x * 5;\nexport x;")
		if !res.OK || res.Variables["x"] != 10.0 || res.Exports["x"] != 10.0 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("function call", func(t *testing.T) {
		res := mustRun(t, "umukoro add(a,b){\n  garura a+b;\n}\nlet s = add(2,3);\nexport s;")
		if res.Exports["s"] != 5.0 {
			t.Errorf("expected 5, got %v", res.Exports["s"])
		}
	})

	t.Run("calls inside expressions", func(t *testing.T) {
		res := mustRun(t, "umukoro add(a, b) {\n  garura a + b\n}\nlet s = add(1, 2) + add(3, add(1, 3))")
		if res.Variables["s"] != 10.0 {
			t.Errorf("expected 10, got %v", res.Variables["s"])
		}
	})

	t.Run("import member and call", func(t *testing.T) {
		math := value.Object{
			"max": func(args ...any) any {
				best := args[0].(float64)
				for _, a := range args[1:] {
					if a.(float64) > best {
						best = a.(float64)
					}
				}
				return best
			},
		}
		res := mustRun(t, "import { max as biggest } from 'math'\nkoresha(biggest, 3, 9)",
			WithDependencies(map[string]any{"math": math}))
		if !reflect.DeepEqual(res.Results, []any{9.0}) {
			t.Errorf("expected [9], got %v", res.Results)
		}
	})
}

func TestLazyExport(t *testing.T) {
	res := mustRun(t, `
let x = 1
let y = 'a'
export x
export { y as why }
export const z = 3
x = 5
y = 'b'`)
	want := map[string]any{"x": 5.0, "why": "b", "z": 3.0}
	if !reflect.DeepEqual(res.Exports, want) {
		t.Errorf("expected %v, got %v", want, res.Exports)
	}
}

func TestExportErrors(t *testing.T) {
	runErr(t, "export ghost", ErrUnknownVariable)
	runErr(t, "export { a as }", ErrSyntax)
	runErr(t, "export 1 + 2", ErrSyntax)
}

func TestImport(t *testing.T) {
	deps := WithDependencies(map[string]any{
		"cfg":  map[string]any{"port": 8080},
		"name": "ikin",
	})

	res := mustRun(t, "import cfg from 'cfg'\nimport { port } from \"cfg\"\nlet p = cfg.port + port", deps)
	if res.Variables["p"] != 16160.0 {
		t.Errorf("expected 16160, got %v", res.Variables["p"])
	}

	runErr(t, "import cfg from 'cfg'\ncfg = 1", ErrConst, deps)
	runErr(t, "import x from 'missing'", ErrDependency, deps)
	runErr(t, "import { host } from 'cfg'", ErrDependency, deps)
	runErr(t, "import { length } from 'name'", ErrDependency, deps)
	runErr(t, "import cfg 'cfg'", ErrSyntax, deps)
}

func TestLoops(t *testing.T) {
	res := mustRun(t, `
let up = ''
let down = ''
subiramo(i, 1, 3) {
  up = up + i
}
subiramo (i, 3, 1) {
  down = down + i
}
subiramo(0) {
  up = 'never'
}`)
	if res.Variables["up"] != "123" || res.Variables["down"] != "321" {
		t.Errorf("unexpected variables %v", res.Variables)
	}
	if _, ok := res.Variables["i"]; ok {
		t.Error("loop variable leaked")
	}

	runErr(t, "subiramo(1.5) {\n}", ErrType)
	runErr(t, "subiramo(-1) {\n}", ErrType)
	runErr(t, "subiramo('3') {\n}", ErrType)
	runErr(t, "subiramo(i, 1, 'x') {\n}", ErrType)
	runErr(t, "subiramo(1, 2) {\n}", ErrSyntax)
}

func TestConditionals(t *testing.T) {
	code := `
let r = ''
niba(n > 2) {
  r = 'big'
}
niba_atariyo {
  r = 'small'
}`
	for n, want := range map[float64]string{5: "big", 1: "small"} {
		res := mustRun(t, code, WithVariables(map[string]any{"n": n}))
		if res.Variables["r"] != want {
			t.Errorf("n=%v: expected %q, got %v", n, want, res.Variables["r"])
		}
	}

	runErr(t, "niba_atariyo {\n}", ErrSyntax)
	runErr(t, "niba true {\n}", ErrSyntax)
}

func TestSyntaxErrors(t *testing.T) {
	runErr(t, "umukoro f( {\n}", ErrSyntax)
	runErr(t, "umukoro f(a, 1) {\n}", ErrSyntax)
	runErr(t, "umukoro f() {\nlet a = 1", scanner.ErrUnbalanced)
	runErr(t, "x +", ErrSyntax)
	runErr(t, "let = 3", ErrSyntax)
	runErr(t, "foo(1)", ErrUnknownCommand)
	runErr(t, "umukoro f(a) {\n}\nf()", ErrArity)
}

func TestInjectAndUse(t *testing.T) {
	deps := WithDependencies(map[string]any{
		"math": value.Object{
			"max": func(args ...any) (any, error) { return args[1], nil },
		},
		"double": func(args ...any) any { return args[0].(float64) * 2 },
		"cfg":    map[string]any{"mode": "dev"},
		"now":    value.Func(func(context.Context, ...any) (any, error) { return 42, nil }),
	})

	res := mustRun(t, `
let m = injiza('math')
koresha('math', 'max', 1, 5)
hamagara('double', 4)
let c = koresha('cfg')
koresha('now')
koresha(m, 'max', 2, 7)`, deps)

	want := []any{5.0, 8.0, 42.0, 7.0}
	if !reflect.DeepEqual(res.Results, want) {
		t.Errorf("expected %v, got %v", want, res.Results)
	}

	if c, ok := res.Variables["c"].(map[string]any); !ok || c["mode"] != "dev" {
		t.Errorf("expected plain dependency back, got %v", res.Variables["c"])
	}

	runErr(t, "injiza('nope')", ErrDependency, deps)
	runErr(t, "injiza()", ErrArity, deps)
	runErr(t, "koresha(5, 1)", ErrNotCallable, deps)
	runErr(t, "koresha()", ErrArity, deps)
}

func TestInjectDependenciesAsVariables(t *testing.T) {
	opts := []Option{
		WithDependencies(map[string]any{"cfg": map[string]any{"port": 80.0}, "x": "dep"}),
		WithVariables(map[string]any{"x": "var"}),
		WithInjectDependencies(true),
	}
	res := mustRun(t, "let p = cfg.port", opts...)
	if res.Variables["p"] != 80.0 || res.Variables["x"] != "var" {
		t.Errorf("unexpected variables %v", res.Variables)
	}
}

type fakeValidator struct{}

func (fakeValidator) Validate(ctx context.Context, req *Request) (bool, bool, error) {
	if req.Name != "empty" {
		return false, false, nil
	}
	v, err := req.Text(ctx, 0)
	return v == "", true, err
}

func TestValidationStop(t *testing.T) {
	code := "let a = 1\nempty('filled')\nempty('');\nlet b = 2"

	res := mustRun(t, code, WithValidator(fakeValidator{}))
	if res.OK {
		t.Fatal("expected validation failure")
	}
	if res.FailedLine != "empty('');" {
		t.Errorf("unexpected failed line %q", res.FailedLine)
	}
	if _, ok := res.Variables["b"]; ok {
		t.Error("statement after failure executed")
	}
	if !reflect.DeepEqual(res.Results, []any{false}) {
		t.Errorf("unexpected results %v", res.Results)
	}

	res = mustRun(t, code, WithValidator(fakeValidator{}), WithStopOnValidationFail(false))
	if !res.OK || res.Variables["b"] != 2.0 {
		t.Errorf("expected run to continue, got %+v", res)
	}
	if !reflect.DeepEqual(res.Results, []any{false, true}) {
		t.Errorf("unexpected results %v", res.Results)
	}
}

func TestValidationStopInsideFunction(t *testing.T) {
	code := "umukoro check() {\n  empty('')\n}\ncheck()\nlet after = 1"
	res := mustRun(t, code, WithValidator(fakeValidator{}))
	if res.OK || res.FailedLine != "empty('')" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFamiliesOrder(t *testing.T) {
	var seen []string
	env := FamilyFunc(func(ctx context.Context, req *Request) (Outcome, error) {
		seen = append(seen, "env:"+req.Name)
		if req.Name == "show" {
			return Handled(value.Undefined), nil
		}
		return NotHandled, nil
	})
	net := FamilyFunc(func(ctx context.Context, req *Request) (Outcome, error) {
		seen = append(seen, "net:"+req.Name)
		if req.Name == "fetch" {
			url, err := req.Text(ctx, 0)
			return Handled("body of " + url), err
		}
		if req.Name == "broken" {
			return NotHandled, errors.New("offline")
		}
		return NotHandled, nil
	})

	res := mustRun(t, "show('x')\nfetch('http://a')\nempty('x')", WithEnvironment(env), WithNetwork(net), WithValidator(fakeValidator{}))
	want := []string{"env:show", "env:fetch", "net:fetch", "env:empty"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("expected %v, got %v", want, seen)
	}
	if !reflect.DeepEqual(res.Results, []any{"body of http://a", false}) {
		t.Errorf("unexpected results %v", res.Results)
	}

	_, err := New(WithNetwork(net)).Run(context.Background(), "broken()")
	if err == nil || !strings.Contains(err.Error(), "broken: offline") {
		t.Errorf("expected wrapped family error, got %v", err)
	}
}

func TestHooks(t *testing.T) {
	var events []string
	var faults []error
	opts := []Option{
		WithOnCommandStart(func(ctx context.Context, ev CommandEvent) error {
			events = append(events, "start:"+ev.Name+":"+ev.Line)
			return nil
		}),
		WithOnCommandEnd(func(ctx context.Context, ev CommandEvent) error {
			events = append(events, "end:"+ev.Name+":"+value.Format(ev.Value))
			return nil
		}),
		WithOnError(func(ctx context.Context, err error) {
			faults = append(faults, err)
		}),
		WithDependencies(map[string]any{"k": "v"}),
	}

	mustRun(t, "umukoro one() {\n  garura 1\n}\none()\ninjiza('k');", opts...)
	want := []string{"start:one:one()", "end:one:1", "start:injiza:injiza('k');", "end:injiza:v"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("expected %v, got %v", want, events)
	}
	if len(faults) != 0 {
		t.Errorf("unexpected faults %v", faults)
	}

	boom := errors.New("boom")
	opts = append(opts, WithOnCommandEnd(func(context.Context, CommandEvent) error { return boom }))
	runErr(t, "injiza('k')", boom, opts...)
	if len(faults) != 1 || !errors.Is(faults[0], boom) {
		t.Errorf("expected OnError to observe the hook failure, got %v", faults)
	}
}

func TestCustomCommandNestedRun(t *testing.T) {
	var got *CommandContext
	double := WithCommand("double", func(ctx context.Context, cc *CommandContext) (any, error) {
		got = cc
		res, err := cc.Run(ctx, "let y = x * 2\nexport y", WithVariables(map[string]any{"extra": true}))
		if err != nil {
			return nil, err
		}
		return res.Exports["y"], nil
	})
	res := mustRun(t, "let x = 21\nlet r = double('a', 1 + 1)", double, WithDependencies(map[string]any{"d": 1}))
	if res.Variables["r"] != 42.0 {
		t.Errorf("expected 42, got %v", res.Variables["r"])
	}
	if got.Name != "double" || got.Line != "double('a', 1 + 1)" {
		t.Errorf("unexpected context %+v", got)
	}
	if !reflect.DeepEqual(got.Args, []any{"a", 2.0}) {
		t.Errorf("unexpected args %v", got.Args)
	}
	if got.Dependencies["d"] != 1 {
		t.Errorf("expected dependency table, got %v", got.Dependencies)
	}

	failing := WithCommand("fail", func(context.Context, *CommandContext) (any, error) {
		return nil, errors.New("handler failed")
	})
	_, err := New(failing).Run(context.Background(), "fail()")
	if err == nil || !strings.Contains(err.Error(), "fail: handler failed") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestCustomCommandWritesScope(t *testing.T) {
	set := WithCommand("set", func(ctx context.Context, cc *CommandContext) (any, error) {
		return value.Undefined, cc.Scope.Assign(value.Format(cc.Args[0]), cc.Args[1])
	})
	res := mustRun(t, "let a = 1\nset('a', 5)", set)
	if res.Variables["a"] != 5.0 {
		t.Errorf("expected 5, got %v", res.Variables["a"])
	}
	runErr(t, "const a = 1\nset('a', 5)", ErrConst, set)
}

func TestOutOfBandDispatch(t *testing.T) {
	var listener *Request
	var handler string
	env := FamilyFunc(func(ctx context.Context, req *Request) (Outcome, error) {
		if req.Name != "listen" {
			return NotHandled, nil
		}
		name, err := req.Text(ctx, 0)
		if err != nil {
			return NotHandled, err
		}
		listener, handler = req, name
		return Handled(value.Undefined), nil
	})

	res := mustRun(t, `
let clicks = 0
let last = ''
umukoro onClick(e) {
  clicks = clicks + 1
  last = e
  garura clicks
}
listen('onClick')`, WithEnvironment(env))

	if listener == nil {
		t.Fatal("listener was not registered")
	}
	for _, ev := range []any{"a", "b", 1.0} {
		if err := listener.Dispatch(context.Background(), handler, ev); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
	}
	if len(res.Results) != 0 {
		t.Errorf("out-of-band calls must not emit results, got %v", res.Results)
	}
	if v, _ := listener.Scope.Resolve("clicks"); v != 3.0 {
		t.Errorf("expected 3 clicks, got %v", v)
	}
	if v, _ := listener.Scope.Resolve("last"); v != 1.0 {
		t.Errorf("expected last event 1, got %v", v)
	}
	if err := listener.Dispatch(context.Background(), "missing", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Run(ctx, "let a = 1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIdempotent(t *testing.T) {
	code := `
let total = 0
umukoro add(a, b) {
  garura a + b
}
subiramo(i, 1, 4) {
  total = add(total, i)
  koresha('echo', total)
}
export total`
	opts := []Option{WithDependencies(map[string]any{"echo": func(args ...any) any { return args[0] }})}
	first := mustRun(t, code, opts...)
	second := mustRun(t, code, opts...)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(first.Results, []any{1.0, 3.0, 6.0, 10.0}) {
		t.Errorf("unexpected results %v", first.Results)
	}
}

func TestResultJSON(t *testing.T) {
	res := mustRun(t, "let f = injiza('fn')\nlet u = undefined\nexport f",
		WithDependencies(map[string]any{"fn": func(...any) any { return nil }}))
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"ok":true,"variables":{"f":"[function]","u":null},"exports":{"f":"[function]"},"results":[]}`
	if string(out) != want {
		t.Errorf("got %s\nwant %s", out, want)
	}
}

// Inside an expression a user function shadows a command of the same name;
// as a statement the command still runs first.
func TestExpressionCallPrefersFunctions(t *testing.T) {
	var printed []string
	env := FamilyFunc(func(ctx context.Context, req *Request) (Outcome, error) {
		if req.Name != "andika" {
			return NotHandled, nil
		}
		s, err := req.Text(ctx, 0)
		if err != nil {
			return NotHandled, err
		}
		printed = append(printed, s)
		return Handled(value.Undefined), nil
	})

	res := mustRun(t, `umukoro andika(x) {
  garura x + '!'
}
let r = andika('muraho')
andika(r)`, WithEnvironment(env))

	if res.Variables["r"] != "muraho!" {
		t.Errorf("r = %#v", res.Variables["r"])
	}
	if !reflect.DeepEqual(printed, []string{"muraho!"}) {
		t.Errorf("printed %v", printed)
	}
}
