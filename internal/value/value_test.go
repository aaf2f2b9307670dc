// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package value

import (
	"context"
	"encoding/json"
	"math"
	"testing"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{false, false},
		{0.0, false},
		{0, false},
		{math.NaN(), false},
		{"", false},
		{nil, false},
		{Undefined, false},
		{true, true},
		{-1.5, true},
		{"0", true},
		{[]any{}, true},
		{map[string]any{}, true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	arr := []any{1.0}
	obj := map[string]any{"a": 1.0}
	tests := []struct {
		a, b any
		want bool
	}{
		{2.0, 2, true},
		{"2", 2.0, false},
		{"a", "a", true},
		{nil, nil, true},
		{nil, Undefined, false},
		{Undefined, Undefined, true},
		{true, 1.0, false},
		{arr, arr, true},
		{arr, []any{1.0}, false},
		{obj, obj, true},
		{obj, map[string]any{"a": 1.0}, false},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{5.0, "5"},
		{2.5, "2.5"},
		{int64(-3), "-3"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{nil, "null"},
		{Undefined, "undefined"},
		{true, "true"},
		{[]any{1.0, "a", nil, []any{2.0, 3.0}}, "1,a,,2,3"},
		{map[string]any{"a": 1.0}, "[object Object]"},
		{func(...any) any { return nil }, "[function]"},
	}
	for _, tt := range tests {
		if got := Format(tt.v); got != tt.want {
			t.Errorf("Format(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestClassifyAndMethod(t *testing.T) {
	obj := Object{
		"max": func(args ...any) any { return args[len(args)-1] },
		"pi":  3.14,
	}
	if Classify(obj) != Keyed {
		t.Errorf("expected Keyed, got %v", Classify(obj))
	}
	if Classify(Func(func(context.Context, ...any) (any, error) { return nil, nil })) != Invocable {
		t.Error("expected Func to be Invocable")
	}
	if Classify(4.0) != Opaque {
		t.Error("expected number to be Opaque")
	}

	m, ok := Method(obj, "max")
	if !ok {
		t.Fatal("expected max method")
	}
	got, err := m.Call(context.Background(), 3.0, 9.0)
	if err != nil || got != 9.0 {
		t.Errorf("unexpected call result %v %v", got, err)
	}
	if _, ok := Method(obj, "pi"); ok {
		t.Error("non-callable member must not be a method")
	}
}

func TestParsePathAndLookup(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"tags": []any{"a", map[string]any{"c": "deep"}},
			"name": "Kalisa",
			"city": "Kigali–Rwanda",
		},
		"ids": []string{"x", "y"},
	}

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"d.user.name", "Kalisa", true},
		{"d.user.tags[1].c", "deep", true},
		{"d.user.tags.length", 2.0, true},
		{"d.user.name.length", 6.0, true},
		{"d['user']['name']", "Kalisa", true},
		{"d.ids[1]", "y", true},
		{"d.user.city.length", 13.0, true},
		{"d.user.city[6]", "–", true},
		{"d.user.city[12]", "a", true},
		{"d.user.city[13]", nil, false},
		{"d.ids.length", 2.0, true},
		{"d.user.missing.c", nil, false},
		{"d.user.tags[9]", nil, false},
	}
	for _, tt := range tests {
		root, segs, ok := ParsePath(tt.path)
		if !ok || root != "d" {
			t.Fatalf("ParsePath(%q) failed", tt.path)
		}
		got, ok := Lookup(data, segs)
		if ok != tt.ok {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("Lookup(%q) = %#v, want %#v", tt.path, got, tt.want)
		}
	}

	for _, bad := range []string{"a", "a.", "a[", "a[x]", "1a.b", "a.b c"} {
		if _, _, ok := ParsePath(bad); ok {
			t.Errorf("ParsePath(%q) should fail", bad)
		}
	}
}

func TestPlainIsJSONSafe(t *testing.T) {
	v := map[string]any{
		"f":   func(...any) any { return nil },
		"u":   Undefined,
		"nan": math.NaN(),
		"arr": []any{1, Undefined},
	}
	out, err := json.Marshal(PlainMap(v))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"arr":[1,null],"f":"[function]","nan":null,"u":null}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}
