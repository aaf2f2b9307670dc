// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package value defines the runtime values scripts operate on.
//
// Scripts see Go values directly: float64 numbers (any Go numeric kind is
// accepted from the host), string, bool, nil for null, Undefined for an
// absent value, []any arrays, map[string]any or Object keyed structures, and
// callables.
package value

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type undefined struct{}

func (undefined) String() string               { return "undefined" }
func (undefined) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Undefined is the absent value. Commands that produce nothing return it.
var Undefined any = undefined{}

// IsUndefined reports whether v is the absent value.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Callable is a value scripts can invoke.
type Callable interface {
	Call(ctx context.Context, args ...any) (any, error)
}

// Func adapts a Go function to Callable.
type Func func(ctx context.Context, args ...any) (any, error)

// Call invokes f.
func (f Func) Call(ctx context.Context, args ...any) (any, error) {
	return f(ctx, args...)
}

// MethodSet is implemented by values exposing named methods.
type MethodSet interface {
	Method(name string) (Callable, bool)
}

// Object is a keyed structure whose callable members act as methods.
type Object map[string]any

// Method returns the callable member name.
func (o Object) Method(name string) (Callable, bool) {
	m, ok := o[name]
	if !ok {
		return nil, false
	}
	return AsCallable(m)
}

// AsCallable returns v as a Callable when it is one of the supported
// function shapes.
func AsCallable(v any) (Callable, bool) {
	switch f := v.(type) {
	case Callable:
		return f, true
	case func(context.Context, ...any) (any, error):
		return Func(f), true
	case func(...any) (any, error):
		return Func(func(_ context.Context, args ...any) (any, error) { return f(args...) }), true
	case func(...any) any:
		return Func(func(_ context.Context, args ...any) (any, error) { return f(args...), nil }), true
	}
	return nil, false
}

// Kind classifies a value by what a script may do with it.
type Kind int

const (
	// Opaque values can only be passed around.
	Opaque Kind = iota
	// Invocable values can be called.
	Invocable
	// Keyed values have named members, some of which may be methods.
	Keyed
)

// Classify returns the capability kind of v.
func Classify(v any) Kind {
	if _, ok := AsCallable(v); ok {
		return Invocable
	}
	switch v.(type) {
	case MethodSet, map[string]any:
		return Keyed
	}
	return Opaque
}

// Member returns the named member of a keyed value.
func Member(v any, name string) (any, bool) {
	switch m := v.(type) {
	case Object:
		x, ok := m[name]
		return x, ok
	case map[string]any:
		x, ok := m[name]
		return x, ok
	case MethodSet:
		c, ok := m.Method(name)
		if !ok {
			return nil, false
		}
		return c, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		x := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !x.IsValid() {
			return nil, false
		}
		return x.Interface(), true
	}
	return nil, false
}

// Method returns the named method of v, if it has one.
func Method(v any, name string) (Callable, bool) {
	if ms, ok := v.(MethodSet); ok {
		return ms.Method(name)
	}
	m, ok := Member(v, name)
	if !ok {
		return nil, false
	}
	return AsCallable(m)
}

// Number returns v as a float64 if it is any Go numeric kind.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Truthy reports whether v counts as true in a condition. False, zero, NaN,
// the empty string, null and Undefined are false.
func Truthy(v any) bool {
	if v == nil || IsUndefined(v) {
		return false
	}
	if n, ok := Number(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != ""
	}
	return true
}

// Equal compares without coercion. Numbers compare by value, composite
// values by identity.
func Equal(a, b any) bool {
	an, aNum := Number(a)
	bn, bNum := Number(b)
	if aNum || bNum {
		return aNum && bNum && an == bn
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	}
	if ra.Type().Comparable() {
		return a == b
	}
	return false
}

// Format returns the printed form of v used by string concatenation and
// output commands.
func Format(v any) string {
	if v == nil {
		return "null"
	}
	if n, ok := Number(v); ok {
		return FormatNumber(n)
	}
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case undefined:
		return "undefined"
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			if el != nil && !IsUndefined(el) {
				parts[i] = Format(el)
			}
		}
		return strings.Join(parts, ",")
	case Object, map[string]any:
		return "[object Object]"
	}
	if _, ok := AsCallable(v); ok {
		return "[function]"
	}
	if _, ok := v.(MethodSet); ok {
		return "[object Object]"
	}
	return fmt.Sprint(v)
}

// FormatNumber prints n the way scripts expect: integers without a decimal
// point, shortest round-trip digits otherwise.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(n, 'g', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Plain converts v into a value encoding/json can marshal. Callables become
// "[function]", Undefined and non-finite numbers become null.
func Plain(v any) any {
	if v == nil || IsUndefined(v) {
		return nil
	}
	if n, ok := Number(v); ok {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return n
	}
	switch x := v.(type) {
	case string, bool:
		return x
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = Plain(el)
		}
		return out
	case Object:
		return plainMap(x)
	case map[string]any:
		return plainMap(x)
	}
	if _, ok := AsCallable(v); ok {
		return "[function]"
	}
	if _, ok := v.(MethodSet); ok {
		return "[object Object]"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return Format(v)
	}
	return v
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, el := range m {
		out[k] = Plain(el)
	}
	return out
}

// PlainMap applies Plain to every entry of m.
func PlainMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return plainMap(m)
}
