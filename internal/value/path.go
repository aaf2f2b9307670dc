// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package value

import (
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Segment is one step of a member path: a name after a dot or a key or index
// inside brackets.
type Segment struct {
	Name    string
	Index   int
	IsIndex bool
}

// ParsePath splits a path such as a.b[0].c or cfg['key'] into its root
// identifier and segments. It reports false when s is not a path with at
// least one segment.
func ParsePath(s string) (string, []Segment, bool) {
	root, rest := readName(s)
	if root == "" || rest == "" {
		return "", nil, false
	}

	var segs []Segment
	for rest != "" {
		switch rest[0] {
		case '.':
			name, tail := readName(rest[1:])
			if name == "" {
				return "", nil, false
			}
			segs = append(segs, Segment{Name: name})
			rest = tail
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", nil, false
			}
			seg, ok := bracket(strings.TrimSpace(rest[1:end]))
			if !ok {
				return "", nil, false
			}
			segs = append(segs, seg)
			rest = rest[end+1:]
		default:
			return "", nil, false
		}
	}
	return root, segs, true
}

func bracket(inner string) (Segment, bool) {
	if len(inner) >= 2 {
		q := inner[0]
		if (q == '\'' || q == '"') && inner[len(inner)-1] == q {
			key := inner[1 : len(inner)-1]
			if strings.ContainsRune(key, rune(q)) {
				return Segment{}, false
			}
			return Segment{Name: key}, true
		}
	}
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 {
		return Segment{}, false
	}
	return Segment{Index: n, IsIndex: true}, true
}

func readName(s string) (string, string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	return s[:i], s[i:]
}

// Lookup walks segs starting at v. Any missing step yields false.
func Lookup(v any, segs []Segment) (any, bool) {
	cur := v
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(v any, seg Segment) (any, bool) {
	if seg.IsIndex {
		return index(v, seg.Index)
	}
	if seg.Name == "length" {
		if n, ok := length(v); ok {
			return float64(n), true
		}
	}
	if seg.Name != "" {
		if n, err := strconv.Atoi(seg.Name); err == nil && n >= 0 {
			if x, ok := index(v, n); ok {
				return x, true
			}
		}
	}
	return Member(v, seg.Name)
}

func index(v any, i int) (any, bool) {
	switch x := v.(type) {
	case []any:
		if i < len(x) {
			return x[i], true
		}
		return nil, false
	case string:
		runes := []rune(x)
		if i < len(runes) {
			return string(runes[i]), true
		}
		return nil, false
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && i < rv.Len() {
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

func length(v any) (int, bool) {
	switch x := v.(type) {
	case []any:
		return len(x), true
	case string:
		return utf8.RuneCountInString(x), true
	case nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}
