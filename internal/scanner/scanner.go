// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner turns script source into logical lines and provides the
// quote-aware helpers used to take those lines apart.
package scanner

import (
	"bufio"
	"io"
	"strings"
)

// Scanner reads script source line by line.
type Scanner struct {
	reader *bufio.Reader
	line   int // Physical lines consumed so far
}

// New creates a new Scanner from an io.Reader.
func New(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReader(r)}
}

// NewFromString creates a new Scanner from a string.
func NewFromString(s string) *Scanner {
	return New(strings.NewReader(s))
}

// Line returns the number of physical lines read.
func (s *Scanner) Line() int {
	return s.line
}

// Lines consumes the remaining input and returns its logical lines: comments
// stripped, whitespace trimmed, empty lines dropped.
func (s *Scanner) Lines() ([]string, error) {
	var lines []string
	for {
		raw, err := s.reader.ReadString('\n')
		if raw != "" {
			s.line++
			if line := clean(raw); line != "" {
				lines = append(lines, line)
			}
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Preprocess returns the logical lines of src.
func Preprocess(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	var lines []string
	for _, raw := range strings.Split(src, "\n") {
		if line := clean(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func clean(raw string) string {
	raw = strings.TrimSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\r")
	return strings.TrimSpace(StripComment(raw))
}

// StripComment removes a trailing // comment that is not inside a quoted
// string.
func StripComment(line string) string {
	var q quotes
	for i := 0; i < len(line)-1; i++ {
		if q.step(line, i) {
			continue
		}
		if !q.inside() && line[i] == '/' && line[i+1] == '/' {
			return line[:i]
		}
	}
	return line
}

// TrimSemicolon removes one trailing statement terminator.
func TrimSemicolon(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasSuffix(line, ";") {
		return strings.TrimSpace(line[:len(line)-1])
	}
	return line
}

// quotes tracks whether a byte offset falls inside a quoted span. Inside a
// span a backslash escapes the byte after it. Offsets must be stepped in
// order.
type quotes struct {
	single bool
	double bool
	escape bool
}

// step updates the state for s[i] and reports whether s[i] was a delimiter.
func (q *quotes) step(s string, i int) bool {
	c := s[i]
	if q.escape {
		q.escape = false
		return false
	}
	switch {
	case c == '\\' && q.inside():
		q.escape = true
	case c == '\'' && !q.double:
		q.single = !q.single
		return true
	case c == '"' && !q.single:
		q.double = !q.double
		return true
	}
	return false
}

func (q *quotes) inside() bool {
	return q.single || q.double
}
