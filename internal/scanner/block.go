// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package scanner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnbalanced reports a block whose braces do not match.
var ErrUnbalanced = errors.New("unbalanced block")

// Block is the body of a brace-delimited construct.
type Block struct {
	Body []string // Lines between the header and the closing brace
	End  int      // Index of the line holding the matching closing brace
}

// CollectBlock extracts the block opened on lines[start].
func CollectBlock(lines []string, start int) (Block, error) {
	if start < 0 || start >= len(lines) {
		return Block{}, fmt.Errorf("%w: missing opening brace near line %d", ErrUnbalanced, start)
	}

	header := lines[start]
	depth := BraceDelta(header)
	if depth <= 0 || !strings.Contains(header, "{") {
		return Block{}, fmt.Errorf("%w: expected block opening at line: %s", ErrUnbalanced, header)
	}

	var body []string
	for i := start + 1; i < len(lines); i++ {
		depth += BraceDelta(lines[i])
		if depth <= 0 {
			return Block{Body: body, End: i}, nil
		}
		body = append(body, lines[i])
	}
	return Block{}, fmt.Errorf("%w: unclosed block near line: %s", ErrUnbalanced, header)
}

// BraceDelta returns the number of '{' minus the number of '}' outside
// quoted strings.
func BraceDelta(line string) int {
	var q quotes
	delta := 0
	for i := 0; i < len(line); i++ {
		if q.step(line, i) || q.inside() {
			continue
		}
		switch line[i] {
		case '{':
			delta++
		case '}':
			delta--
		}
	}
	return delta
}
