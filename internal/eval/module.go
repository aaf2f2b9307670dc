// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/scanner"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/token"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// importStatement handles
//
//	import name from 'dep'
//	import { a, b as c } from 'dep'
//
// Every imported binding is const.
func (r *run) importStatement(line, rest string, s *Scope) error {
	rest = strings.TrimSpace(scanner.TrimSemicolon(rest))

	if strings.HasPrefix(rest, "{") {
		closing := strings.IndexByte(rest, '}')
		if closing < 0 {
			return syntaxError("invalid import syntax: %s", line)
		}
		specs, err := parseSpecifiers(rest[1:closing])
		if err != nil {
			return err
		}
		dep, name, err := r.importSource(line, rest[closing+1:])
		if err != nil {
			return err
		}
		for _, sp := range specs {
			member, ok := value.Member(dep, sp.name)
			if !ok {
				return fmt.Errorf("%w: imported member %q was not found on dependency %q",
					ErrDependency, sp.name, name)
			}
			if err := s.Declare(sp.alias, member, true); err != nil {
				return err
			}
		}
		return nil
	}

	local, tail := scanner.ReadIdent(rest)
	if local == "" || tail == "" || (tail[0] != ' ' && tail[0] != '\t') {
		return syntaxError("invalid import syntax: %s", line)
	}
	dep, _, err := r.importSource(line, tail)
	if err != nil {
		return err
	}
	return s.Declare(local, dep, true)
}

// importSource parses `from 'dep'` and returns the dependency.
func (r *run) importSource(line, tail string) (any, string, error) {
	from, ok := scanner.CutKeyword(strings.TrimSpace(tail), token.From)
	if !ok {
		return nil, "", syntaxError("invalid import syntax: %s", line)
	}
	name, ok := quoted(from)
	if !ok {
		return nil, "", syntaxError("invalid import syntax: %s", line)
	}
	dep, found := r.ev.dependencies[name]
	if !found {
		return nil, "", fmt.Errorf("%w: %s", ErrDependency, name)
	}
	return dep, name, nil
}

// exportStatement handles
//
//	export let x = e
//	export x = e
//	export { a, b as c }
//	export x
//
// Exported values are read when the run ends.
func (r *run) exportStatement(ctx context.Context, line, rest string, s *Scope) error {
	body := strings.TrimSpace(scanner.TrimSemicolon(rest))

	b, ok, err := parseBinding(body)
	if err != nil {
		return err
	}
	if ok {
		if err := r.bind(ctx, b, s); err != nil {
			return err
		}
		r.export(b.name, s, b.name)
		return nil
	}

	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		specs, err := parseSpecifiers(body[1 : len(body)-1])
		if err != nil {
			return err
		}
		for _, sp := range specs {
			if err := r.exportExisting(sp.alias, sp.name, s); err != nil {
				return err
			}
		}
		return nil
	}

	if scanner.IsIdent(body) {
		return r.exportExisting(body, body, s)
	}
	return syntaxError("invalid export syntax: %s", line)
}

func (r *run) exportExisting(alias, name string, s *Scope) error {
	if !s.Has(name) {
		return fmt.Errorf("%w: cannot export %s", ErrUnknownVariable, name)
	}
	r.export(alias, s, name)
	return nil
}
