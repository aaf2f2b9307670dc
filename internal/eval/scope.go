// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"fmt"
	"sync"
)

// Scope is one frame of the variable chain. Each frame owns its bindings and
// the set of names it declared const. Frames are safe for concurrent use so
// that event handlers firing after a run can still reach their captured
// scope.
type Scope struct {
	mu     sync.RWMutex
	parent *Scope
	vars   map[string]any
	consts map[string]struct{}
}

// NewScope creates a frame chained to parent, which may be nil.
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent: parent,
		vars:   make(map[string]any),
		consts: make(map[string]struct{}),
	}
}

// Child creates a new frame whose parent is s.
func (s *Scope) Child() *Scope {
	return NewScope(s)
}

// Parent returns the enclosing frame, or nil at the root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Declare binds name in this frame. It fails if this frame already owns name,
// whether or not the existing binding is const.
func (s *Scope) Declare(name string, v any, isConst bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vars[name]; ok {
		return fmt.Errorf("%w: %s", ErrRedeclared, name)
	}
	s.vars[name] = v
	if isConst {
		s.consts[name] = struct{}{}
	}
	return nil
}

// Assign rewrites name in the frame that owns it. Without an owner the name is
// bound in this frame.
func (s *Scope) Assign(name string, v any) error {
	target := s.owner(name)
	if target == nil {
		target = s
	}
	target.mu.Lock()
	defer target.mu.Unlock()
	if _, ok := target.consts[name]; ok {
		return fmt.Errorf("%w: %s", ErrConst, name)
	}
	target.vars[name] = v
	return nil
}

// Resolve walks the chain outward and returns the first binding of name.
func (s *Scope) Resolve(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether any frame in the chain binds name.
func (s *Scope) Has(name string) bool {
	return s.owner(name) != nil
}

// IsConst reports whether the frame owning name declared it const.
func (s *Scope) IsConst(name string) bool {
	owner := s.owner(name)
	if owner == nil {
		return false
	}
	owner.mu.RLock()
	defer owner.mu.RUnlock()
	_, ok := owner.consts[name]
	return ok
}

// Own returns a copy of the bindings held by this frame alone.
func (s *Scope) Own() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Snapshot flattens the chain into one map. Inner frames win.
func (s *Scope) Snapshot() map[string]any {
	var chain []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Own() {
			out[k] = v
		}
	}
	return out
}

func (s *Scope) owner(name string) *Scope {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		_, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return cur
		}
	}
	return nil
}
