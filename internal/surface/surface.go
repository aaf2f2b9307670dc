// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package surface provides the environment-interaction commands: element
// text, values and style, alerts, and event listeners.
package surface

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
)

// ErrNotFound is returned for a selector that matches no element.
var ErrNotFound = errors.New("element not found")

// ErrNoValue is returned when an element has no input value.
var ErrNoValue = errors.New("element does not expose a string value")

// Handler receives an event fired on an element.
type Handler func(ctx context.Context, event any) error

// Surface is the environment scripts act on.
type Surface interface {
	Text(sel string) (string, error)
	SetText(sel, text string) error
	Value(sel string) (string, error)
	SetValue(sel, v string) error
	SetStyle(sel, prop, v string) error
	Alert(msg string) error
	Listen(sel, event string, h Handler) error
}

// Element is the state of one element of a Memory surface. Input elements
// carry a value; others only text.
type Element struct {
	Text     string            `yaml:"text" json:"text"`
	Value    string            `yaml:"value" json:"value"`
	HasValue bool              `yaml:"input" json:"input"`
	Style    map[string]string `yaml:"style,omitempty" json:"style,omitempty"`
}

// Memory is an in-memory Surface keyed by selector.
type Memory struct {
	mu        sync.RWMutex
	elements  map[string]*Element
	listeners map[string][]Handler
	forms     map[string][]string
	alerts    []string
}

// NewMemory creates a surface holding a copy of elements.
func NewMemory(elements map[string]Element) *Memory {
	m := &Memory{
		elements:  make(map[string]*Element),
		listeners: make(map[string][]Handler),
		forms:     make(map[string][]string),
	}
	for sel, el := range elements {
		m.Add(sel, el)
	}
	return m
}

// Add creates or replaces the element at sel.
func (m *Memory) Add(sel string, el Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el.Style = maps.Clone(el.Style)
	if el.Style == nil {
		el.Style = make(map[string]string)
	}
	m.elements[sel] = &el
}

// Element returns a copy of the element at sel.
func (m *Memory) Element(sel string) (Element, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	el, ok := m.elements[sel]
	if !ok {
		return Element{}, false
	}
	out := *el
	out.Style = maps.Clone(el.Style)
	return out, true
}

// AddForm declares a form at sel made of the given field selectors.
func (m *Memory) AddForm(sel string, fields []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forms[sel] = append([]string(nil), fields...)
}

// Form returns the values of the form's fields keyed by field name, the
// selector without its leading '#' or '.'.
func (m *Memory) Form(sel string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.forms[sel]
	if !ok {
		return nil, fmt.Errorf("%w: form %s", ErrNotFound, sel)
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		el, err := m.find(f)
		if err != nil {
			return nil, err
		}
		v := el.Text
		if el.HasValue {
			v = el.Value
		}
		out[strings.TrimLeft(f, "#.")] = v
	}
	return out, nil
}

// Alerts returns the messages raised so far.
func (m *Memory) Alerts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.alerts...)
}

func (m *Memory) find(sel string) (*Element, error) {
	el, ok := m.elements[sel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return el, nil
}

// Text returns the element text.
func (m *Memory) Text(sel string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	el, err := m.find(sel)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

// SetText replaces the element text.
func (m *Memory) SetText(sel, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, err := m.find(sel)
	if err != nil {
		return err
	}
	el.Text = text
	return nil
}

// Value returns the input value, or the text of a non-input element.
func (m *Memory) Value(sel string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	el, err := m.find(sel)
	if err != nil {
		return "", err
	}
	if el.HasValue {
		return el.Value, nil
	}
	return el.Text, nil
}

// SetValue writes the input value, or the text of a non-input element.
func (m *Memory) SetValue(sel, v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, err := m.find(sel)
	if err != nil {
		return err
	}
	if el.HasValue {
		el.Value = v
	} else {
		el.Text = v
	}
	return nil
}

// FieldValue returns the value of an input element. Non-input elements are
// an error.
func (m *Memory) FieldValue(sel string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	el, err := m.find(sel)
	if err != nil {
		return "", err
	}
	if !el.HasValue {
		return "", fmt.Errorf("%w: %s", ErrNoValue, sel)
	}
	return el.Value, nil
}

// SetStyle sets one style property.
func (m *Memory) SetStyle(sel, prop, v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, err := m.find(sel)
	if err != nil {
		return err
	}
	el.Style[prop] = v
	return nil
}

// Alert records msg.
func (m *Memory) Alert(msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, msg)
	return nil
}

// Listen registers h for event on the element at sel.
func (m *Memory) Listen(sel, event string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.find(sel); err != nil {
		return err
	}
	key := sel + "\x00" + event
	m.listeners[key] = append(m.listeners[key], h)
	return nil
}

// Fire delivers payload to every listener of event on sel, in registration
// order. Handler errors are joined.
func (m *Memory) Fire(ctx context.Context, sel, event string, payload any) error {
	m.mu.RLock()
	if _, err := m.find(sel); err != nil {
		m.mu.RUnlock()
		return err
	}
	handlers := append([]Handler(nil), m.listeners[sel+"\x00"+event]...)
	m.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
