// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package validate implements the form validation predicates. Each reports
// true when it finds a problem.
package validate

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/eval"
)

// Predicate names.
const (
	Empty    = "idafite_agaciro"
	BadEmail = "si_imererwe_neza"
	Mismatch = "ntibihuye"
)

// ErrNoForm is returned when a predicate runs without a form to read.
var ErrNoForm = errors.New("validation commands require a form")

// Form exposes the string value of input fields.
type Form interface {
	FieldValue(sel string) (string, error)
}

var email = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator runs predicates against a Form.
type Validator struct {
	form Form
}

// New returns a validator reading fields from form.
func New(form Form) *Validator {
	return &Validator{form: form}
}

// Validate implements eval.Validator.
func (v *Validator) Validate(ctx context.Context, req *eval.Request) (bool, bool, error) {
	var (
		problem bool
		err     error
	)
	switch req.Name {
	case Empty:
		problem, err = v.empty(ctx, req)
	case BadEmail:
		problem, err = v.badEmail(ctx, req)
	case Mismatch:
		problem, err = v.mismatch(ctx, req)
	default:
		return false, false, nil
	}
	return problem, true, err
}

func (v *Validator) field(ctx context.Context, req *eval.Request, i int) (string, error) {
	if v.form == nil {
		return "", ErrNoForm
	}
	sel, err := req.Text(ctx, i)
	if err != nil {
		return "", err
	}
	return v.form.FieldValue(sel)
}

func (v *Validator) empty(ctx context.Context, req *eval.Request) (bool, error) {
	s, err := v.field(ctx, req, 0)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(s) == "", nil
}

func (v *Validator) badEmail(ctx context.Context, req *eval.Request) (bool, error) {
	s, err := v.field(ctx, req, 0)
	if err != nil {
		return false, err
	}
	return !email.MatchString(strings.TrimSpace(s)), nil
}

func (v *Validator) mismatch(ctx context.Context, req *eval.Request) (bool, error) {
	a, err := v.field(ctx, req, 0)
	if err != nil {
		return false, err
	}
	b, err := v.field(ctx, req, 1)
	if err != nil {
		return false, err
	}
	return a != b, nil
}
