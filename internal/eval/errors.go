// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"errors"
	"fmt"
)

// Run faults. Errors returned by Run wrap one of these, scanner.ErrUnbalanced,
// or the error of the collaborator that failed.
var (
	ErrSyntax          = errors.New("invalid syntax")
	ErrRedeclared      = errors.New("variable already declared in this scope")
	ErrConst           = errors.New("cannot reassign const variable")
	ErrUnknownValue    = errors.New("unknown value or variable")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrUnknownCommand  = errors.New("unknown command or function")
	ErrType            = errors.New("type error")
	ErrArity           = errors.New("wrong number of arguments")
	ErrDependency      = errors.New("dependency not found")
	ErrNotCallable     = errors.New("target is not callable")
)

// validationStop unwinds a run after a validation command reports a problem.
// Run turns it into a Result with OK false; it never reaches the caller.
type validationStop struct {
	line string
}

func (v *validationStop) Error() string {
	return fmt.Sprintf("validation failed at line: %s", v.line)
}

func syntaxError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}
