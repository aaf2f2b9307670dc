// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines the keywords and binary operators of the language.
package token

// Token represents a binary operator.
type Token int

const (
	ILLEGAL Token = iota

	OR  // ||
	AND // &&
	EQ  // ==
	NEQ // !=
	GEQ // >=
	LEQ // <=
	GT  // >
	LT  // <
	ADD // +
	SUB // -
	MUL // *
	DIV // /
	MOD // %
)

// Statement and command keywords.
const (
	Function = "umukoro"
	Loop     = "subiramo"
	If       = "niba"
	Else     = "niba_atariyo"
	Return   = "garura"
	Let      = "let"
	Const    = "const"
	Import   = "import"
	Export   = "export"
	From     = "from"
	As       = "as"
	Inject   = "injiza"
	Use      = "koresha"
	Invoke   = "hamagara"
)

// Groups lists the binary operators by precedence tier, lowest first.
// Within a tier, longer symbols come first so that ">=" is tried before ">".
var Groups = [][]Token{
	{OR},
	{AND},
	{EQ, NEQ},
	{GEQ, LEQ, GT, LT},
	{ADD, SUB},
	{MUL, DIV, MOD},
}

var symbols = [...]string{
	ILLEGAL: "",
	OR:      "||",
	AND:     "&&",
	EQ:      "==",
	NEQ:     "!=",
	GEQ:     ">=",
	LEQ:     "<=",
	GT:      ">",
	LT:      "<",
	ADD:     "+",
	SUB:     "-",
	MUL:     "*",
	DIV:     "/",
	MOD:     "%",
}

// String returns the operator symbol.
func (t Token) String() string {
	if t < 0 || int(t) >= len(symbols) {
		return "UNKNOWN"
	}
	return symbols[t]
}

// Len returns the number of bytes in the operator symbol.
func (t Token) Len() int {
	return len(t.String())
}

// IsSign reports whether the operator may also appear as a unary sign.
func (t Token) IsSign() bool {
	return t == ADD || t == SUB
}

// Lookup returns the operator for a symbol, or ILLEGAL.
func Lookup(s string) Token {
	for t, sym := range symbols {
		if sym != "" && sym == s {
			return Token(t)
		}
	}
	return ILLEGAL
}

// IsUnaryContext reports whether a '+' or '-' following c is a sign rather
// than a binary operator.
func IsUnaryContext(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '<', '>', '=', '!', '&', '|', '(', '[', '{', ',':
		return true
	}
	return false
}

// IsKeyword reports whether word is reserved at the start of a statement.
func IsKeyword(word string) bool {
	switch word {
	case Function, Loop, If, Else, Return, Let, Const, Import, Export:
		return true
	}
	return false
}
