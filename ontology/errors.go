package ontology

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned for a document without content.
var ErrEmptyDocument = errors.New("empty document")

// ParseError reports a malformed or inconsistent ontology document.
type ParseError struct {
	// Line and Column locate the offending node, 1-based. Zero if unknown.
	Line   int
	Column int
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Line > 0 {
		return fmt.Sprintf("ontology: line %d, column %d: %s", e.Line, e.Column, msg)
	}
	return "ontology: " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// UndefinedAliasError reports a rule whose base is not defined by an
// earlier rule.
type UndefinedAliasError struct {
	Alias string
	Line  int
}

func (e *UndefinedAliasError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("undefined alias %q (line %d)", e.Alias, e.Line)
	}
	return fmt.Sprintf("undefined alias %q", e.Alias)
}
