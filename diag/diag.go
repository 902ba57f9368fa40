// Package diag is the single formatting surface for every diagnostic the
// interpreter pipeline emits: lex/parse errors, resolution errors and
// warnings, and runtime errors. It replaces the ad hoc per-package
// formatting the driver used to do directly.
package diag

import (
	"fmt"
	"io"

	"github.com/lox-lang/lox/ast"
)

// Sink collects diagnostics for one run (one file, or one REPL turn) and
// writes their formatted text to Out as they're reported.
type Sink struct {
	Out              io.Writer
	HadError         bool
	HadRuntimeError  bool
}

// NewSink returns a Sink writing to out.
func NewSink(out io.Writer) *Sink {
	return &Sink{Out: out}
}

// Reset clears HadError ready for the next REPL turn. HadRuntimeError is
// left untouched: it stays sticky once set. Only file mode consults it, to
// pick the process exit code; the REPL does not.
func (s *Sink) Reset() {
	s.HadError = false
}

// Error reports a lex/parse/resolution error at a bare line (no token, as
// in a lexer reporting an unterminated string).
func (s *Sink) Error(line, col int, message string) {
	s.report(line, col, "", message)
}

// TokenError reports a parse/resolution error located at a token.
func (s *Sink) TokenError(token ast.Token, message string) {
	where := " at '" + token.Lexeme + "'"
	if token.TokenType == ast.TokenEof {
		where = " at end"
	}
	s.report(token.Line, token.Column, where, message)
}

// Warning reports a non-fatal diagnostic (the resolver's unused-local
// warning). Warnings never set HadError.
func (s *Sink) Warning(token ast.Token, message string) {
	fmt.Fprintf(s.Out, "[line %d : col %d] Warning at '%s': %s\n", token.Line, token.Column, token.Lexeme, message)
}

func (s *Sink) report(line, col int, where, message string) {
	fmt.Fprintf(s.Out, "[line %d : col %d] Error%s: %s\n", line, col, where, message)
	s.HadError = true
}

// RuntimeError is a runtime failure carrying the token whose evaluation
// triggered it, for line-number reporting. It is a normal Go error value,
// propagated explicitly through return values rather than by panicking.
type RuntimeError struct {
	Token   ast.Token
	Message string
}

func NewRuntimeError(token ast.Token, message string) *RuntimeError {
	return &RuntimeError{Token: token, Message: message}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d]", e.Message, e.Token.Line)
}

// RuntimeError reports a runtime failure and sets HadRuntimeError.
func (s *Sink) RuntimeError(err *RuntimeError) {
	fmt.Fprintln(s.Out, err.Error())
	s.HadRuntimeError = true
}
