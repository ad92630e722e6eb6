package ebnf

import "fmt"

// SyntaxError reports a malformed EBNF source, carrying the line/column of
// the offending token, per §7.1's requirement that user-input errors
// "contain line/column for EBNF".
type SyntaxError struct {
	Message string
	Pos     Position
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ebnf:%s: %s", e.Pos, e.Message)
}

// newSyntaxErrorf builds a *SyntaxError with a formatted message.
func newSyntaxErrorf(pos Position, format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Pos: pos}
}
