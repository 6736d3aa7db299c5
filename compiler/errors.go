package compiler

import "fmt"

// SyntaxError is a positioned lexing or statement-shape failure.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("error on line %d, col %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func errorAt(pos Position, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
