package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/jil/compiler"
)

// ---------------------------------------------------------------------------
// Error kinds
// ---------------------------------------------------------------------------

// ErrorKind classifies a runtime failure.
type ErrorKind int

const (
	// KindValidation marks malformed source or a native procedure whose shape
	// does not match the calling convention.
	KindValidation ErrorKind = iota
	// KindExecution marks a failure while running statements or heap operations.
	KindExecution
	// KindNative marks a failure a native procedure raised on purpose.
	KindNative
	// KindNativeFault marks a crash inside a native procedure.
	KindNativeFault
)

var kindNames = map[ErrorKind]string{
	KindValidation:  "validation",
	KindExecution:   "execution",
	KindNative:      "native",
	KindNativeFault: "native fault",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Sentinel errors.
var (
	ErrModuleNotFound = errors.New("module not found")
	ErrUnknownHandle  = errors.New("unknown handle")
)

// Error is the single failure type of the runtime. File and Pos are filled
// in once, by the statement executor that first sees the error.
type Error struct {
	Kind ErrorKind
	Msg  string
	File string
	Pos  compiler.Position
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.File == "" {
		return e.Msg
	}
	return fmt.Sprintf("error on line %d, col %d of %s: %s", e.Pos.Line, e.Pos.Column, e.File, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Positioned reports whether the error already carries a source location.
func (e *Error) Positioned() bool { return e.File != "" }

// Validationf returns a KindValidation error.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Executionf returns a KindExecution error.
func Executionf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindExecution, Msg: fmt.Sprintf(format, args...)}
}

// NativeErrorf returns a KindNative error. Native procedures use it to
// signal an expected, domain-level failure.
func NativeErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNative, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, treating foreign errors as execution
// failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// IsNative reports whether err was raised on purpose by a native procedure.
func IsNative(err error) bool {
	return KindOf(err) == KindNative
}

// at attaches file and position to err unless it already has them.
func at(err error, file string, pos compiler.Position) error {
	var e *Error
	if errors.As(err, &e) {
		if e.Positioned() {
			return err
		}
		out := *e
		out.File = file
		out.Pos = pos
		return &out
	}

	var se *compiler.SyntaxError
	if errors.As(err, &se) {
		return &Error{Kind: KindValidation, Msg: se.Msg, File: file, Pos: pos, Err: err}
	}
	return &Error{Kind: KindExecution, Msg: err.Error(), File: file, Pos: pos, Err: err}
}
