package vm

import (
	"errors"

	"github.com/chazu/jil/compiler"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Interpreter: top-level program state
// ---------------------------------------------------------------------------

var vmLog = commonlog.GetLogger("jil.vm")

// DefaultMain is the function RunMain calls when no name is given.
const DefaultMain = "main"

// Interpreter owns one running program: the heap, the function table and
// the module loader used by import.
type Interpreter struct {
	heap   *Heap
	funcs  *Functions
	loader ModuleLoader
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLoader sets the loader used to resolve import statements.
func WithLoader(l ModuleLoader) Option {
	return func(in *Interpreter) { in.loader = l }
}

// WithFunctions shares an existing function table.
func WithFunctions(fns *Functions) Option {
	return func(in *Interpreter) { in.funcs = fns }
}

// New creates an interpreter over heap.
func New(heap *Heap, opts ...Option) *Interpreter {
	in := &Interpreter{heap: heap}
	for _, opt := range opts {
		opt(in)
	}
	if in.funcs == nil {
		in.funcs = NewFunctions()
	}
	if in.loader == nil {
		in.loader = NewRegistry()
	}
	return in
}

// Heap returns the program heap.
func (in *Interpreter) Heap() *Heap { return in.heap }

// Functions returns the program's function table.
func (in *Interpreter) Functions() *Functions { return in.funcs }

// Execute runs lines in a fresh scope. At top level (inFunction false) only
// import, fun and struct are allowed; inside a function the lines run as a
// body and the value of ret, or 0, is returned.
func (in *Interpreter) Execute(file string, inFunction bool, lines []compiler.TokenLine) (int, error) {
	fr := newFrame(in.heap, in.funcs, in.loader, file, inFunction)
	return fr.run(newBlock(lines))
}

// ExecuteSource lexes src and runs it at top level.
func (in *Interpreter) ExecuteSource(file, src string) error {
	lines, err := compiler.Lex(src)
	if err != nil {
		var se *compiler.SyntaxError
		if errors.As(err, &se) {
			return at(err, file, se.Pos)
		}
		return err
	}
	_, err = in.Execute(file, false, lines)
	return err
}

// Call invokes a function from the table with the given argument handles.
func (in *Interpreter) Call(name string, args ...Handle) (int, error) {
	return in.funcs.Call(in.heap, name, args...)
}

// RunMain calls the entry function, DefaultMain when name is empty. Its
// result is the program's exit status.
func (in *Interpreter) RunMain(name string, args ...Handle) (int, error) {
	if name == "" {
		name = DefaultMain
	}
	if !in.funcs.Has(name) {
		return 0, Executionf("function '%s' not found", name)
	}
	return in.Call(name, args...)
}
