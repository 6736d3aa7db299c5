package vm

import (
	"errors"

	"github.com/chazu/jil/compiler"
)

// frame is the execution context of one body: the top-level script or one
// function invocation. It references the shared heap and function table and
// owns its variables and labels, which disappear when the body returns.
type frame struct {
	heap       *Heap
	funcs      *Functions
	loader     ModuleLoader // nil inside functions
	file       string
	inFunction bool

	vars   map[string]Handle
	labels map[string]int

	returned bool
	result   int
}

func newFrame(h *Heap, fns *Functions, loader ModuleLoader, file string, inFunction bool) *frame {
	return &frame{
		heap:       h,
		funcs:      fns,
		loader:     loader,
		file:       file,
		inFunction: inFunction,
		vars:       make(map[string]Handle),
		labels:     make(map[string]int),
	}
}

// run executes b from its first line until ret or the last line. Every
// error leaves with the position of the first token of the failing line.
func (fr *frame) run(b *block) (int, error) {
	for ln := 0; ln < len(b.lines); {
		pos := b.lines[ln].Pos()

		stmt, err := b.stmt(ln)
		if err != nil {
			return 0, at(err, fr.file, pos)
		}
		next, err := fr.exec(stmt, b, ln)
		if err != nil {
			return 0, at(err, fr.file, pos)
		}
		if fr.returned {
			return fr.result, nil
		}
		ln = next
	}
	return 0, nil
}

// exec performs one statement and returns the index of the next line.
func (fr *frame) exec(stmt compiler.Stmt, b *block, ln int) (int, error) {
	if msg := compiler.ContextError(stmt, fr.inFunction); msg != "" {
		return 0, Validationf("%s", msg)
	}

	switch s := stmt.(type) {
	case *compiler.RemStmt:

	case *compiler.StructStmt:
		vmLog.Debugf("struct %s declared", s.Name)

	case *compiler.LabelStmt:
		if _, exists := fr.labels[s.Name]; exists {
			return 0, Executionf("cannot redefine label '%s'", s.Name)
		}
		fr.labels[s.Name] = ln + 1

	case *compiler.GotoStmt:
		target, ok := fr.labels[s.Name]
		if !ok {
			return 0, Executionf("unknown label '%s'", s.Name)
		}
		return target, nil

	case *compiler.ImportStmt:
		if err := fr.importModule(s.Path); err != nil {
			return 0, err
		}

	case *compiler.FunStmt:
		end := compiler.FindEnd(b.lines, ln+1)
		if end < 0 {
			return 0, Validationf("unterminated function definition")
		}
		fn := NewInterpreted(s.Name, fr.file, s.Argc, b.lines[ln+1:end])
		if err := fr.funcs.Define(s.Name, fn); err != nil {
			return 0, err
		}
		vmLog.Debugf("defined function %s/%d", s.Name, s.Argc)
		return end + 1, nil

	case *compiler.DefStmt:
		if _, exists := fr.vars[s.Name]; exists {
			return 0, Executionf("variable '%s' already exists", s.Name)
		}
		if err := fr.define(s.Name, s.Value); err != nil {
			return 0, err
		}

	case *compiler.SetStmt:
		h, ok := fr.vars[s.Name]
		if !ok {
			return 0, Executionf("variable '%s' does not exist", s.Name)
		}
		if err := fr.assign(h, s.Value); err != nil {
			return 0, err
		}

	case *compiler.CallStmt:
		if err := fr.call(s); err != nil {
			return 0, err
		}

	case *compiler.RetStmt:
		v, err := fr.retValue(s.Value)
		if err != nil {
			return 0, err
		}
		fr.returned, fr.result = true, v

	case *compiler.IfStmt:
		v, err := fr.eval(s.Cond)
		if err != nil {
			return 0, err
		}
		holds := v != 0
		if s.Negate {
			holds = !holds
		}
		if !holds {
			return ln + 2, nil
		}

	case *compiler.EndStmt:
		// ContextError rejects a stray end everywhere.
	}
	return ln + 1, nil
}

func (fr *frame) importModule(path string) error {
	if fr.loader == nil {
		return Executionf("module '%s' not found", path)
	}
	m, err := fr.loader.Load(path)
	if err != nil {
		if errors.Is(err, ErrModuleNotFound) {
			return &Error{Kind: KindExecution, Msg: "module '" + path + "' not found", Err: err}
		}
		return err
	}
	vmLog.Infof("import %s", path)
	return RegisterModule(fr.funcs, m)
}

func (fr *frame) readVar(name string) (int, error) {
	h, ok := fr.vars[name]
	if !ok {
		return 0, Executionf("variable '%s' does not exist", name)
	}
	return fr.heap.Deref(h)
}

func (fr *frame) eval(expr []compiler.Token) (int, error) {
	return Evaluate(expr, fr.readVar)
}

// define creates a variable holding a string or an expression result. The
// value is computed before anything is allocated.
func (fr *frame) define(name string, value compiler.Operand) error {
	if value.IsString {
		h, err := fr.newString(value.Text)
		if err != nil {
			return err
		}
		fr.vars[name] = h
		return nil
	}
	v, err := fr.eval(value.Expr)
	if err != nil {
		return err
	}
	return fr.defineInt(name, v)
}

func (fr *frame) defineInt(name string, v int) error {
	h, err := fr.heap.Malloc(1)
	if err != nil {
		return err
	}
	if err := fr.heap.Assign(h, v); err != nil {
		return err
	}
	fr.vars[name] = h
	return nil
}

func (fr *frame) newString(text string) (Handle, error) {
	h, err := fr.heap.Malloc(StringLength(text))
	if err != nil {
		return 0, err
	}
	if err := fr.heap.AssignString(h, text); err != nil {
		return 0, err
	}
	return h, nil
}

// assign writes into an existing variable's allocation; its handle never
// changes. Strings longer than the allocation are truncated.
func (fr *frame) assign(h Handle, value compiler.Operand) error {
	if value.IsString {
		return fr.heap.AssignString(h, value.Text)
	}
	v, err := fr.eval(value.Expr)
	if err != nil {
		return err
	}
	return fr.heap.Assign(h, v)
}

// setInt stores v into name, defining it when absent.
func (fr *frame) setInt(name string, v int) error {
	if h, ok := fr.vars[name]; ok {
		return fr.heap.Assign(h, v)
	}
	return fr.defineInt(name, v)
}

// call passes each argument variable's handle, not its value.
func (fr *frame) call(s *compiler.CallStmt) error {
	fn, err := fr.funcs.Lookup(s.Func)
	if err != nil {
		return err
	}
	args := make([]Handle, len(s.Args))
	for i, tok := range s.Args {
		h, ok := fr.vars[tok.Literal]
		if !ok {
			return Executionf("variable '%s' does not exist", tok.Literal)
		}
		args[i] = h
	}

	result, err := fn.invoke(fr.heap, fr.funcs, args)
	if err != nil {
		return err
	}
	if s.Into != "" {
		return fr.setInt(s.Into, result)
	}
	return nil
}

// retValue returns an expression result, or the handle of a newly stored
// string.
func (fr *frame) retValue(value compiler.Operand) (int, error) {
	if value.IsString {
		h, err := fr.newString(value.Text)
		if err != nil {
			return 0, err
		}
		return int(h), nil
	}
	return fr.eval(value.Expr)
}
