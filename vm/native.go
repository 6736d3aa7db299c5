package vm

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Native bridge: descriptors, validation, registration and invocation
// ---------------------------------------------------------------------------

var bridgeLog = commonlog.GetLogger("jil.bridge")

// ParamKind is the declared type of a native procedure's result or parameter.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamHeap
	ParamFunctions
	ParamString
	ParamFloat
	ParamOther
)

var paramKindNames = map[ParamKind]string{
	ParamInt:       "int",
	ParamHeap:      "heap",
	ParamFunctions: "function table",
	ParamString:    "string",
	ParamFloat:     "float",
	ParamOther:     "other",
}

func (k ParamKind) String() string {
	if name, ok := paramKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ParamKind(%d)", k)
}

// FailureKind is a failure a native procedure declares it may raise.
type FailureKind int

const (
	FailureGeneric FailureKind = iota
	FailureNative
)

func (k FailureKind) String() string {
	switch k {
	case FailureGeneric:
		return "generic"
	case FailureNative:
		return "native"
	}
	return fmt.Sprintf("FailureKind(%d)", k)
}

// Proc is the Go shape of a native procedure. args holds one heap handle
// per declared integer parameter.
type Proc func(h *Heap, fns *Functions, args []int) (int, error)

// Descriptor describes one exported native procedure. The calling
// convention is an int result, parameters (heap, function table, int...)
// and failures (generic, native) in that order.
type Descriptor struct {
	Symbol   string // the procedure's own name
	Name     string // export name; Symbol when empty
	Result   ParamKind
	Params   []ParamKind
	Failures []FailureKind
	Proc     Proc
}

// ExportName returns the name the procedure is registered under.
func (d *Descriptor) ExportName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Symbol
}

// Validate checks the descriptor against the calling convention.
func (d *Descriptor) Validate() error {
	name := d.ExportName()
	if name == "" {
		return Validationf("native export has no name")
	}
	if d.Result != ParamInt {
		return Validationf("imported function '%s' does not return an int (found %s)", name, d.Result)
	}
	if len(d.Params) < 2 {
		return Validationf("imported function '%s' must have at least two parameters", name)
	}
	for i, p := range d.Params {
		switch {
		case i == 0 && p != ParamHeap:
			return Validationf("argument %d from imported function '%s' is not a heap (found %s)", i, name, p)
		case i == 1 && p != ParamFunctions:
			return Validationf("argument %d from imported function '%s' is not a function table (found %s)", i, name, p)
		case i > 1 && p != ParamInt:
			return Validationf("argument %d from imported function '%s' is not an int (found %s)", i, name, p)
		}
	}
	if len(d.Failures) != 2 || d.Failures[0] != FailureGeneric || d.Failures[1] != FailureNative {
		return Validationf("imported function '%s' must declare failures (generic, native), found (%s)", name, joinFailures(d.Failures))
	}
	if d.Proc == nil {
		return Validationf("imported function '%s' has no procedure", name)
	}
	return nil
}

func joinFailures(fs []FailureKind) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return strings.Join(parts, ", ")
}

// Module is a loadable unit of native procedures.
type Module struct {
	Name    string
	Exports []Descriptor
}

// Native is a function table entry bound to a validated native procedure.
type Native struct {
	Name  string
	arity int
	proc  Proc
}

// NewNative validates d and binds it.
func NewNative(d Descriptor) (*Native, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Native{Name: d.ExportName(), arity: len(d.Params) - 2, proc: d.Proc}, nil
}

func (n *Native) Arity() int { return n.arity }

func (n *Native) invoke(h *Heap, fns *Functions, args []Handle) (result int, err error) {
	if err := checkArity(n.arity, len(args)); err != nil {
		return 0, err
	}
	ints := make([]int, len(args))
	for i, a := range args {
		ints[i] = int(a)
	}

	defer func() {
		if r := recover(); r != nil {
			trace := strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
			result = 0
			err = &Error{
				Kind: KindNativeFault,
				Msg:  fmt.Sprintf("an exception has occurred inside the called native function:\n %v\n  %s", r, strings.Join(trace, "\n  ")),
			}
			bridgeLog.Errorf("native %s crashed: %v", n.Name, r)
		}
	}()

	result, err = n.proc(h, fns, ints)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return 0, err
		}
		return 0, &Error{Kind: KindExecution, Msg: err.Error(), Err: err}
	}
	return result, nil
}

// RegisterModule validates every export of m and registers them all in
// fns. When any export is invalid or its name is taken, nothing is
// registered.
func RegisterModule(fns *Functions, m *Module) error {
	entries := make(map[string]Function, len(m.Exports))
	for _, d := range m.Exports {
		n, err := NewNative(d)
		if err != nil {
			bridgeLog.Warningf("module %s rejected: %s", m.Name, err)
			return err
		}
		if _, dup := entries[n.Name]; dup {
			return Validationf("module '%s' exports '%s' twice", m.Name, n.Name)
		}
		entries[n.Name] = n
	}
	if err := fns.defineAll(entries); err != nil {
		bridgeLog.Warningf("module %s rejected: %s", m.Name, err)
		return err
	}
	bridgeLog.Infof("module %s registered %d functions", m.Name, len(entries))
	return nil
}
