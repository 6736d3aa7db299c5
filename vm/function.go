package vm

import (
	"sort"
	"strconv"
	"sync"

	"github.com/chazu/jil/compiler"
)

// ---------------------------------------------------------------------------
// Function table entries
// ---------------------------------------------------------------------------

// Function is an entry of the function table: either *Interpreted or
// *Native. Arguments are always heap handles.
type Function interface {
	Arity() int
	invoke(h *Heap, fns *Functions, args []Handle) (int, error)
}

// Interpreted is a function defined in source with fun ... end.
type Interpreted struct {
	Name string
	File string // source file, for error positions
	Argc int
	body *block
}

// NewInterpreted creates an interpreted function over the given body lines.
func NewInterpreted(name, file string, argc int, body []compiler.TokenLine) *Interpreted {
	return &Interpreted{Name: name, File: file, Argc: argc, body: newBlock(body)}
}

func (fn *Interpreted) Arity() int { return fn.Argc }

// Body returns the source lines of the function.
func (fn *Interpreted) Body() []compiler.TokenLine { return fn.body.lines }

// ParamName returns the variable name parameter i is bound to.
func ParamName(i int) string { return "$" + strconv.Itoa(i) }

// invoke runs the body in a fresh frame sharing h and fns. Each argument is
// bound to a new single-cell variable holding the caller's handle.
func (fn *Interpreted) invoke(h *Heap, fns *Functions, args []Handle) (int, error) {
	if err := checkArity(fn.Argc, len(args)); err != nil {
		return 0, err
	}
	vmLog.Debugf("call %s %v", fn.Name, args)

	fr := newFrame(h, fns, nil, fn.File, true)
	for i, a := range args {
		if err := fr.defineInt(ParamName(i), int(a)); err != nil {
			return 0, err
		}
	}
	return fr.run(fn.body)
}

// block is a run of token lines decoded lazily, one line at a time, the
// first time each line executes.
type block struct {
	lines []compiler.TokenLine

	mu      sync.Mutex
	decoded []compiler.Stmt
}

func newBlock(lines []compiler.TokenLine) *block {
	return &block{lines: lines, decoded: make([]compiler.Stmt, len(lines))}
}

func (b *block) stmt(i int) (compiler.Stmt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s := b.decoded[i]; s != nil {
		return s, nil
	}
	s, err := compiler.Decode(b.lines[i])
	if err != nil {
		return nil, err
	}
	b.decoded[i] = s
	return s, nil
}

func checkArity(want, got int) error {
	switch {
	case got < want:
		return Executionf("not enough arguments; expected %d, but %d were given", want, got)
	case got > want:
		return Executionf("too many arguments; expected %d, but %d were given", want, got)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Functions: the table shared by every frame of one program
// ---------------------------------------------------------------------------

// Functions maps names to functions. Names are unique; redefinition fails.
type Functions struct {
	mu     sync.RWMutex
	byName map[string]Function
}

// NewFunctions creates an empty function table.
func NewFunctions() *Functions {
	return &Functions{byName: make(map[string]Function)}
}

// Define registers fn under name.
func (f *Functions) Define(name string, fn Function) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byName[name]; exists {
		return Executionf("cannot redefine existing function '%s'", name)
	}
	f.byName[name] = fn
	return nil
}

// defineAll registers every entry or none of them.
func (f *Functions) defineAll(entries map[string]Function) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name := range entries {
		if _, exists := f.byName[name]; exists {
			return Validationf("cannot redefine existing function '%s'", name)
		}
	}
	for name, fn := range entries {
		f.byName[name] = fn
	}
	return nil
}

// Lookup returns the function registered under name.
func (f *Functions) Lookup(name string) (Function, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fn, ok := f.byName[name]
	if !ok {
		return nil, Executionf("function '%s' does not exist", name)
	}
	return fn, nil
}

// Has reports whether name is registered.
func (f *Functions) Has(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.byName[name]
	return ok
}

// Names returns the registered names in sorted order.
func (f *Functions) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.byName))
	for name := range f.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes the named function with the given argument handles. Native
// procedures use it to call back into the program.
func (f *Functions) Call(h *Heap, name string, args ...Handle) (int, error) {
	fn, err := f.Lookup(name)
	if err != nil {
		return 0, err
	}
	return fn.invoke(h, f, args)
}
