package stdlib

import (
	"fmt"
	"io"

	"github.com/chazu/jil/vm"
)

// IO returns the std/io module. Each procedure takes a handle and prints
// the value stored there.
func IO(w io.Writer) *vm.Module {
	printInt := func(newline string) vm.Proc {
		return func(h *vm.Heap, _ *vm.Functions, args []int) (int, error) {
			v, err := h.Deref(vm.Handle(args[0]))
			if err != nil {
				return 0, err
			}
			fmt.Fprint(w, v, newline)
			return 0, nil
		}
	}
	printString := func(newline string) vm.Proc {
		return func(h *vm.Heap, _ *vm.Functions, args []int) (int, error) {
			s, err := h.DerefString(vm.Handle(args[0]))
			if err != nil {
				return 0, err
			}
			fmt.Fprint(w, s, newline)
			return 0, nil
		}
	}

	return &vm.Module{
		Name: "std/io",
		Exports: []vm.Descriptor{
			native("print", 1, printInt("")),
			native("println", 1, printInt("\n")),
			native("prints", 1, printString("")),
			native("printsln", 1, printString("\n")),
		},
	}
}
