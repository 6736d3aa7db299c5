// Package natives is a fixture of well-formed native procedures.
package natives

import "github.com/chazu/jil/vm"

// Double returns twice the value behind x.
//
//jil:native
func Double(h *vm.Heap, fns *vm.Functions, x int) (int, error) {
	v, err := h.Deref(vm.Handle(x))
	if err != nil {
		return 0, vm.NativeErrorf("%s", err)
	}
	return 2 * v, nil
}

//jil:native plus
func Add(h *vm.Heap, fns *vm.Functions, a, b int) (int, error) {
	x, err := h.Deref(vm.Handle(a))
	if err != nil {
		return 0, err
	}
	y, err := h.Deref(vm.Handle(b))
	if err != nil {
		return 0, err
	}
	return x + y, nil
}

// Helper is not tagged and is never wrapped.
func Helper(x int) int { return x }
