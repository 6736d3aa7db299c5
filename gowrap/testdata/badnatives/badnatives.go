// Package badnatives is a fixture of procedures that break the calling
// convention.
package badnatives

import "github.com/chazu/jil/vm"

//jil:native
func Scale(h *vm.Heap, fns *vm.Functions, x int, factor float64) (int, error) {
	return 0, nil
}

//jil:native
func NoHeap(fns *vm.Functions, h *vm.Heap) (int, error) {
	return 0, nil
}

//jil:native
func NoError(h *vm.Heap, fns *vm.Functions) int {
	return 0
}

//jil:native
func hidden(h *vm.Heap, fns *vm.Functions) (int, error) {
	return 0, nil
}

var _ = hidden
