package stdlib

import "github.com/chazu/jil/vm"

// Mem returns the std/mem module: raw allocation plus load and store for
// parameters, which hold the caller's handle rather than its value.
func Mem() *vm.Module {
	return &vm.Module{
		Name: "std/mem",
		Exports: []vm.Descriptor{
			native("malloc", 1, memMalloc),
			native("free", 1, memFree),
			native("sizeOfPointer", 1, memSizeOf),
			native("load", 1, memLoad),
			native("store", 2, memStore),
		},
	}
}

// memMalloc allocates as many cells as the value behind args[0].
func memMalloc(h *vm.Heap, _ *vm.Functions, args []int) (int, error) {
	size, err := h.Deref(vm.Handle(args[0]))
	if err != nil {
		return 0, nativeErr(err)
	}
	ptr, err := h.Malloc(size)
	if err != nil {
		return 0, nativeErr(err)
	}
	return int(ptr), nil
}

func memFree(h *vm.Heap, _ *vm.Functions, args []int) (int, error) {
	if err := h.Free(vm.Handle(args[0])); err != nil {
		return 0, nativeErr(err)
	}
	return 0, nil
}

func memSizeOf(h *vm.Heap, _ *vm.Functions, args []int) (int, error) {
	n, err := h.Size(vm.Handle(args[0]))
	if err != nil {
		return 0, nativeErr(err)
	}
	return n, nil
}

// memLoad follows a pointer: args[0] holds a handle whose cell is itself a
// handle, and the value behind that one is returned.
func memLoad(h *vm.Heap, _ *vm.Functions, args []int) (int, error) {
	target, err := h.Deref(vm.Handle(args[0]))
	if err != nil {
		return 0, nativeErr(err)
	}
	v, err := h.Deref(vm.Handle(target))
	if err != nil {
		return 0, nativeErr(err)
	}
	return v, nil
}

// memStore writes the value behind args[1] through the pointer in args[0].
func memStore(h *vm.Heap, _ *vm.Functions, args []int) (int, error) {
	target, err := h.Deref(vm.Handle(args[0]))
	if err != nil {
		return 0, nativeErr(err)
	}
	v, err := h.Deref(vm.Handle(args[1]))
	if err != nil {
		return 0, nativeErr(err)
	}
	if err := h.Assign(vm.Handle(target), v); err != nil {
		return 0, nativeErr(err)
	}
	return v, nil
}
