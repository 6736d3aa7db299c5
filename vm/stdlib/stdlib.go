// Package stdlib provides the native modules every JIL program can import
// without a plugin: std/io and std/mem.
package stdlib

import (
	"errors"
	"io"

	"github.com/chazu/jil/vm"
)

// Modules returns a registry holding the standard modules. Output of
// std/io goes to w.
func Modules(w io.Writer) *vm.Registry {
	return vm.NewRegistry(IO(w), Mem())
}

// native builds a descriptor following the calling convention with argc
// integer parameters.
func native(name string, argc int, proc vm.Proc) vm.Descriptor {
	params := []vm.ParamKind{vm.ParamHeap, vm.ParamFunctions}
	for i := 0; i < argc; i++ {
		params = append(params, vm.ParamInt)
	}
	return vm.Descriptor{
		Symbol:   name,
		Result:   vm.ParamInt,
		Params:   params,
		Failures: []vm.FailureKind{vm.FailureGeneric, vm.FailureNative},
		Proc:     proc,
	}
}

// nativeErr re-raises a heap failure as a native-domain error.
func nativeErr(err error) error {
	return vm.NativeErrorf("%s", errMsg(err))
}

func errMsg(err error) string {
	var e *vm.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
