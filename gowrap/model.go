// Package gowrap introspects Go packages for native JIL procedures and
// generates the plugin glue that exposes them as a vm.Module.
package gowrap

import (
	"go/token"
	"go/types"

	"github.com/chazu/jil/vm"
)

// PackageModel is the set of native procedures a Go package declares.
type PackageModel struct {
	ImportPath string
	Name       string // short package name (e.g., "natives")
	Natives    []NativeModel
}

// NativeModel is one function tagged with a //jil:native directive.
type NativeModel struct {
	GoName   string
	Export   string // name registered in the function table
	Exported bool   // whether the Go identifier is exported
	Pos      token.Position
	Params   []ParamModel
	Results  []ParamModel
	Issues   []string // calling-convention violations; empty when valid
}

// ParamModel represents a function parameter or result.
type ParamModel struct {
	Name    string
	GoType  types.Type
	TypeStr string // human-readable type string (e.g., "int", "*vm.Heap")
	Kind    vm.ParamKind
}

// Valid reports whether the native can be wrapped.
func (n *NativeModel) Valid() bool { return len(n.Issues) == 0 }

// Arity is the number of integer arguments a JIL call passes.
func (n *NativeModel) Arity() int {
	if len(n.Params) < 2 {
		return 0
	}
	return len(n.Params) - 2
}

// Invalid returns the natives that have issues.
func (m *PackageModel) Invalid() []NativeModel {
	var out []NativeModel
	for _, n := range m.Natives {
		if !n.Valid() {
			out = append(out, n)
		}
	}
	return out
}
