package gowrap

import (
	"errors"
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/chazu/jil/vm"
)

// Directive marks a Go function as a native JIL procedure. An optional
// argument overrides the export name:
//
//	//jil:native
//	//jil:native double
const Directive = "//jil:native"

const vmPath = "github.com/chazu/jil/vm"

// IntrospectPackage loads a Go package by import path or relative pattern
// and returns every function tagged with Directive, each checked against
// the native calling convention.
func IntrospectPackage(pattern string) (*PackageModel, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", pattern, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", pattern)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", pattern)
	}

	model := &PackageModel{
		ImportPath: pkg.PkgPath,
		Name:       pkg.Name,
	}

	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil {
				continue
			}
			export, tagged := directiveName(fd.Doc)
			if !tagged {
				continue
			}
			fn, ok := pkg.Types.Scope().Lookup(fd.Name.Name).(*types.Func)
			if !ok {
				continue
			}
			nm := extractNative(fn, pkg.Types)
			nm.Pos = pkg.Fset.Position(fd.Pos())
			if export != "" {
				nm.Export = export
			}
			nm.Issues = checkNative(&nm)
			model.Natives = append(model.Natives, nm)
		}
	}

	return model, nil
}

// directiveName reports whether doc carries the native directive and
// returns its override name, if any.
func directiveName(doc *ast.CommentGroup) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(c.Text)
		if text != Directive && !strings.HasPrefix(text, Directive+" ") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(text, Directive))
		if len(fields) > 0 {
			return fields[0], true
		}
		return "", true
	}
	return "", false
}

func extractNative(fn *types.Func, pkg *types.Package) NativeModel {
	sig := fn.Type().(*types.Signature)
	nm := NativeModel{
		GoName:   fn.Name(),
		Export:   GoNameToExport(fn.Name()),
		Exported: fn.Exported(),
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		nm.Params = append(nm.Params, paramModel(params.At(i), pkg))
	}
	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		nm.Results = append(nm.Results, paramModel(results.At(i), pkg))
	}
	if sig.Variadic() {
		nm.Issues = append(nm.Issues, "variadic parameters are not supported")
	}
	return nm
}

func paramModel(v *types.Var, pkg *types.Package) ParamModel {
	return ParamModel{
		Name:    v.Name(),
		GoType:  v.Type(),
		TypeStr: types.TypeString(v.Type(), qualifier(pkg)),
		Kind:    classify(v.Type()),
	}
}

// classify maps a Go type onto the calling convention's parameter kinds.
func classify(t types.Type) vm.ParamKind {
	if ptr, ok := t.(*types.Pointer); ok {
		if named, ok := ptr.Elem().(*types.Named); ok {
			obj := named.Obj()
			if obj.Pkg() != nil && obj.Pkg().Path() == vmPath {
				switch obj.Name() {
				case "Heap":
					return vm.ParamHeap
				case "Functions":
					return vm.ParamFunctions
				}
			}
		}
		return vm.ParamOther
	}
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return vm.ParamOther
	}
	switch basic.Kind() {
	case types.Int:
		return vm.ParamInt
	case types.String:
		return vm.ParamString
	case types.Float32, types.Float64:
		return vm.ParamFloat
	}
	return vm.ParamOther
}

// checkNative validates the Go signature through the same descriptor
// check the bridge runs at registration. Go functions declare failures
// with a trailing error result, which stands for both failure kinds.
func checkNative(nm *NativeModel) []string {
	issues := nm.Issues
	if !nm.Exported {
		issues = append(issues, fmt.Sprintf("function %s is not exported", nm.GoName))
	}

	d := descriptorFor(nm)
	d.Proc = func(*vm.Heap, *vm.Functions, []int) (int, error) { return 0, nil }
	if err := d.Validate(); err != nil {
		var e *vm.Error
		if errors.As(err, &e) {
			issues = append(issues, e.Msg)
		} else {
			issues = append(issues, err.Error())
		}
	}
	if len(nm.Results) != 2 {
		issues = append(issues, fmt.Sprintf("function %s must return (int, error), found %d results", nm.GoName, len(nm.Results)))
	}
	return issues
}

// descriptorFor builds the descriptor metadata for a native, minus Proc.
func descriptorFor(nm *NativeModel) vm.Descriptor {
	d := vm.Descriptor{Symbol: nm.GoName, Name: nm.Export, Result: vm.ParamOther}
	for _, p := range nm.Params {
		d.Params = append(d.Params, p.Kind)
	}
	if len(nm.Results) > 0 {
		d.Result = nm.Results[0].Kind
	}
	if len(nm.Results) == 2 && isErrorType(nm.Results[1].GoType) {
		d.Failures = []vm.FailureKind{vm.FailureGeneric, vm.FailureNative}
	}
	return d
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

func qualifier(pkg *types.Package) types.Qualifier {
	return func(other *types.Package) string {
		if other == pkg {
			return ""
		}
		return other.Name()
	}
}
