package gowrap

import (
	"fmt"
	"go/format"
	"strings"

	"github.com/chazu/jil/vm"
)

// GenerateModule emits the source of a Go plugin (package main) exporting
// a vm.Module named module whose descriptors wrap every native in model.
// A native with calling-convention issues makes generation fail.
func GenerateModule(model *PackageModel, module string) (string, error) {
	if bad := model.Invalid(); len(bad) > 0 {
		var lines []string
		for _, n := range bad {
			lines = append(lines, fmt.Sprintf("%s: %s", n.GoName, strings.Join(n.Issues, "; ")))
		}
		return "", fmt.Errorf("cannot wrap %s:\n  %s", model.ImportPath, strings.Join(lines, "\n  "))
	}
	if module == "" {
		module = ImportPathToModule(model.ImportPath)
	}

	var sb strings.Builder
	sb.WriteString("// Code generated by jil -wrap. DO NOT EDIT.\n")
	sb.WriteString("// Module: " + module + "\n\n")
	sb.WriteString("package main\n\n")
	sb.WriteString("import (\n")
	sb.WriteString("\t\"github.com/chazu/jil/vm\"\n")
	if len(model.Natives) > 0 {
		sb.WriteString(fmt.Sprintf("\tpkg %q\n", model.ImportPath))
	}
	sb.WriteString(")\n\n")

	sb.WriteString("// Module is looked up by vm.PluginLoader.\n")
	sb.WriteString("var Module = vm.Module{\n")
	sb.WriteString(fmt.Sprintf("\tName: %q,\n", module))
	sb.WriteString("\tExports: []vm.Descriptor{\n")
	for _, n := range model.Natives {
		writeDescriptor(&sb, n)
	}
	sb.WriteString("\t},\n")
	sb.WriteString("}\n")

	src, err := format.Source([]byte(sb.String()))
	if err != nil {
		return "", fmt.Errorf("formatting generated module: %w", err)
	}
	return string(src), nil
}

func writeDescriptor(sb *strings.Builder, n NativeModel) {
	kinds := make([]string, len(n.Params))
	for i, p := range n.Params {
		kinds[i] = kindExpr(p)
	}
	args := []string{"h", "fns"}
	for i := 0; i < n.Arity(); i++ {
		args = append(args, fmt.Sprintf("args[%d]", i))
	}

	sb.WriteString("\t\t{\n")
	sb.WriteString(fmt.Sprintf("\t\t\tSymbol: %q,\n", n.GoName))
	sb.WriteString(fmt.Sprintf("\t\t\tName: %q,\n", n.Export))
	sb.WriteString("\t\t\tResult: vm.ParamInt,\n")
	sb.WriteString("\t\t\tParams: []vm.ParamKind{" + strings.Join(kinds, ", ") + "},\n")
	sb.WriteString("\t\t\tFailures: []vm.FailureKind{vm.FailureGeneric, vm.FailureNative},\n")
	sb.WriteString("\t\t\tProc: func(h *vm.Heap, fns *vm.Functions, args []int) (int, error) {\n")
	sb.WriteString(fmt.Sprintf("\t\t\t\treturn pkg.%s(%s)\n", n.GoName, strings.Join(args, ", ")))
	sb.WriteString("\t\t\t},\n")
	sb.WriteString("\t\t},\n")
}

func kindExpr(p ParamModel) string {
	switch p.Kind {
	case vm.ParamHeap:
		return "vm.ParamHeap"
	case vm.ParamFunctions:
		return "vm.ParamFunctions"
	default:
		return "vm.ParamInt"
	}
}
