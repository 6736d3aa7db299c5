package gowrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateModule_Natives(t *testing.T) {
	model, err := IntrospectPackage("./testdata/natives")
	if err != nil {
		t.Fatalf("IntrospectPackage: %v", err)
	}

	code, err := GenerateModule(model, "test/natives")
	if err != nil {
		t.Fatalf("GenerateModule: %v", err)
	}

	for _, want := range []string{
		"package main",
		`"github.com/chazu/jil/vm"`,
		`pkg "` + model.ImportPath + `"`,
		"var Module = vm.Module{",
		`"test/natives",`,
		`"plus",`,
		"return pkg.Double(h, fns, args[0])",
		"return pkg.Add(h, fns, args[0], args[1])",
		"vm.ParamHeap, vm.ParamFunctions, vm.ParamInt, vm.ParamInt",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("generated code missing %q:\n%s", want, code)
		}
	}

	goldenFile := filepath.Join("testdata", "natives_module.go.golden")
	updateGolden(t, goldenFile, code)
	compareGolden(t, goldenFile, code)
}

func TestGenerateModule_RejectsInvalid(t *testing.T) {
	model, err := IntrospectPackage("./testdata/badnatives")
	if err != nil {
		t.Fatalf("IntrospectPackage: %v", err)
	}
	_, err = GenerateModule(model, "")
	if err == nil {
		t.Fatal("expected GenerateModule to fail")
	}
	if !strings.Contains(err.Error(), "Scale: argument 3") {
		t.Errorf("error = %v", err)
	}
}

func TestGenerateModule_EmptyModel(t *testing.T) {
	model := &PackageModel{ImportPath: "example.com/empty/pkg", Name: "pkg"}

	code, err := GenerateModule(model, "")
	if err != nil {
		t.Fatalf("GenerateModule: %v", err)
	}
	if !strings.Contains(code, `"empty/pkg",`) {
		t.Errorf("expected default module name:\n%s", code)
	}
	if strings.Contains(code, "pkg \"") {
		t.Error("empty module should not import the package")
	}
}

// Golden file helpers

func updateGolden(t *testing.T, path, content string) {
	t.Helper()
	if os.Getenv("UPDATE_GOLDEN") == "" {
		return
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("updating golden file: %v", err)
	}
}

func compareGolden(t *testing.T, path, got string) {
	t.Helper()
	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Logf("Golden file %s does not exist. Run with UPDATE_GOLDEN=1 to create.", path)
		return
	}
	if err != nil {
		t.Fatalf("reading golden file: %v", err)
	}
	if string(expected) != got {
		t.Errorf("output differs from golden file %s.\nRun with UPDATE_GOLDEN=1 to update.", path)
	}
}
