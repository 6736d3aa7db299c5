package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/jil/gowrap"
)

// runWrap generates plugin source for the //jil:native functions of a Go
// package. Usage:
//
//	jil -wrap ./natives                    # module "natives" in .jil/wrap/natives
//	jil -wrap ./natives -module acme/math  # explicit module identifier
//	jil -wrap ./natives -o ./plugins/math  # custom output dir
func runWrap(pattern, module, outputDir string) error {
	model, err := gowrap.IntrospectPackage(pattern)
	if err != nil {
		return fmt.Errorf("introspecting: %w", err)
	}
	if module == "" {
		module = gowrap.ImportPathToModule(model.ImportPath)
	}

	src, err := gowrap.GenerateModule(model, module)
	if err != nil {
		return err
	}

	if outputDir == "" {
		outputDir = filepath.Join(".jil", "wrap", filepath.FromSlash(module))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	goPath := filepath.Join(outputDir, "module.go")
	if err := os.WriteFile(goPath, []byte(src), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", goPath, err)
	}

	fmt.Printf("Wrapped %d function(s) from %s as module %q\n", len(model.Natives), model.ImportPath, module)
	fmt.Printf("  Wrote %s\n", goPath)
	fmt.Printf("  Build with: go build -buildmode=plugin -o %s ./%s\n",
		filepath.Join("<lib-dir>", filepath.FromSlash(gowrap.ModuleToFileName(module))), filepath.ToSlash(outputDir))
	return nil
}
