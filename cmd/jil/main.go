// JIL CLI - runs JIL scripts and generates glue for native modules
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/jil/manifest"
	"github.com/chazu/jil/vm"
	"github.com/chazu/jil/vm/stdlib"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	heapSize := flag.Int("m", 0, "Heap size in cells (default from jil.toml, else 4096)")
	mainName := flag.String("main", "", "Function called after the script runs (default \"main\")")
	libDir := flag.String("lib", "", "Directory searched for native module plugins")
	verbosity := flag.Int("v", 0, "Log verbosity (1 = info, 2 = debug)")
	logPath := flag.String("log", "", "Write logs to this file instead of stderr")
	dumpHeap := flag.String("dump-heap", "", "After running, dump the heap: '-' prints it, any other value writes a CBOR snapshot to that file")
	wrapPkg := flag.String("wrap", "", "Generate a native module plugin for the //jil:native functions of a Go package")
	wrapModule := flag.String("module", "", "Module identifier for -wrap (default from the import path)")
	wrapOut := flag.String("o", "", "Output directory for -wrap")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: jil [options] [script.jil]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a JIL script, then calls its main function. The exit code is main's result.\n")
		fmt.Fprintf(os.Stderr, "Without a script argument the entry named in jil.toml is run.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  jil hello.jil                 # Run hello.jil\n")
		fmt.Fprintf(os.Stderr, "  jil -m 65536 big.jil          # Run with a larger heap\n")
		fmt.Fprintf(os.Stderr, "  jil -dump-heap - hello.jil    # Print the heap after main returns\n")
		fmt.Fprintf(os.Stderr, "  jil -wrap ./natives           # Generate a plugin for ./natives\n")
	}
	flag.Parse()

	if *logPath != "" {
		commonlog.Configure(*verbosity, logPath)
	} else {
		commonlog.Configure(*verbosity, nil)
	}

	if *wrapPkg != "" {
		if err := runWrap(*wrapPkg, *wrapModule, *wrapOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		wd, _ := os.Getwd()
		m = manifest.Default(wd)
	}
	if *heapSize != 0 {
		m.Runtime.Heap = *heapSize
	}
	if *mainName != "" {
		m.Runtime.Main = *mainName
	}
	if *libDir != "" {
		m.Modules.LibDir = *libDir
	}

	script := m.EntryPath()
	if flag.NArg() > 0 {
		script = flag.Arg(0)
	}
	if script == "" {
		flag.Usage()
		os.Exit(2)
	}

	result, heap, err := run(m, script)
	if *dumpHeap != "" && heap != nil {
		if derr := writeHeap(heap, *dumpHeap); derr != nil {
			fmt.Fprintf(os.Stderr, "Error dumping heap: %v\n", derr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	os.Exit(result)
}

// run executes script at top level and then calls the configured main
// function.
func run(m *manifest.Manifest, script string) (int, *vm.Heap, error) {
	src, err := os.ReadFile(script)
	if err != nil {
		return 0, nil, err
	}
	if m.Runtime.Heap < 1 {
		return 0, nil, fmt.Errorf("heap size must be at least one cell, got %d", m.Runtime.Heap)
	}

	heap := vm.NewHeap(m.Runtime.Heap)
	loader := vm.Loaders{
		stdlib.Modules(os.Stdout),
		&vm.PluginLoader{Dirs: m.SearchDirs()},
	}
	in := vm.New(heap, vm.WithLoader(loader))

	if err := in.ExecuteSource(filepath.Base(script), string(src)); err != nil {
		return 0, heap, err
	}
	result, err := in.RunMain(m.Runtime.Main)
	return result, heap, err
}

func writeHeap(heap *vm.Heap, dest string) error {
	if dest == "-" {
		return heap.Dump(os.Stdout)
	}
	data, err := vm.MarshalSnapshot(heap.Snapshot())
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
