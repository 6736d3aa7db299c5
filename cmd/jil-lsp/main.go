// jil-lsp serves JIL language features to editors over stdio.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/jil/manifest"
	"github.com/chazu/jil/server"
	"github.com/chazu/jil/vm"
	"github.com/chazu/jil/vm/stdlib"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (1 = info, 2 = debug)")
	logPath := flag.String("log", "", "Log file; stdio carries the protocol, so logs are off unless set")
	flag.Parse()

	if *logPath != "" {
		commonlog.Configure(*verbosity, logPath)
	} else {
		commonlog.Configure(-4, nil)
	}

	loaders := vm.Loaders{stdlib.Modules(io.Discard)}
	if m, err := manifest.FindAndLoad("."); err == nil && m != nil {
		loaders = append(loaders, &vm.PluginLoader{Dirs: m.SearchDirs()})
	}

	if err := server.NewLSP(loaders).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "jil-lsp: %v\n", err)
		os.Exit(1)
	}
}
