package gowrap

import (
	"path"
	"strings"
	"unicode"
)

// GoNameToExport converts a Go function name to the JIL function name it is
// registered under when the directive gives none.
// e.g., "Double" → "double", "ReadAll" → "readAll", "IO" → "io"
func GoNameToExport(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	// Lower the leading run of capitals, keeping the last one when it starts
	// a new word ("HTTPGet" → "httpGet").
	i := 0
	for i < len(runes) && unicode.IsUpper(runes[i]) {
		i++
	}
	switch {
	case i == 0:
		return name
	case i == 1 || i == len(runes):
		return strings.ToLower(string(runes[:i])) + string(runes[i:])
	default:
		return strings.ToLower(string(runes[:i-1])) + string(runes[i-1:])
	}
}

// ImportPathToModule converts a Go import path to a default JIL module
// identifier: the last two path segments.
// e.g., "github.com/acme/jil-std/io" → "jil-std/io", "natives" → "natives"
func ImportPathToModule(importPath string) string {
	importPath = strings.TrimSuffix(importPath, "/")
	dir, last := path.Split(importPath)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || dir == "." {
		return last
	}
	return path.Base(dir) + "/" + last
}

// ModuleToFileName returns the plugin file name for a module identifier,
// relative to a search directory.
// e.g., "std/io" → "std/io.so"
func ModuleToFileName(module string) string {
	return module + ".so"
}
