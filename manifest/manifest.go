// Package manifest handles jil.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "jil.toml"

// Defaults applied to fields a jil.toml leaves empty.
const (
	DefaultHeap   = 4096
	DefaultMain   = "main"
	DefaultLibDir = "~/jil/lib"
)

// Manifest represents a jil.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Runtime Runtime `toml:"runtime"`
	Modules Modules `toml:"modules"`

	// Dir is the directory containing the jil.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// Runtime configures the interpreter.
type Runtime struct {
	Heap int    `toml:"heap"` // heap capacity in cells
	Main string `toml:"main"` // function called after top-level execution
}

// Modules configures where native modules are searched.
type Modules struct {
	LibDir string   `toml:"lib-dir"`
	Path   []string `toml:"path"`
}

// Default returns the configuration used when there is no jil.toml,
// rooted at dir.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Runtime.Heap == 0 {
		m.Runtime.Heap = DefaultHeap
	}
	if m.Runtime.Main == "" {
		m.Runtime.Main = DefaultMain
	}
	if m.Modules.LibDir == "" {
		m.Modules.LibDir = DefaultLibDir
	}
	if len(m.Modules.Path) == 0 {
		m.Modules.Path = []string{"."}
	}
}

// Load parses a jil.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Runtime.Heap < 0 {
		return nil, fmt.Errorf("%s: runtime.heap cannot be negative", path)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a jil.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// LibDir returns the library directory with a leading ~ expanded.
func (m *Manifest) LibDir() string {
	return expandHome(m.Modules.LibDir)
}

// SearchDirs returns the directories searched for native modules: the
// project paths first, then the library directory.
func (m *Manifest) SearchDirs() []string {
	var dirs []string
	for _, p := range m.Modules.Path {
		p = expandHome(p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Dir, p)
		}
		dirs = append(dirs, p)
	}
	return append(dirs, m.LibDir())
}

// EntryPath returns the absolute path of the entry script, or "" when the
// project does not name one.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Project.Entry) {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
