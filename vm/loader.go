package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sync"
)

// ---------------------------------------------------------------------------
// Module loaders
// ---------------------------------------------------------------------------

// ModuleLoader resolves a module identifier such as "std/io" to a Module.
// Loaders report an unknown identifier with an error wrapping
// ErrModuleNotFound.
type ModuleLoader interface {
	Load(path string) (*Module, error)
}

// Registry is a static table of modules registered at startup.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates a registry holding the given modules.
func NewRegistry(modules ...*Module) *Registry {
	r := &Registry{modules: make(map[string]*Module)}
	for _, m := range modules {
		r.Register(m)
	}
	return r
}

// Register adds m under m.Name, replacing any earlier module of that name.
func (r *Registry) Register(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name] = m
}

// Load returns the module registered under path.
func (r *Registry) Load(path string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
	}
	return m, nil
}

// PluginLoader opens Go plugins named <dir>/<path>.so. Each plugin must
// export a package-level variable:
//
//	var Module vm.Module
//
// Dirs are searched in order; the first existing file wins.
type PluginLoader struct {
	Dirs []string
}

// Load finds and opens the plugin for path.
func (l *PluginLoader) Load(path string) (*Module, error) {
	for _, dir := range l.Dirs {
		file := filepath.Join(dir, filepath.FromSlash(path)+".so")
		if _, err := os.Stat(file); err != nil {
			continue
		}

		p, err := plugin.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", file, err)
		}
		sym, err := p.Lookup("Module")
		if err != nil {
			return nil, fmt.Errorf("plugin %s missing Module: %w", file, err)
		}
		m, ok := sym.(*Module)
		if !ok {
			return nil, fmt.Errorf("plugin %s: Module has type %T, want vm.Module", file, sym)
		}
		if m.Name == "" {
			m.Name = path
		}
		vmLog.Infof("loaded plugin %s", file)
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
}

// Loaders tries each loader in turn. A loader that fails for any reason
// other than ErrModuleNotFound stops the search.
type Loaders []ModuleLoader

func (ls Loaders) Load(path string) (*Module, error) {
	for _, l := range ls {
		m, err := l.Load(path)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrModuleNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
}
