// Package plugins holds the output format plugins available to the pev
// commands. A Registry is built, loaded, used and unloaded explicitly; there
// is no process wide plugin state.
package plugins

import (
	"io"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"

	"github.com/wanglei-coder/pev/config"
)

// Symbol is the name a plugin shared object must export. Its value must
// implement Plugin, either directly or through a pointer.
const Symbol = "Plugin"

// Plugin writes a report document in one output format.
type Plugin interface {
	Name() string
	Format(w io.Writer, doc *ordereddict.Dict) error
}

// Unloader is implemented by plugins that hold resources until unloaded.
type Unloader interface {
	Unload() error
}

var ErrNotFound = errors.New("plugin not found")

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin

	open func(path string) (Plugin, error)
}

func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		open:    openSharedObject,
	}
}

// Register adds p. Names are case insensitive and must be unique.
func (r *Registry) Register(p Plugin) error {
	name := strings.ToLower(p.Name())
	if name == "" {
		return errors.New("plugin has an empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; ok {
		return errors.Errorf("plugin %q is already registered", name)
	}
	r.plugins[name] = p
	return nil
}

func (r *Registry) Lookup(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return p, nil
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load opens the plugin at path and registers it.
func (r *Registry) Load(path string) error {
	p, err := r.open(path)
	if err != nil {
		return errors.WithMessagef(err, "cannot load plugin %s", path)
	}
	return errors.WithMessagef(r.Register(p), "cannot load plugin %s", path)
}

// LoadAllFromDirectory loads every shared object in dir. Plugins that load
// are kept even when others fail; the failures are returned together.
func (r *Registry) LoadAllFromDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.WithMessagef(err, "cannot read plugin directory %s", dir)
	}

	var (
		loaded int
		errs   loadErrors
	)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".so" {
			continue
		}
		if err := r.Load(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	return loaded, errs.errorOrNil()
}

// LoadAll loads the plugins listed in cfg, or every plugin in
// cfg.PluginsPath when the list is empty.
func (r *Registry) LoadAll(cfg *config.Config) (int, error) {
	var (
		loaded int
		errs   loadErrors
	)
	for _, path := range cfg.Plugins {
		if !filepath.IsAbs(path) && cfg.PluginsPath != "" {
			path = filepath.Join(cfg.PluginsPath, path)
		}
		if err := r.Load(path); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}

	if cfg.PluginsPath != "" && len(cfg.Plugins) == 0 {
		n, err := r.LoadAllFromDirectory(cfg.PluginsPath)
		loaded += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return loaded, errs.errorOrNil()
}

// UnloadAll unloads every plugin and empties the registry. Go cannot unmap
// a shared object, so unloading means calling Unload and forgetting it.
func (r *Registry) UnloadAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.plugins {
		if u, ok := p.(Unloader); ok {
			_ = u.Unload()
		}
		delete(r.plugins, name)
	}
}

func openSharedObject(path string) (Plugin, error) {
	so, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := so.Lookup(Symbol)
	if err != nil {
		return nil, err
	}

	// Lookup of a variable yields a pointer to it.
	switch v := sym.(type) {
	case Plugin:
		return v, nil
	case *Plugin:
		return *v, nil
	}
	return nil, errors.Errorf("symbol %s has type %T, which is not a plugin", Symbol, sym)
}

type loadErrors []error

func (e loadErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e loadErrors) errorOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
