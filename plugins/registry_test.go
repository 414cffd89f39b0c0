package plugins

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanglei-coder/pev/config"
)

type fakePlugin struct {
	name     string
	unloaded bool
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Format(w io.Writer, doc *ordereddict.Dict) error {
	_, err := io.WriteString(w, p.name)
	return err
}

func (p *fakePlugin) Unload() error {
	p.unloaded = true
	return nil
}

// fakeOpen names each plugin after the file it was "loaded" from and fails
// for files called bad.so.
func fakeOpen(path string) (Plugin, error) {
	base := filepath.Base(path)
	if base == "bad.so" {
		return nil, errors.New("not a plugin")
	}
	return &fakePlugin{name: base[:len(base)-len(filepath.Ext(base))]}, nil
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.open = fakeOpen
	return r
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakePlugin{name: "JSON"}))

	p, err := r.Lookup("json")
	require.NoError(t, err)
	assert.Equal(t, "JSON", p.Name())

	assert.Error(t, r.Register(&fakePlugin{name: "json"}))
	assert.Error(t, r.Register(&fakePlugin{name: ""}))

	_, err = r.Lookup("xml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_Load(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Load("/plugins/csv.so"))
	assert.Error(t, r.Load("/plugins/bad.so"))
	assert.Error(t, r.Load("/other/csv.so"), "duplicate name")
	assert.Equal(t, []string{"csv"}, r.Names())
}

func TestRegistry_LoadOpenError(t *testing.T) {
	r := NewRegistry()
	err := r.Load(filepath.Join(t.TempDir(), "missing.so"))
	assert.Error(t, err)
	assert.Empty(t, r.Names())
}

func TestRegistry_LoadAllFromDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "csv.so", "html.so", "bad.so", "README")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.so"), 0o755))

	r := newTestRegistry()
	n, err := r.LoadAllFromDirectory(dir)
	assert.Equal(t, 2, n)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad.so")
	assert.Equal(t, []string{"csv", "html"}, r.Names())

	_, err = r.LoadAllFromDirectory(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRegistry_LoadAll(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "csv.so", "html.so")

	tests := []struct {
		name  string
		cfg   *config.Config
		want  []string
		count int
	}{
		{
			name:  "directory",
			cfg:   &config.Config{PluginsPath: dir},
			want:  []string{"csv", "html"},
			count: 2,
		},
		{
			name:  "explicit list",
			cfg:   &config.Config{PluginsPath: dir, Plugins: []string{"csv.so", "/abs/xml.so"}},
			want:  []string{"csv", "xml"},
			count: 2,
		},
		{
			name: "nothing configured",
			cfg:  config.Default(),
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			n, err := r.LoadAll(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.count, n)
			assert.Equal(t, tt.want, r.Names())
		})
	}
}

func TestRegistry_UnloadAll(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{name: "csv"}
	require.NoError(t, r.Register(p))

	r.UnloadAll()
	assert.True(t, p.unloaded)
	assert.Empty(t, r.Names())

	// The registry is usable again after unloading.
	require.NoError(t, r.Register(&fakePlugin{name: "csv"}))
}
