package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    *Config
		wantErr bool
	}{
		{
			name: "empty",
			data: "",
			want: &Config{Format: DefaultFormat},
		},
		{
			name: "full",
			data: "plugins_path: /usr/lib/pev/plugins\nplugins:\n  - csv.so\nformat: json\n",
			want: &Config{
				PluginsPath: "/usr/lib/pev/plugins",
				Plugins:     []string{"csv.so"},
				Format:      "json",
			},
		},
		{
			name: "blank format falls back",
			data: "format: \"\"\n",
			want: &Config{Format: DefaultFormat},
		},
		{
			name:    "unknown key",
			data:    "plugin_path: /tmp\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pev", "pev.yaml"), path)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("format: yaml\n"), 0o644))

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Format)
}
