// Package config loads the pev YAML configuration file.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const DefaultFormat = "text"

type Config struct {
	// PluginsPath is a directory scanned for output plugins.
	PluginsPath string `yaml:"plugins_path"`
	// Plugins lists plugin files to load instead of scanning PluginsPath.
	// Relative entries are resolved against PluginsPath.
	Plugins []string `yaml:"plugins"`
	// Format is the output format used when none is given on the command line.
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{Format: DefaultFormat}
}

// DefaultPath returns $XDG_CONFIG_HOME/pev/pev.yaml, falling back to
// ~/.config/pev/pev.yaml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pev", "pev.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WithMessage(err, "cannot determine home directory")
	}
	return filepath.Join(home, ".config", "pev", "pev.yaml"), nil
}

// Load reads the configuration at path. An empty path loads the file at
// DefaultPath if there is one and the defaults otherwise.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err) && !explicit:
		return Default(), nil
	case err != nil:
		return nil, errors.WithMessagef(err, "cannot read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	return cfg, nil
}
