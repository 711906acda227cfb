package state

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendFile   Backend = "file"
)

// Config selects and locates the store backing a Resolver.
type Config struct {
	Backend Backend `yaml:"backend" toml:"backend"`
	Path    string  `yaml:"path" toml:"path"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig reads a YAML (or, for .toml files, TOML) config file, expanding
// ${VAR} references from the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that the backend is known and has what it needs. An empty
// backend means memory.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendMemory:
		return nil
	case BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("path is required for the sqlite backend")
		}
		return nil
	case BackendFile:
		if c.Path == "" {
			return fmt.Errorf("path is required for the file backend")
		}
		if _, err := FormatForPath(c.Path); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Open builds the store cfg describes. The caller closes it.
func Open(cfg Config) (ClosableStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendSQLite:
		store, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendFile:
		store, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return NewMemoryStore(), nil
	}
}
